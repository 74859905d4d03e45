package services

import (
	"context"
	"errors"
	"time"

	"github.com/halcyonlabs/carousel-pipeline/internal/domain"
	"github.com/halcyonlabs/carousel-pipeline/internal/pkg/ctxutil"
	"github.com/halcyonlabs/carousel-pipeline/internal/pkg/httpx"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/uploadpost"
)

// PublishOrchestrator pushes an assembled carousel through the upload
// API with bounded, fixed-delay retries. Only transient failures are
// retried; terminal ones surface on the first attempt.
type PublishOrchestrator interface {
	Publish(ctx context.Context, carousel *domain.Carousel) domain.PublishOutcome
}

type publishOrchestrator struct {
	log        *logger.Logger
	client     uploadpost.Client
	maxRetries int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewPublishOrchestrator(log *logger.Logger, client uploadpost.Client, maxRetries int, retryDelay time.Duration) PublishOrchestrator {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &publishOrchestrator{
		log:        log.With("service", "PublishOrchestrator"),
		client:     client,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (po *publishOrchestrator) Publish(ctx context.Context, carousel *domain.Carousel) domain.PublishOutcome {
	ctx = ctxutil.Default(ctx)

	outcome := domain.PublishOutcome{
		AccountID: carousel.AccountID,
		Timestamp: time.Now().UTC(),
	}

	var lastErr error
	for attempt := 1; attempt <= po.maxRetries; attempt++ {
		outcome.Attempts = attempt

		res, err := po.client.UploadCarousel(ctx, uploadpost.UploadRequest{
			Username: carousel.Username,
			Title:    carousel.Title,
			Caption:  carousel.Caption,
			Photos:   carousel.Slides,
		})
		if err == nil {
			outcome.Success = true
			outcome.PostID = res.PostID
			outcome.PostURL = res.URL
			po.log.Info("carousel published",
				"account", carousel.AccountID,
				"attempt", attempt,
				"post_id", res.PostID)
			return outcome
		}

		lastErr = err
		if !isTransientPublishError(err) {
			po.log.Error("publish failed terminally",
				"account", carousel.AccountID,
				"attempt", attempt,
				"error", err)
			outcome.ErrorKind = domain.ErrKindTerminalPublish
			return outcome
		}

		po.log.Warn("publish attempt failed, will retry",
			"account", carousel.AccountID,
			"attempt", attempt,
			"max_retries", po.maxRetries,
			"error", err)

		if attempt < po.maxRetries {
			if serr := po.sleep(ctx, po.retryDelay); serr != nil {
				lastErr = serr
				break
			}
		}
	}

	po.log.Error("publish retries exhausted",
		"account", carousel.AccountID,
		"attempts", outcome.Attempts,
		"error", lastErr)
	outcome.ErrorKind = domain.ErrKindTransientPublish
	return outcome
}

// isTransientPublishError folds together the HTTP-level retry rules
// and the in-body platform statuses that the API reports with a 200.
func isTransientPublishError(err error) bool {
	var perr *uploadpost.PlatformError
	if errors.As(err, &perr) {
		return perr.Transient
	}
	return httpx.IsRetryableError(err)
}
