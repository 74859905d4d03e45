package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/halcyonlabs/carousel-pipeline/internal/data/db"
	"github.com/halcyonlabs/carousel-pipeline/internal/data/repos/usage"
	"github.com/halcyonlabs/carousel-pipeline/internal/domain"
	"github.com/halcyonlabs/carousel-pipeline/internal/pkg/dbctx"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/discord"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/gcp"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/uploadpost"
	"github.com/halcyonlabs/carousel-pipeline/internal/services"
)

// App owns the wired component graph for a runner process. Everything
// is constructed once in New and reused across accounts.
type App struct {
	Log *logger.Logger
	Cfg *Config

	DB        *gorm.DB
	UsageRepo usage.Repo
	Store     gcp.PoolStore
	Assembler services.CarouselAssembler
	Publisher services.PublishOrchestrator
	Notifier  discord.Notifier
}

func New(log *logger.Logger, cfg *Config) (*App, error) {
	gdb, err := db.Open(log, cfg.UsageDBDriver, cfg.UsageDBDSN)
	if err != nil {
		return nil, err
	}
	usageRepo := usage.NewRepo(gdb, log)

	store, err := gcp.NewPoolStore(log, cfg.BucketName, cfg.PoolPrefixes, cfg.CallTimeout)
	if err != nil {
		return nil, fmt.Errorf("pool store: %w", err)
	}

	composer, err := services.NewSlideComposer(log, cfg.FontPath, cfg.ImageQuality)
	if err != nil {
		return nil, fmt.Errorf("slide composer: %w", err)
	}
	picker := services.NewTextPicker(log, cfg.HookTexts, cfg.CTATexts, cfg.Hashtags, nil)
	selector := services.NewSelectionTracker(log, store, usageRepo, cfg.RetentionWindow, nil)

	assembler := services.NewCarouselAssembler(log, store, selector, composer, picker, services.AssemblerParams{
		BodyCount:    cfg.BodyCount,
		HashtagCount: cfg.HashtagCount,
		HookStyle:    cfg.HookStyle,
		CTAStyle:     cfg.CTAStyle,
		TargetWidth:  cfg.TargetWidth,
		TargetHeight: cfg.TargetHeight,
	})

	uploader, err := uploadpost.New(log, uploadpost.Config{
		APIKey:       cfg.UploadPostAPIKey,
		Timeout:      cfg.CallTimeout,
		AutoAddMusic: cfg.AutoAddMusic,
	})
	if err != nil {
		return nil, fmt.Errorf("upload client: %w", err)
	}
	publisher := services.NewPublishOrchestrator(log, uploader, cfg.MaxRetries, cfg.RetryDelay)

	return &App{
		Log:       log.With("component", "App"),
		Cfg:       cfg,
		DB:        gdb,
		UsageRepo: usageRepo,
		Store:     store,
		Assembler: assembler,
		Publisher: publisher,
		Notifier:  discord.NewNotifier(log, 10*time.Second),
	}, nil
}

// RunAccount executes one full post cycle for one account and emits
// exactly one terminal event for it, delivered to the account's
// webhook when one is configured.
func (a *App) RunAccount(ctx context.Context, account domain.Account) domain.RunEvent {
	a.pruneUsage(ctx)

	event := domain.RunEvent{
		AccountID: account.Name,
		Timestamp: time.Now().UTC(),
	}

	carousel, err := a.Assembler.Assemble(ctx, account)
	if err != nil {
		event.ErrorKind = classifyAssembleError(err)
		event.Detail = err.Error()
		a.Log.Error("Run failed during assembly",
			"account", account.Name,
			"error_kind", string(event.ErrorKind),
			"error", err)
		a.Notifier.Notify(ctx, account.WebhookURL, event)
		return event
	}

	outcome := a.Publisher.Publish(ctx, carousel)
	event.Success = outcome.Success
	event.Attempts = outcome.Attempts
	event.ErrorKind = outcome.ErrorKind
	event.PostURL = outcome.PostURL
	event.Timestamp = outcome.Timestamp
	if !outcome.Success {
		event.Detail = fmt.Sprintf("publish failed after %d attempt(s)", outcome.Attempts)
	}

	a.Notifier.Notify(ctx, account.WebhookURL, event)
	return event
}

// RunOnce runs every configured account in order, or just the one
// matching target when it is non-empty. The returned events carry the
// per-account outcomes; the error covers setup problems only.
func (a *App) RunOnce(ctx context.Context, target string) ([]domain.RunEvent, error) {
	accounts := a.Cfg.Accounts
	if target != "" {
		account, ok := a.Cfg.AccountByUsername(target)
		if !ok {
			return nil, fmt.Errorf("no account configured with username %q", target)
		}
		accounts = []domain.Account{account}
	}

	events := make([]domain.RunEvent, 0, len(accounts))
	for _, account := range accounts {
		a.Log.Info("Starting run", "account", account.Name, "username", account.Username)
		events = append(events, a.RunAccount(ctx, account))
	}
	return events, nil
}

// pruneUsage drops history older than the retention window. Failure is
// logged but never blocks a run; stale rows only cost storage.
func (a *App) pruneUsage(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-a.Cfg.RetentionWindow)
	pruned, err := a.UsageRepo.PruneBefore(dbctx.Context{Ctx: ctx}, cutoff)
	if err != nil {
		a.Log.Warn("Usage prune failed", "error", err)
		return
	}
	if pruned > 0 {
		a.Log.Info("Pruned expired usage history", "rows", pruned)
	}
}

func classifyAssembleError(err error) domain.ErrorKind {
	var epe *domain.EmptyPoolError
	if errors.As(err, &epe) {
		return domain.ErrKindEmptyPool
	}
	var re *domain.RenderError
	if errors.As(err, &re) {
		return domain.ErrKindRender
	}
	return domain.ErrKindAssetFetch
}
