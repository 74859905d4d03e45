package services

import (
	"context"
	"fmt"

	"github.com/halcyonlabs/carousel-pipeline/internal/domain"
	"github.com/halcyonlabs/carousel-pipeline/internal/pkg/ctxutil"
	"github.com/halcyonlabs/carousel-pipeline/internal/pkg/dbctx"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/gcp"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
)

// CarouselAssembler turns an account definition into a ready-to-publish
// carousel: one hook slide, a run of body slides, one CTA slide, with
// the title and caption chosen alongside.
type CarouselAssembler interface {
	Assemble(ctx context.Context, account domain.Account) (*domain.Carousel, error)
}

// AssemblerParams carries the run-shape knobs the assembler needs from
// configuration.
type AssemblerParams struct {
	BodyCount    int
	HashtagCount int
	HookStyle    domain.TextStyle
	CTAStyle     domain.TextStyle
	TargetWidth  int
	TargetHeight int
}

type carouselAssembler struct {
	log      *logger.Logger
	store    gcp.PoolStore
	selector SelectionTracker
	composer SlideComposer
	picker   TextPicker
	params   AssemblerParams
}

func NewCarouselAssembler(
	log *logger.Logger,
	store gcp.PoolStore,
	selector SelectionTracker,
	composer SlideComposer,
	picker TextPicker,
	params AssemblerParams,
) CarouselAssembler {
	return &carouselAssembler{
		log:      log.With("service", "CarouselAssembler"),
		store:    store,
		selector: selector,
		composer: composer,
		picker:   picker,
		params:   params,
	}
}

func (ca *carouselAssembler) Assemble(ctx context.Context, account domain.Account) (*domain.Carousel, error) {
	ctx = ctxutil.Default(ctx)
	dbc := dbctx.Context{Ctx: ctx}

	hookIDs, err := ca.selector.Select(dbc, account.Name, domain.PoolHook, 1)
	if err != nil {
		return nil, err
	}
	bodyIDs, err := ca.selector.Select(dbc, account.Name, domain.PoolBody, ca.params.BodyCount)
	if err != nil {
		return nil, err
	}
	ctaIDs, err := ca.selector.Select(dbc, account.Name, domain.PoolCTA, 1)
	if err != nil {
		return nil, err
	}

	hookText := ca.picker.PickHook()
	ctaText := ca.picker.PickCTA()
	hashtags := ca.picker.PickHashtags(ca.params.HashtagCount)

	slides := make([][]byte, 0, 2+len(bodyIDs))

	hookOverlay := ""
	if account.HookTextMode == domain.HookTextOverlay {
		hookOverlay = hookText
	}
	hookSlide, err := ca.buildSlide(ctx, domain.PoolHook, hookIDs[0], hookOverlay, ca.params.HookStyle)
	if err != nil {
		return nil, err
	}
	slides = append(slides, hookSlide)

	for _, assetID := range bodyIDs {
		slide, err := ca.buildSlide(ctx, domain.PoolBody, assetID, "", domain.TextStyle{})
		if err != nil {
			return nil, err
		}
		slides = append(slides, slide)
	}

	ctaSlide, err := ca.buildSlide(ctx, domain.PoolCTA, ctaIDs[0], ctaText, ca.params.CTAStyle)
	if err != nil {
		return nil, err
	}
	slides = append(slides, ctaSlide)

	title := hookText
	if title == "" {
		title = ctaText
	}

	ca.log.Info("carousel assembled",
		"account", account.Name,
		"slides", len(slides),
		"hashtags", len(hashtags))

	return &domain.Carousel{
		AccountID: account.Name,
		Username:  account.Username,
		Slides:    slides,
		Title:     title,
		Caption:   ca.picker.BuildCaption(ctaText, hashtags),
		Hashtags:  hashtags,
	}, nil
}

// buildSlide fetches the asset, applies the overlay when one is
// requested, and normalizes the result to the target frame. Decode and
// render failures are attributed to the asset that caused them.
func (ca *carouselAssembler) buildSlide(ctx context.Context, pool domain.Pool, assetID, overlay string, style domain.TextStyle) ([]byte, error) {
	rec, err := ca.store.FetchAsset(ctx, pool, assetID)
	if err != nil {
		return nil, fmt.Errorf("fetch %s asset %s: %w", pool, assetID, err)
	}

	img := rec.Content
	if overlay != "" {
		img, err = ca.composer.Compose(img, overlay, style)
		if err != nil {
			return nil, &domain.RenderError{Pool: pool, AssetID: assetID, Err: err}
		}
	}

	normalized, err := ca.composer.Normalize(img, ca.params.TargetWidth, ca.params.TargetHeight)
	if err != nil {
		return nil, &domain.RenderError{Pool: pool, AssetID: assetID, Err: err}
	}
	return normalized, nil
}
