package services

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
)

// TextPicker chooses the per-run copy: the hook phrase, the CTA line,
// and a hashtag sample, plus the caption built from the latter two.
type TextPicker interface {
	PickHook() string
	PickCTA() string
	PickHashtags(count int) []string
	BuildCaption(cta string, hashtags []string) string
}

type textPicker struct {
	log      *logger.Logger
	hooks    []string
	ctas     []string
	hashtags []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTextPicker builds a picker over the configured phrase pools. A
// nil rng gets a time-seeded source.
func NewTextPicker(log *logger.Logger, hooks, ctas, hashtags []string, rng *rand.Rand) TextPicker {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &textPicker{
		log:      log.With("service", "TextPicker"),
		hooks:    hooks,
		ctas:     ctas,
		hashtags: hashtags,
		rng:      rng,
	}
}

func (tp *textPicker) pickOne(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return pool[tp.rng.Intn(len(pool))]
}

func (tp *textPicker) PickHook() string { return tp.pickOne(tp.hooks) }
func (tp *textPicker) PickCTA() string  { return tp.pickOne(tp.ctas) }

// PickHashtags samples without replacement. Asking for more tags than
// the pool holds returns the whole pool shuffled rather than failing.
func (tp *textPicker) PickHashtags(count int) []string {
	if count <= 0 || len(tp.hashtags) == 0 {
		return nil
	}
	tp.mu.Lock()
	defer tp.mu.Unlock()

	perm := tp.rng.Perm(len(tp.hashtags))
	if count > len(tp.hashtags) {
		tp.log.Warn("hashtag pool smaller than requested sample",
			"requested", count, "available", len(tp.hashtags))
		count = len(tp.hashtags)
	}
	out := make([]string, 0, count)
	for _, idx := range perm[:count] {
		out = append(out, tp.hashtags[idx])
	}
	return out
}

func (tp *textPicker) BuildCaption(cta string, hashtags []string) string {
	cta = strings.TrimSpace(cta)
	tags := strings.Join(hashtags, " ")
	switch {
	case cta == "":
		return tags
	case tags == "":
		return cta
	default:
		return cta + "\n\n" + tags
	}
}
