package services

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/carousel-pipeline/internal/data/repos/usage"
	"github.com/halcyonlabs/carousel-pipeline/internal/domain"
	"github.com/halcyonlabs/carousel-pipeline/internal/pkg/dbctx"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/gcp"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
)

// SelectionTracker picks the next non-repeating assets for a pool and
// records the picks before any fetch or compose work happens. A run
// that fails later has still spent its selections, which is what keeps
// consecutive retries from posting identical content.
type SelectionTracker interface {
	Select(dbc dbctx.Context, accountID string, pool domain.Pool, count int) ([]string, error)
}

type selectionTracker struct {
	log       *logger.Logger
	store     gcp.PoolStore
	usageRepo usage.Repo
	window    time.Duration
	rng       *rand.Rand
}

// NewSelectionTracker builds a tracker over the pool store and usage
// history. rng may be nil; tests pass a seeded source.
func NewSelectionTracker(log *logger.Logger, store gcp.PoolStore, usageRepo usage.Repo, window time.Duration, rng *rand.Rand) SelectionTracker {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &selectionTracker{
		log:       log.With("service", "SelectionTracker"),
		store:     store,
		usageRepo: usageRepo,
		window:    window,
		rng:       rng,
	}
}

func (st *selectionTracker) Select(dbc dbctx.Context, accountID string, pool domain.Pool, count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("selection count must be positive, got %d", count)
	}

	ids, err := st.store.ListAssets(dbc.Ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("list pool %s: %w", pool, err)
	}
	if len(ids) == 0 {
		return nil, &domain.EmptyPoolError{Pool: pool}
	}

	now := time.Now().UTC()
	entries, err := st.usageRepo.EntriesSince(dbc, accountID, pool, now.Add(-st.window))
	if err != nil {
		return nil, fmt.Errorf("load usage history for %s/%s: %w", accountID, pool, err)
	}

	// Latest use per asset inside the window.
	lastUsed := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		if t, ok := lastUsed[e.AssetID]; !ok || e.UsedAt.After(t) {
			lastUsed[e.AssetID] = e.UsedAt
		}
	}

	fresh := make([]string, 0, len(ids))
	used := make([]string, 0, len(lastUsed))
	for _, id := range ids {
		if _, ok := lastUsed[id]; ok {
			used = append(used, id)
		} else {
			fresh = append(fresh, id)
		}
	}

	st.rng.Shuffle(len(fresh), func(i, j int) { fresh[i], fresh[j] = fresh[j], fresh[i] })

	// Window relaxation: re-admit used assets oldest-first until the
	// request is satisfiable.
	sort.Slice(used, func(i, j int) bool {
		ti, tj := lastUsed[used[i]], lastUsed[used[j]]
		if ti.Equal(tj) {
			return used[i] < used[j]
		}
		return ti.Before(tj)
	})

	candidates := append(fresh, used...)

	chosen := make([]string, 0, count)
	for i := 0; len(chosen) < count; i++ {
		// Pool smaller than count: wrap around and allow repeats rather
		// than fail.
		chosen = append(chosen, candidates[i%len(candidates)])
	}
	if len(chosen) > len(fresh) {
		st.log.Warn("Selection degraded to recently used assets",
			"account", accountID,
			"pool", string(pool),
			"requested", count,
			"fresh", len(fresh),
			"pool_size", len(ids),
		)
	}

	rows := make([]*domain.UsageEntry, 0, len(chosen))
	for _, id := range chosen {
		rows = append(rows, &domain.UsageEntry{
			ID:        uuid.New(),
			AccountID: accountID,
			Pool:      pool,
			AssetID:   id,
			UsedAt:    now,
		})
	}
	if err := st.usageRepo.Append(dbc, rows); err != nil {
		return nil, fmt.Errorf("record selections for %s/%s: %w", accountID, pool, err)
	}

	return chosen, nil
}
