package usage

import (
	"time"

	"gorm.io/gorm"

	"github.com/halcyonlabs/carousel-pipeline/internal/domain"
	"github.com/halcyonlabs/carousel-pipeline/internal/pkg/dbctx"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
)

// Repo is the append-only usage-history store, partitioned by
// (account, pool). Only the selection tracker writes to it.
type Repo interface {
	Append(dbc dbctx.Context, rows []*domain.UsageEntry) error

	// EntriesSince returns the partition's entries with used_at >= since,
	// oldest first.
	EntriesSince(dbc dbctx.Context, accountID string, pool domain.Pool, since time.Time) ([]*domain.UsageEntry, error)

	// PruneBefore deletes entries older than cutoff across all partitions.
	PruneBefore(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{db: db, log: baseLog.With("repo", "UsageRepo")}
}

func (r *repo) Append(dbc dbctx.Context, rows []*domain.UsageEntry) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *repo) EntriesSince(dbc dbctx.Context, accountID string, pool domain.Pool, since time.Time) ([]*domain.UsageEntry, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*domain.UsageEntry
	if err := t.WithContext(dbc.Ctx).
		Where("account_id = ? AND pool = ? AND used_at >= ?", accountID, pool, since).
		Order("used_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) PruneBefore(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).
		Where("used_at < ?", cutoff).
		Delete(&domain.UsageEntry{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Debug("Pruned usage history", "removed", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
