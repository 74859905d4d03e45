package domain

import (
	"time"

	"github.com/google/uuid"
)

// UsageEntry is one append-only usage-history record: this asset was
// selected for this account's pool at this time. Entries age out of
// consideration per the retention window and are eventually pruned.
type UsageEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID string    `gorm:"type:text;not null;index:idx_usage_account_pool,priority:1" json:"account_id"`
	Pool      Pool      `gorm:"type:text;not null;index:idx_usage_account_pool,priority:2" json:"pool"`
	AssetID   string    `gorm:"type:text;not null" json:"asset_id"`
	UsedAt    time.Time `gorm:"not null;index" json:"used_at"`
}

func (UsageEntry) TableName() string { return "usage_entry" }
