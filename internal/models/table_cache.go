package models

import "time"

// TableCache holds the TTL metadata for one mirrored table. The row set
// itself lives in a dedicated mirror table named by StorageIdentifier.
type TableCache struct {
	TableID           string    `gorm:"primaryKey;size:64" json:"table_id"`
	StorageIdentifier string    `gorm:"size:128;not null" json:"storage_identifier"`
	CachedAt          time.Time `json:"cached_at"`
	ExpiresAt         time.Time `gorm:"index" json:"expires_at"`
	TTLSeconds        int       `json:"ttl_seconds"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"-"`
}

// TableName overrides the default gorm pluralisation.
func (TableCache) TableName() string { return "table_caches" }

// Expired reports whether the entry is stale at the given instant.
// Expired entries are indistinguishable from absent ones to callers.
func (t *TableCache) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// TimeRemaining returns the non-negative duration until expiry.
func (t *TableCache) TimeRemaining(now time.Time) time.Duration {
	if t.Expired(now) {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}
