package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gridhq/tablecache/internal/filter"
	"github.com/gridhq/tablecache/internal/models"
	"github.com/gridhq/tablecache/internal/schema"
	"github.com/gridhq/tablecache/pkg/logger"
	"github.com/gridhq/tablecache/pkg/metrics"
)

// ErrMiss signals that a table has no live cache entry. It is normal
// control flow, not a failure: the caller refills via the remote source
// and retries.
var ErrMiss = errors.New("cache: miss")

// Record is one mirrored row as handed over by the remote-refill
// provider.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Page describes result pagination.
type Page struct {
	Page    int
	PerPage int
}

// Store owns the per-table mirrored row sets and their TTL metadata.
// Each mirrored table lives in its own dynamically created mirror
// table; refresh builds a new mirror and publishes it with a single
// metadata swap so readers never observe a partially rebuilt row set.
type Store struct {
	db    *gorm.DB
	now   func() time.Time
	locks sync.Map // table_id -> *sync.Mutex
}

// Option customises a Store.
type Option func(*Store)

// WithNow overrides the clock, primarily for testing.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs a Store on the primary database.
func NewStore(db *gorm.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("cache: database handle must be provided")
	}
	s := &Store{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// refreshLock returns the per-table mutex serialising refreshes. A
// per-table exclusion avoids contention across unrelated tables.
func (s *Store) refreshLock(tableID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(tableID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Get returns the live cache entry for a table. Absent and expired
// entries both report ErrMiss; expired rows are not evicted here, the
// next refresh simply overwrites them.
func (s *Store) Get(ctx context.Context, tableID string) (*models.TableCache, error) {
	var entry models.TableCache
	err := s.db.WithContext(ctx).Take(&entry, "table_id = ?", tableID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	if entry.Expired(s.now()) {
		return nil, ErrMiss
	}
	return &entry, nil
}

// TimeRemaining returns the non-negative duration until the entry
// expires, zero when it is absent or already expired.
func (s *Store) TimeRemaining(ctx context.Context, tableID string) (time.Duration, error) {
	entry, err := s.Get(ctx, tableID)
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return entry.TimeRemaining(s.now()), nil
}

// Schema returns the schema snapshot stored with the table's last
// refresh. ok is false when no snapshot has been stored yet.
func (s *Store) Schema(ctx context.Context, tableID string) (schema.Snapshot, bool, error) {
	var row models.TableSchema
	err := s.db.WithContext(ctx).Take(&row, "table_id = ?", tableID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return schema.Snapshot{}, false, nil
	}
	if err != nil {
		return schema.Snapshot{}, false, err
	}

	var fields []schema.Field
	if err := json.Unmarshal(row.Fields, &fields); err != nil {
		return schema.Snapshot{}, false, fmt.Errorf("cache: decode schema snapshot: %w", err)
	}
	return schema.NewSnapshot(fields), true, nil
}

// Refresh replaces the table's mirror and metadata from a full remote
// row set. The new mirror table is fully built before the metadata row
// is swapped to point at it, so concurrent readers see either the old
// or the new mirror, never a mix. Refreshes for the same table are
// serialised; last writer wins.
func (s *Store) Refresh(ctx context.Context, tableID string, ttl time.Duration, snap schema.Snapshot, rows []Record) (*models.TableCache, error) {
	if tableID == "" {
		return nil, errors.New("cache: table id must be provided")
	}
	if ttl <= 0 {
		return nil, errors.New("cache: ttl must be positive")
	}

	mu := s.refreshLock(tableID)
	mu.Lock()
	defer mu.Unlock()

	log := logger.WithTable("cache", tableID)
	start := s.now()

	var previous models.TableCache
	hadPrevious := s.db.WithContext(ctx).
		Take(&previous, "table_id = ?", tableID).Error == nil

	storageID := newStorageIdentifier(tableID)

	now := s.now()
	entry := models.TableCache{
		TableID:           tableID,
		StorageIdentifier: storageID,
		CachedAt:          now,
		ExpiresAt:         now.Add(ttl),
		TTLSeconds:        int(ttl / time.Second),
	}

	fieldsJSON, err := json.Marshal(snap.Fields())
	if err != nil {
		return nil, fmt.Errorf("cache: encode schema snapshot: %w", err)
	}

	cols := mirrorColumns(snap, rows)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createMirrorTable(tx, storageID, cols); err != nil {
			return err
		}
		if err := insertMirrorRows(tx, storageID, cols, rows); err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "table_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"storage_identifier", "cached_at", "expires_at", "ttl_seconds", "updated_at",
			}),
		}).Create(&entry).Error; err != nil {
			return err
		}

		schemaRow := models.TableSchema{TableID: tableID, Fields: fieldsJSON}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "table_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fields", "updated_at"}),
		}).Create(&schemaRow).Error
	})
	if err != nil {
		// The half-built mirror is unreachable; the sweeper reclaims it.
		metrics.CacheRefreshes.WithLabelValues(tableID, "error").Inc()
		return nil, fmt.Errorf("cache: refresh %s: %w", tableID, err)
	}

	if hadPrevious && previous.StorageIdentifier != "" && previous.StorageIdentifier != storageID {
		if dropErr := s.db.WithContext(ctx).Migrator().DropTable(previous.StorageIdentifier); dropErr != nil {
			log.Warn("dropping superseded mirror table failed",
				zap.String("storage_identifier", previous.StorageIdentifier),
				zap.Error(dropErr),
			)
		}
	}

	metrics.CacheRefreshes.WithLabelValues(tableID, "ok").Inc()
	metrics.RefreshDuration.WithLabelValues(tableID).Observe(s.now().Sub(start).Seconds())
	log.Info("cache refreshed",
		zap.Int("rows", len(rows)),
		zap.Duration("ttl", ttl),
	)

	return &entry, nil
}

// Execute runs a compiled predicate against the entry's mirror. The
// flat path chains each condition conjunctively; a compound clause is
// applied as a single parameterized WHERE.
func (s *Store) Execute(ctx context.Context, entry *models.TableCache, compiled filter.Compiled, fields []string, page Page) ([]map[string]any, int64, error) {
	if entry == nil {
		return nil, 0, errors.New("cache: entry must be provided")
	}

	q := s.db.WithContext(ctx).Table(entry.StorageIdentifier)

	switch {
	case compiled.Clause != nil:
		q = q.Where(compiled.Clause.SQL, compiled.Clause.Args...)
	case len(compiled.Conditions) > 0:
		for _, cond := range compiled.Conditions {
			frag, args, err := s.BuildCondition(cond)
			if err != nil {
				return nil, 0, err
			}
			q = q.Where(frag, args...)
		}
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if len(fields) > 0 {
		cols := make([]string, 0, len(fields)+1)
		cols = append(cols, "record_id")
		for _, f := range fields {
			cols = append(cols, columnName(f))
		}
		q = q.Select(cols)
	}

	q = q.Order("record_id")
	if page.PerPage > 0 {
		offset := 0
		if page.Page > 1 {
			offset = (page.Page - 1) * page.PerPage
		}
		q = q.Offset(offset).Limit(page.PerPage)
	}

	var raw []map[string]any
	if err := q.Find(&raw).Error; err != nil {
		return nil, 0, err
	}

	out := make([]map[string]any, 0, len(raw))
	for _, row := range raw {
		out = append(out, decodeMirrorRow(row))
	}
	return out, total, nil
}

// Purge drops mirrors and metadata for entries expired longer than the
// grace period. Live and freshly expired entries are left for the next
// refresh to overwrite.
func (s *Store) Purge(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.now().Add(-grace)

	var stale []models.TableCache
	if err := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Find(&stale).Error; err != nil {
		return 0, err
	}

	purged := 0
	for i := range stale {
		entry := stale[i]
		mu := s.refreshLock(entry.TableID)
		mu.Lock()
		reclaimed := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Re-check under the lock; a concurrent refresh may have
			// revived the entry, or a competing sweep already removed it.
			var current models.TableCache
			if err := tx.Take(&current, "table_id = ?", entry.TableID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			if current.ExpiresAt.After(cutoff) {
				return nil
			}
			if err := tx.Delete(&models.TableCache{}, "table_id = ?", entry.TableID).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.TableSchema{}, "table_id = ?", entry.TableID).Error; err != nil {
				return err
			}
			reclaimed = true
			return tx.Migrator().DropTable(current.StorageIdentifier)
		})
		mu.Unlock()
		if err != nil {
			return purged, err
		}
		if reclaimed {
			purged++
			logger.WithTable("cache", entry.TableID).Info("stale mirror reclaimed",
				zap.String("storage_identifier", entry.StorageIdentifier))
		}
	}

	return purged, nil
}

// ExpiredCount reports how many entries are currently stale, for the
// maintenance sweeper's accounting.
func (s *Store) ExpiredCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TableCache{}).
		Where("expires_at <= ?", s.now()).
		Count(&count).Error
	return count, err
}

func newStorageIdentifier(tableID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("mirror_%s_%s", sanitizeIdentifier(tableID), suffix)
}
