package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gridhq/tablecache/internal/cache"
	"github.com/gridhq/tablecache/internal/dates"
	"github.com/gridhq/tablecache/internal/filter"
	"github.com/gridhq/tablecache/internal/models"
	"github.com/gridhq/tablecache/internal/requestctx"
	"github.com/gridhq/tablecache/internal/schema"
	apperrors "github.com/gridhq/tablecache/pkg/errors"
	"github.com/gridhq/tablecache/pkg/logger"
	"github.com/gridhq/tablecache/pkg/metrics"
)

const (
	defaultPerPage = 100
	maxPerPage     = 500
)

// RecordSource supplies a full row set for a table on cache miss. The
// service performs exactly one fetch per miss; retries are the
// caller's concern.
type RecordSource interface {
	FetchRows(ctx context.Context, tableID string) ([]cache.Record, error)
}

// QueryServiceConfig carries the tunable cache policy.
type QueryServiceConfig struct {
	DefaultTTL       time.Duration
	StrictValidation bool
}

// QueryService runs the compile, lookup, refill and execute sequence
// for one query request.
type QueryService struct {
	store    *cache.Store
	schemas  schema.Provider
	source   RecordSource
	compiler *filter.Compiler
	ttl      time.Duration
	log      *zap.Logger
}

// NewQueryService wires the query pipeline. schemas may be nil, in
// which case validation runs only against previously stored snapshots.
func NewQueryService(store *cache.Store, schemas schema.Provider, source RecordSource, resolver *dates.Resolver, cfg QueryServiceConfig) (*QueryService, error) {
	if store == nil {
		return nil, errors.New("services: cache store must be provided")
	}
	if source == nil {
		return nil, errors.New("services: record source must be provided")
	}
	if resolver == nil {
		resolver = dates.NewResolver("")
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}

	compiler := filter.NewCompiler(
		filter.NewConverter(resolver),
		filter.NewValidator(),
		store,
		cfg.StrictValidation,
	)

	return &QueryService{
		store:    store,
		schemas:  schemas,
		source:   source,
		compiler: compiler,
		ttl:      ttl,
		log:      logger.WithModule("query"),
	}, nil
}

// QueryInput is the caller-facing query payload.
type QueryInput struct {
	Filter  json.RawMessage `json:"filter"`
	Fields  []string        `json:"fields"`
	Page    int             `json:"page" validate:"gte=0"`
	PerPage int             `json:"per_page" validate:"gte=0,lte=500"`
}

// QueryResult is the paginated outcome of one query.
type QueryResult struct {
	Records  []map[string]any `json:"records"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PerPage  int              `json:"per_page"`
	CacheHit bool             `json:"cache_hit"`
}

// Query serves one query request from the mirror, refilling it from
// the remote source when the cache entry is missing or expired.
func (s *QueryService) Query(ctx context.Context, tableID string, input QueryInput) (*QueryResult, error) {
	if tableID == "" {
		return nil, apperrors.NewBadRequest("table id must be provided")
	}

	tree, err := filter.ParseTree(input.Filter)
	if err != nil {
		return nil, err
	}

	status, _ := requestctx.FromContext(ctx)

	entry, err := s.store.Get(ctx, tableID)
	hit := err == nil
	if errors.Is(err, cache.ErrMiss) {
		entry, err = s.refill(ctx, tableID)
	}
	if err != nil {
		return nil, err
	}

	status.Mark(hit)
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues(tableID, result).Inc()

	snap := s.snapshot(ctx, tableID)

	compiled, err := s.compiler.Compile(tree, snap)
	if err != nil {
		return nil, err
	}

	page, perPage := normalisePage(input.Page, input.PerPage)
	records, total, err := s.store.Execute(ctx, entry, compiled, projection(input.Fields, snap), cache.Page{
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		Records:  records,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		CacheHit: hit,
	}, nil
}

func (s *QueryService) refill(ctx context.Context, tableID string) (*models.TableCache, error) {
	rows, err := s.source.FetchRows(ctx, tableID)
	if err != nil {
		return nil, err
	}

	snap := schema.Snapshot{}
	if s.schemas != nil {
		fetched, err := s.schemas.Schema(ctx, tableID)
		if err != nil {
			// Schema is best-effort: a refill without one still serves
			// rows, it just skips operator validation.
			s.log.Warn("schema fetch failed, continuing without validation",
				zap.String("table_id", tableID), zap.Error(err))
		} else {
			snap = fetched
		}
	}

	return s.store.Refresh(ctx, tableID, s.ttl, snap, rows)
}

func (s *QueryService) snapshot(ctx context.Context, tableID string) schema.Snapshot {
	snap, ok, err := s.store.Schema(ctx, tableID)
	if err != nil {
		s.log.Warn("stored schema unavailable", zap.String("table_id", tableID), zap.Error(err))
		return schema.Snapshot{}
	}
	if !ok {
		return schema.Snapshot{}
	}
	return snap
}

// projection keeps only requested fields the schema knows about; with
// no schema available the request list is trusted as-is.
func projection(fields []string, snap schema.Snapshot) []string {
	if len(fields) == 0 || snap.Len() == 0 {
		return fields
	}
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := snap.TypeOf(f); ok {
			kept = append(kept, f)
		}
	}
	return kept
}

func normalisePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage <= 0:
		perPage = defaultPerPage
	case perPage > maxPerPage:
		perPage = maxPerPage
	}
	return page, perPage
}

// CacheInfo describes a table's cache entry for the inspection endpoint.
type CacheInfo struct {
	Cached           bool               `json:"cached"`
	Entry            *models.TableCache `json:"entry,omitempty"`
	RemainingSeconds int64              `json:"remaining_seconds"`
}

// CacheInfo reports the entry metadata and time remaining for a table.
// A missing or expired entry reports cached=false rather than an error.
func (s *QueryService) CacheInfo(ctx context.Context, tableID string) (*CacheInfo, error) {
	entry, err := s.store.Get(ctx, tableID)
	if errors.Is(err, cache.ErrMiss) {
		return &CacheInfo{Cached: false}, nil
	}
	if err != nil {
		return nil, err
	}

	remaining, err := s.store.TimeRemaining(ctx, tableID)
	if err != nil {
		return nil, err
	}

	return &CacheInfo{
		Cached:           true,
		Entry:            entry,
		RemainingSeconds: int64(remaining / time.Second),
	}, nil
}
