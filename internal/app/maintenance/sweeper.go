package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gridhq/tablecache/internal/cache"
	"github.com/gridhq/tablecache/pkg/logger"
)

const (
	defaultSchedule = "@hourly"
	defaultGrace    = 24 * time.Hour
)

// Sweeper periodically reports stale cache entries and reclaims mirror
// tables whose entries have been expired for longer than the grace
// period. Freshly expired entries are left alone: the next query
// refresh overwrites them in place.
type Sweeper struct {
	store    *cache.Store
	cron     *cron.Cron
	log      *zap.Logger
	schedule string
	grace    time.Duration
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithSchedule overrides the cron specification for sweep runs.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithGrace adjusts how long an entry stays expired before its mirror
// is reclaimed.
func WithGrace(grace time.Duration) Option {
	return func(s *Sweeper) {
		if grace > 0 {
			s.grace = grace
		}
	}
}

// NewSweeper constructs a Sweeper over the cache store.
func NewSweeper(store *cache.Store, opts ...Option) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("maintenance: cache store must be provided")
	}

	s := &Sweeper{
		store:    store,
		cron:     cron.New(),
		log:      logger.WithModule("maintenance"),
		schedule: defaultSchedule,
		grace:    defaultGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce performs a single sweep pass.
func (s *Sweeper) RunOnce(ctx context.Context) {
	expired, err := s.store.ExpiredCount(ctx)
	if err != nil {
		s.log.Error("counting expired cache entries failed", zap.Error(err))
		return
	}

	purged, err := s.store.Purge(ctx, s.grace)
	if err != nil {
		s.log.Error("purging stale mirrors failed", zap.Error(err))
	}

	s.log.Info("sweep complete",
		zap.Int64("expired_entries", expired),
		zap.Int("purged_mirrors", purged),
	)
}
