package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/notely/internal/cache"
	"github.com/charlesng35/notely/pkg/logger"
	"github.com/charlesng35/notely/pkg/metrics"
)

const defaultCacheSpec = "@hourly"

// Cleaner runs background maintenance, currently purging expired cache entries
// such as elapsed rate limit windows.
type Cleaner struct {
	purgers []cache.Purger
	cron    *cron.Cron
	log     *zap.Logger

	cacheSchedule string
	now           func() time.Time

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache purging.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// WithLogger overrides the maintenance logger.
func WithLogger(log *zap.Logger) Option {
	return func(cleaner *Cleaner) {
		if log != nil {
			cleaner.log = log
		}
	}
}

// NewCleaner constructs a Cleaner for the supplied purgers. Nil purgers are ignored.
func NewCleaner(purgers []cache.Purger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		cacheSchedule: defaultCacheSpec,
		log:           logger.WithModule("maintenance"),
		now:           time.Now,
	}
	for _, p := range purgers {
		if p != nil {
			cleaner.purgers = append(cleaner.purgers, p)
		}
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if there is work to do.
func (c *Cleaner) Start() error {
	if len(c.purgers) == 0 {
		return nil
	}

	if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("cache purge failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule cache purge: %w", err)
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every purger sequentially and joins their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, purger := range c.purgers {
		removed, err := PurgeCache(ctx, purger)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if removed > 0 {
			c.log.Debug("purged expired cache entries", zap.Int64("removed", removed))
		}
	}

	c.mu.Lock()
	c.lastRun = c.now()
	c.lastErr = errs
	c.mu.Unlock()
	return errs
}

// LastRun reports when RunOnce last completed and the error it returned.
// The zero time means no run has happened yet.
func (c *Cleaner) LastRun() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun, c.lastErr
}

// PurgeCache drops expired entries from a single purger and records the metric.
func PurgeCache(ctx context.Context, purger cache.Purger) (int64, error) {
	if purger == nil {
		return 0, errors.New("purge cache: purger is required")
	}

	removed, err := purger.PurgeExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	metrics.CachePurged.Add(float64(removed))
	return removed, nil
}
