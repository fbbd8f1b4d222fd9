// Package stats caches the registry-wide statistics. The snapshot lives
// for a TTL; the first request that finds it expired recomputes it while
// concurrent readers wait on the same computation.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/metrics"
)

const computeTimeout = 60 * time.Second

// Source computes fresh statistics.
type Source interface {
	Stats(ctx context.Context) (contracts.Stats, error)
}

// Snapshot is a computed statistics value and its age.
type Snapshot struct {
	contracts.Stats
	ComputedAt time.Time `json:"computed_at"`
	Stale      bool      `json:"stale,omitempty"`
}

// Cache serves statistics from memory, recomputing at most once at a time.
type Cache struct {
	src     Source
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	current *Snapshot
	expired bool
}

// New creates a Cache. m may be nil.
func New(src Source, ttl time.Duration, m *metrics.Metrics) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		src:     src,
		ttl:     ttl,
		now:     time.Now,
		metrics: m,
		logger:  logger.WithComponent("stats-cache"),
	}
}

func (c *Cache) fresh() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil || c.expired || c.now().Sub(c.current.ComputedAt) >= c.ttl {
		return Snapshot{}, false
	}
	return *c.current, true
}

// Get returns the cached statistics, recomputing them if expired. When a
// recomputation fails the previous snapshot is served marked stale; only
// a failure with nothing cached is returned as an error.
func (c *Cache) Get(ctx context.Context) (Snapshot, error) {
	if s, ok := c.fresh(); ok {
		return s, nil
	}

	ch := c.group.DoChan("stats", func() (any, error) {
		if s, ok := c.fresh(); ok {
			return s, nil
		}
		// Detached so one caller hanging up does not fail the others.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		st, err := c.src.Stats(cctx)
		if err != nil {
			c.count("error")
			return nil, err
		}
		s := Snapshot{Stats: st, ComputedAt: c.now()}
		c.mu.Lock()
		c.current = &s
		c.expired = false
		c.mu.Unlock()
		c.count("ok")
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(Snapshot), nil
		}
		return c.stale(ctx, res.Err)
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (c *Cache) stale(ctx context.Context, err error) (Snapshot, error) {
	c.mu.RLock()
	prev := c.current
	c.mu.RUnlock()
	if prev == nil {
		return Snapshot{}, fmt.Errorf("computing statistics: %w", err)
	}
	logger.FromContext(ctx).Warn("serving stale statistics", "component", "stats-cache", "computed_at", prev.ComputedAt, "error", err)
	s := *prev
	s.Stale = true
	return s, nil
}

// Invalidate forces the next Get to recompute. The old snapshot is kept
// as the stale fallback.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.expired = true
	c.mu.Unlock()
	c.logger.Info("statistics invalidated")
}

func (c *Cache) count(status string) {
	if c.metrics != nil {
		c.metrics.StatsRefreshTotal.WithLabelValues(status).Inc()
	}
}
