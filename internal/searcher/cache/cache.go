// Package cache keeps serialized search responses in Redis. Keys are
// derived from the compiled predicate, so differently spelled requests that
// compile to the same query share an entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/redis"
)

const keyPrefix = "contracts:search:"

// Backend is the key-value store behind the cache; *pkgredis.Client in
// production. A missing key is reported with an error for which
// pkgredis.IsNilError holds.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats reports cache effectiveness since start.
type Stats struct {
	Enabled bool  `json:"enabled"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// QueryCache is safe for concurrent use. A nil *QueryCache is a disabled
// cache: every lookup misses and nothing is stored.
type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  logger.WithComponent("query-cache"),
	}
}

// Key hashes the parts that determine a response. Parts are joined with
// a separator that cannot appear in a rendered predicate.
func Key(kind string, parts ...string) string {
	raw := kind + "\x00" + strings.Join(parts, "\x00")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, kind, hash[:16])
}

func (c *QueryCache) get(ctx context.Context, key string, dst any) bool {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return false
	}
	return true
}

func (c *QueryCache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// GetOrCompute returns the cached value for key or computes it, with
// concurrent misses on one key sharing a single computation. store
// decides whether a computed value may be cached; degraded responses are
// not. The boolean reports a cache hit.
func GetOrCompute[T any](ctx context.Context, c *QueryCache, key string, compute func(context.Context) (T, error), store func(T) bool) (T, bool, error) {
	if c == nil {
		v, err := compute(ctx)
		return v, false, err
	}
	var cached T
	if c.get(ctx, key, &cached) {
		c.hit()
		return cached, true, nil
	}
	c.miss()

	val, err, _ := c.group.Do(key, func() (any, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if store == nil || store(v) {
			c.set(context.WithoutCancel(ctx), key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate drops every cached response.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{Enabled: true, Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// InvalidationEvent is broadcast after data changes so every searcher
// replica drops its caches.
type InvalidationEvent struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleInvalidation returns a consumer handler that runs onInvalidate
// for each received event.
func HandleInvalidation(onInvalidate func(ctx context.Context, reason string)) kafka.MessageHandler {
	return func(ctx context.Context, _ []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[InvalidationEvent](value)
		if err != nil {
			return fmt.Errorf("decoding invalidation event: %w", err)
		}
		onInvalidate(ctx, ev.Reason)
		return nil
	}
}
