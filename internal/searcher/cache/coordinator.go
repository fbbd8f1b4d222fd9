package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
)

// Expirer is a local cache that can be told its contents are stale.
type Expirer interface {
	Invalidate()
}

// Coordinator drops this replica's caches after a data change and, when
// a publisher is set, tells the other replicas to do the same.
type Coordinator struct {
	queries   *QueryCache
	expirers  []Expirer
	publisher kafka.Publisher
	logger    *slog.Logger
}

// NewCoordinator creates a Coordinator. queries and pub may be nil.
func NewCoordinator(queries *QueryCache, pub kafka.Publisher, expirers ...Expirer) *Coordinator {
	return &Coordinator{
		queries:   queries,
		expirers:  expirers,
		publisher: pub,
		logger:    logger.WithComponent("cache-coordinator"),
	}
}

// InvalidateLocal drops this replica's caches only. It returns the number
// of response cache entries removed.
func (c *Coordinator) InvalidateLocal(ctx context.Context, reason string) (int64, error) {
	for _, e := range c.expirers {
		e.Invalidate()
	}
	n, err := c.queries.Invalidate(ctx)
	if err != nil {
		return 0, err
	}
	c.logger.Info("caches invalidated", "reason", reason, "response_entries", n)
	return n, nil
}

// Invalidate drops local caches and broadcasts the change. A failed
// broadcast is logged; the local invalidation still counts.
func (c *Coordinator) Invalidate(ctx context.Context, reason string) (int64, error) {
	n, err := c.InvalidateLocal(ctx, reason)
	if err != nil {
		return 0, err
	}
	if c.publisher != nil {
		ev := kafka.Event{Key: "invalidate", Value: InvalidationEvent{Reason: reason, Timestamp: time.Now().UTC()}}
		if perr := c.publisher.Publish(ctx, ev); perr != nil {
			c.logger.Warn("broadcasting cache invalidation failed", "reason", reason, "error", perr)
		}
	}
	return n, nil
}
