package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/metrics"
)

// Collector buffers search events and publishes them in batches, either
// when batchSize events are waiting or every flushInterval. Tracking never
// blocks a request.
type Collector struct {
	publisher     kafka.Publisher
	batchSize     int
	flushInterval time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger

	mu     sync.Mutex
	buffer []kafka.Event
	kick   chan struct{}
	done   chan struct{}
}

// NewCollector creates a Collector. m may be nil.
func NewCollector(pub kafka.Publisher, batchSize int, flushInterval time.Duration, m *metrics.Metrics) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     pub,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		metrics:       m,
		logger:        logger.WithComponent("analytics-collector"),
		buffer:        make([]kafka.Event, 0, batchSize),
		kick:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. It returns immediately; the loop exits
// with a final flush once ctx is cancelled.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-c.kick:
				c.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track queues an event. When the buffer is full the oldest events are
// dropped.
func (c *Collector) Track(event SearchEvent) {
	event.Classify()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	c.mu.Lock()
	c.buffer = append(c.buffer, kafka.Event{
		Key:     string(event.Type),
		Value:   event,
		Headers: map[string]string{"request_id": event.RequestID},
	})
	c.trimLocked()
	full := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// Close waits for the flush loop started by Start to finish.
func (c *Collector) Close() {
	<-c.done
}

// BufferLen returns the number of events waiting to be published.
func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) trimLocked() {
	limit := c.batchSize * 3
	if len(c.buffer) <= limit {
		return
	}
	dropped := len(c.buffer) - limit
	c.buffer = append(c.buffer[:0], c.buffer[dropped:]...)
	c.record("dropped", dropped)
	c.logger.Warn("analytics buffer overflow, events dropped", "dropped", dropped)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("analytics batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		c.record("failed", len(batch))
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		c.trimLocked()
		c.mu.Unlock()
		return
	}
	c.record("published", len(batch))
	c.logger.Debug("analytics batch flushed", "events", len(batch))
}

func (c *Collector) record(status string, n int) {
	if c.metrics != nil {
		c.metrics.SearchEventsPublished.WithLabelValues(status).Add(float64(n))
	}
}
