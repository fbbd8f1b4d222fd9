// Package tracing records lightweight span trees for search requests. A
// root span is opened per request, each store stage opens a child, and the
// finished tree is written to slog when the request was sampled.
package tracing

import (
	"context"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

type contextKey struct{}

// sampler holds the process-wide sampling decision inputs.
var sampler struct {
	enabled atomic.Bool
	rate    atomic.Uint64 // sample rate scaled to [0, 1<<32]
}

// Configure enables span logging for a fraction of root spans. rate is
// clamped to [0, 1].
func Configure(enabled bool, rate float64) {
	rate = min(max(rate, 0), 1)
	sampler.enabled.Store(enabled)
	sampler.rate.Store(uint64(rate * (1 << 32)))
}

func sample() bool {
	if !sampler.enabled.Load() {
		return false
	}
	return rand.Uint64N(1<<32) < sampler.rate.Load()
}

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Sampled   bool

	mu       sync.Mutex
	children []*Span
	attrs    map[string]any
}

// StartSpan opens a root span and makes the sampling decision for its tree.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Sampled:   sample(),
		attrs:     make(map[string]any),
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan opens a span under the one in ctx. Without a parent the
// span is detached and never logged.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{
		Name:      name,
		StartTime: time.Now(),
		attrs:     make(map[string]any),
	}
	if parent := SpanFromContext(ctx); parent != nil {
		child.TraceID = parent.TraceID
		child.Sampled = parent.Sampled
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

// End records the span's duration.
func (s *Span) End() {
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.mu.Unlock()
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// Attr returns a previously set attribute.
func (s *Span) Attr(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attrs[key]
	return v, ok
}

// Children returns a snapshot of the span's direct children.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.children)
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(contextKey{}).(*Span); ok {
		return span
	}
	return nil
}

// Log writes the span tree to slog if it was sampled.
func (s *Span) Log() {
	if !s.Sampled {
		return
	}
	s.logRecursive(0)
}

func (s *Span) logRecursive(depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	for _, k := range slices.Sorted(maps.Keys(s.attrs)) {
		attrs = append(attrs, k, s.attrs[k])
	}
	children := slices.Clone(s.children)
	s.mu.Unlock()

	slog.Info("span", attrs...)
	for _, child := range children {
		child.logRecursive(depth + 1)
	}
}
