// Package ratelimit is an in-memory token bucket keyed by caller.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter refills each key's bucket continuously at its rate, up to burst.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	idle    time.Duration
	now     func() time.Time
}

// New creates a Limiter. Buckets untouched for idle are forgotten by
// Run's sweeps.
func New(idle time.Duration) *Limiter {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &Limiter{
		entries: make(map[string]*entry),
		idle:    idle,
		now:     time.Now,
	}
}

// Allow consumes one token from key's bucket. rate is in tokens per
// second; a non-positive rate disables limiting for the key.
func (l *Limiter) Allow(key string, rate float64, burst int) bool {
	if rate <= 0 {
		return true
	}
	if burst < 1 {
		burst = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		l.entries[key] = &entry{tokens: float64(burst - 1), lastCheck: now}
		return true
	}
	e.tokens = min(e.tokens+now.Sub(e.lastCheck).Seconds()*rate, float64(burst))
	e.lastCheck = now
	if e.tokens < 1 {
		return false
	}
	e.tokens--
	return true
}

// Reset clears the state for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run sweeps idle buckets until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.idle)
	for key, e := range l.entries {
		if e.lastCheck.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
