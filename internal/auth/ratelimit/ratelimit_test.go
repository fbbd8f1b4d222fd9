package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBurstThenRefill(t *testing.T) {
	l := New(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("k", 2, 3), "burst token %d", i)
	}
	assert.False(t, l.Allow("k", 2, 3))
	assert.True(t, l.Allow("other", 2, 3), "keys are independent")

	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.Allow("k", 2, 3))
	assert.False(t, l.Allow("k", 2, 3))

	now = now.Add(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("k", 2, 3))
	}
	assert.False(t, l.Allow("k", 2, 3), "refill is capped at burst")
}

func TestZeroRateIsUnlimited(t *testing.T) {
	l := New(time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("k", 0, 1))
	}
	assert.Zero(t, l.Len())
}

func TestSweepAndReset(t *testing.T) {
	l := New(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("a", 1, 1)
	l.Allow("b", 1, 1)
	l.Reset("b")
	assert.Equal(t, 1, l.Len())

	now = now.Add(2 * time.Minute)
	l.sweep()
	assert.Zero(t, l.Len())
}
