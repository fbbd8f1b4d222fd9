package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(retryable func(error) bool) RetryConfig {
	return RetryConfig{
		MaxAttempts:  4,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Retryable:    retryable,
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("password authentication failed")
	calls := 0
	err := Retry(context.Background(), "ping", fastRetry(func(err error) bool {
		return !errors.Is(err, permanent)
	}), func() error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "ping", fastRetry(nil), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "ping", fastRetry(nil), func() error {
		calls++
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 4 attempts failed")
	assert.Equal(t, 4, calls)
}
