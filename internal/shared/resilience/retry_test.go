package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordWaits(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestDoValRetriesWithExponentialBackoff(t *testing.T) {
	var waits []time.Duration
	calls := 0
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		Multiplier:     2,
		Wait:           recordWaits(&waits),
	}

	val, err := DoVal(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("429")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)
}

func TestDoValStopsOnNonRetryable(t *testing.T) {
	var waits []time.Duration
	calls := 0
	permanent := errors.New("bad request")
	cfg := RetryConfig{
		Wait:        recordWaits(&waits),
		ShouldRetry: func(err error) bool { return !errors.Is(err, permanent) },
	}
	_, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.Empty(t, waits)
}

func TestDoValReturnsLastErrorWhenExhausted(t *testing.T) {
	var waits []time.Duration
	calls := 0
	_, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 3, Wait: recordWaits(&waits)}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("still busy")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, waits, 2)
}

func TestDoValHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := DoVal(ctx, RetryConfig{}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("busy")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestComputeBackoffCapsAtMax(t *testing.T) {
	cfg := applyDefaults(RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Multiplier: 10})
	cfg.JitterFraction = 0
	assert.Equal(t, 3*time.Second, ComputeBackoff(2, cfg))
}
