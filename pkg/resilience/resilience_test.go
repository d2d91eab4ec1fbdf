package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/errors"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", RetryConfig{MaxAttempts: 4, InitialDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), "broken", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, "cancelled", RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}, func() error {
		calls++
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoffCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, Backoff(1, cfg))
	assert.Equal(t, 200*time.Millisecond, Backoff(2, cfg))
	assert.Equal(t, 300*time.Millisecond, Backoff(3, cfg))
	assert.Equal(t, 300*time.Millisecond, Backoff(10, cfg))
}

func TestWithTimeoutReturnsErrTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return ctx.Err()
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

func TestWithTimeoutPassesResult(t *testing.T) {
	want := errors.New("from fn")
	err := WithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) error {
		return want
	})
	assert.Equal(t, want, err)

	assert.NoError(t, WithTimeout(context.Background(), 0, "unbounded", func(ctx context.Context) error {
		return nil
	}))
}
