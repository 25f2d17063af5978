package retry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSleeps(t *testing.T) *[]time.Duration {
	var sleeps []time.Duration

	original := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}

	t.Cleanup(func() {
		sleepFunc = original
	})

	return &sleeps
}

func TestRetry(t *testing.T) {
	logger := ulogger.TestLogger{}
	ctx := context.Background()

	t.Run("succeeds first time", func(t *testing.T) {
		sleeps := recordSleeps(t)

		result, err := Retry(ctx, logger, func() (string, error) {
			return "success", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "success", result)
		assert.Empty(t, *sleeps)
	})

	t.Run("fails once then succeeds", func(t *testing.T) {
		sleeps := recordSleeps(t)
		calls := 0

		result, err := Retry(ctx, logger, func() (string, error) {
			calls++
			if calls == 1 {
				return "", errors.NewProcessingError("error")
			}

			return "success", nil
		}, WithRetryCount(3), WithBackoffMultiplier(2), WithBackoffDurationType(100*time.Millisecond))
		require.NoError(t, err)
		assert.Equal(t, "success", result)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []time.Duration{100 * time.Millisecond}, *sleeps)
	})

	t.Run("always fails, no sleep after last attempt", func(t *testing.T) {
		sleeps := recordSleeps(t)
		calls := 0

		_, err := Retry(ctx, logger, func() (int, error) {
			calls++
			return 0, errors.NewProcessingError("persistent error")
		}, WithRetryCount(3), WithFixedBackoff(10*time.Second))
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, *sleeps)
	})

	t.Run("non retryable error returns immediately", func(t *testing.T) {
		sleeps := recordSleeps(t)
		calls := 0

		_, err := Retry(ctx, logger, func() (int, error) {
			calls++
			return 0, errors.NewServiceError("Validation failed")
		}, WithRetryIf(func(err error) bool {
			return strings.Contains(err.Error(), "indexer out of sync")
		}))
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Empty(t, *sleeps)
	})

	t.Run("exponential backoff is capped", func(t *testing.T) {
		sleeps := recordSleeps(t)

		_, err := Retry(ctx, logger, func() (int, error) {
			return 0, errors.NewProcessingError("error")
		}, WithRetryCount(5), WithExponentialBackoff(), WithBackoffDurationType(50*time.Millisecond),
			WithBackoffFactor(2.0), WithMaxBackoff(150*time.Millisecond))
		require.Error(t, err)
		assert.Equal(t, []time.Duration{
			50 * time.Millisecond,
			100 * time.Millisecond,
			150 * time.Millisecond,
			150 * time.Millisecond,
		}, *sleeps)
	})

	t.Run("cancelled context", func(t *testing.T) {
		recordSleeps(t)

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := Retry(cctx, logger, func() (int, error) {
			return 1, nil
		})
		assert.Equal(t, context.Canceled, err)
	})
}

func TestCappedExponentialBackoff(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, CappedExponentialBackoff(100*time.Millisecond, 2.0, time.Second))
	assert.Equal(t, time.Second, CappedExponentialBackoff(600*time.Millisecond, 2.0, time.Second))
	assert.Equal(t, 150*time.Millisecond, CappedExponentialBackoff(100*time.Millisecond, 1.5, time.Second))
}

func TestBackoffAndSleep(t *testing.T) {
	t.Run("completes sleep successfully", func(t *testing.T) {
		start := time.Now()
		err := BackoffAndSleep(context.Background(), 1, 1, 10*time.Millisecond)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("returns early on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := BackoffAndSleep(ctx, 5, 5, time.Hour)
		assert.Equal(t, context.Canceled, err)
	})
}
