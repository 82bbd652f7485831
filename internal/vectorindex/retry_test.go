package vectorindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(n int) RetryConfig {
	return RetryConfig{MaxRetries: n, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
}

func TestRetryWithBackoff(t *testing.T) {
	errBusy := errors.New("busy")

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		got, err := retryWithBackoff(context.Background(), fastRetry(3), func() (string, error) {
			calls++
			if calls < 3 {
				return "", errBusy
			}
			return "ready", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ready", got)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error", func(t *testing.T) {
		calls := 0
		_, err := retryWithBackoff(context.Background(), fastRetry(2), func() (int, error) {
			calls++
			return 0, errBusy
		})
		assert.ErrorIs(t, err, errBusy)
		assert.Equal(t, 2, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := retryWithBackoff(ctx, fastRetry(5), func() (int, error) {
			return 0, errBusy
		})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("zero retries still attempts once", func(t *testing.T) {
		calls := 0
		_, _ = retryWithBackoff(context.Background(), RetryConfig{}, func() (int, error) {
			calls++
			return 0, errBusy
		})
		assert.Equal(t, 1, calls)
	})
}
