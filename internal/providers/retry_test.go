package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithRetry(t *testing.T) {
	t.Run("succeeds on the first attempt", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("recovers after a transient failure", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			if calls < 2 {
				return errors.New("transient")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("returns the last error when attempts are exhausted", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), 2, time.Millisecond, func() error {
			calls++
			return errors.New("still failing")
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "still failing")
		assert.Equal(t, 2, calls)
	})

	t.Run("stops when the context is canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := withRetry(ctx, 5, 10*time.Millisecond, func() error {
			calls++
			return errors.New("failing")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still run once", func(t *testing.T) {
		calls := 0
		_ = withRetry(context.Background(), 0, time.Millisecond, func() error {
			calls++
			return nil
		})
		assert.Equal(t, 1, calls)
	})
}
