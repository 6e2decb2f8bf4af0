package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDo(t *testing.T) {
	t.Run("Retries until the operation succeeds", func(t *testing.T) {
		attempts := 0
		err := Do(context.Background(), 3, zap.NewNop(), "test", func() error {
			attempts++
			if attempts < 3 {
				return errors.New("unavailable")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("Gives up after the maximum number of retries", func(t *testing.T) {
		attempts := 0
		err := Do(context.Background(), 2, zap.NewNop(), "test", func() error {
			attempts++
			return errors.New("unavailable")
		})
		assert.EqualError(t, err, "unavailable")
		assert.Equal(t, 3, attempts)
	})

	t.Run("Does not retry permanent errors", func(t *testing.T) {
		attempts := 0
		permanent := errors.New("rejected")
		err := Do(context.Background(), 5, zap.NewNop(), "test", func() error {
			attempts++
			return backoff.Permanent(permanent)
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, attempts)
	})
}
