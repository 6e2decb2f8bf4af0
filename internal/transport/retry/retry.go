package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	initialInterval = 100 * time.Millisecond
	maxInterval     = 5 * time.Second
)

// Do runs operation until it succeeds, maxRetries retries have failed or ctx
// is done. Errors wrapped with backoff.Permanent are not retried.
func Do(ctx context.Context, maxRetries uint64, logger *zap.Logger, name string, operation func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialInterval
	policy.MaxInterval = maxInterval
	policy.MaxElapsedTime = 0

	return backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx),
		func(err error, wait time.Duration) {
			logger.Warn("Retrying failed operation",
				zap.String("operation", name),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		},
	)
}
