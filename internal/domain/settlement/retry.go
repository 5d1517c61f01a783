package settlement

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sewago/sewago-api/internal/pkg/apperror"
	"github.com/sewago/sewago-api/internal/pkg/logger"
)

// retry runs fn until it succeeds, fails with a non-retryable error or attempts run out.
// The delay starts at initial and doubles after every retryable failure. When ctx ends first the last
// gateway error is returned so callers still see why the provider could not answer.
func retry(ctx context.Context, attempts int, initial time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	var lastErr error
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		lastErr = fn(ctx)
		if lastErr != nil && !apperror.IsRetryable(lastErr) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}, policy, func(err error, delay time.Duration) {
		logger.LogWarn(ctx, "gateway call failed, retrying", "attempt", attempt, "delay", delay.String(), "error", err.Error())
	})
	if err != nil && lastErr != nil && ctx.Err() != nil {
		return lastErr
	}
	return err
}
