package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sewago/sewago-api/internal/pkg/apperror"
)

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("status call: %w", apperror.ErrGatewayUnreachable)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 5, time.Millisecond, func(ctx context.Context) error {
		calls++
		return apperror.ErrInvalidPayload
	})

	assert.ErrorIs(t, err, apperror.ErrInvalidPayload)
	assert.Equal(t, 1, calls)
}

func TestRetry_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 2, time.Millisecond, func(ctx context.Context) error {
		calls++
		return apperror.ErrGatewayUnreachable
	})

	assert.ErrorIs(t, err, apperror.ErrGatewayUnreachable)
	assert.Equal(t, 2, calls)
}

func TestRetry_HonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, 5, time.Hour, func(ctx context.Context) error {
		calls++
		cancel()
		return apperror.ErrGatewayUnreachable
	})

	assert.True(t, errors.Is(err, apperror.ErrGatewayUnreachable))
	assert.Equal(t, 1, calls)
}

func TestRetry_AtLeastOneAttempt(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 0, time.Millisecond, func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_DoublesDelay(t *testing.T) {
	var stamps []time.Time
	err := retry(context.Background(), 3, 20*time.Millisecond, func(ctx context.Context) error {
		stamps = append(stamps, time.Now())
		return apperror.ErrGatewayUnreachable
	})

	assert.ErrorIs(t, err, apperror.ErrGatewayUnreachable)
	if assert.Len(t, stamps, 3) {
		assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 20*time.Millisecond)
		assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 40*time.Millisecond)
	}
}
