package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesByKind(t *testing.T) {
	errBookingMissing := New(KindNotFound, "booking not found")

	assert.ErrorIs(t, errBookingMissing, ErrNotFound)
	assert.ErrorIs(t, fmt.Errorf("load booking: %w", errBookingMissing), ErrNotFound)
	assert.False(t, errors.Is(errBookingMissing, ErrForbidden))
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("verify: %w", ErrGatewayUnreachable)

	assert.Equal(t, KindGatewayUnreachable, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(ErrInvalidPayload))
}
