// Package events carries booking and payment notifications to external consumers.
// Delivery is fire-and-forget: a failed publish is logged and never fails the operation that raised it.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type is also the AMQP routing key
type Type string

const (
	BookingConfirmed     Type = "booking.confirmed"
	BookingStatusChanged Type = "booking.status_changed"
	BookingCanceled      Type = "booking.canceled"
	PaymentFailed        Type = "payment.failed"
)

// Event is the message body published to the broker and pushed to websocket clients
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Type       Type                   `json:"type"`
	BookingID  uuid.UUID              `json:"booking_id"`
	Recipients []uuid.UUID            `json:"recipients"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// New creates an event addressed to the given users. Nil ids are dropped.
func New(t Type, bookingID uuid.UUID, data map[string]interface{}, recipients ...uuid.UUID) Event {
	to := make([]uuid.UUID, 0, len(recipients))
	seen := make(map[uuid.UUID]bool, len(recipients))
	for _, id := range recipients {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		to = append(to, id)
	}
	return Event{
		ID:         uuid.New(),
		Type:       t,
		BookingID:  bookingID,
		Recipients: to,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}
