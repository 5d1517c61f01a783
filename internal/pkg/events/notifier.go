package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Pusher delivers a payload to a user's live connections
type Pusher interface {
	PushToUser(ctx context.Context, userID uuid.UUID, payload any) error
}

// Notifier fans events out to the broker and to live connections in the background
type Notifier struct {
	publisher Publisher
	pushers   []Pusher
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewNotifier creates a notifier. publisher may be nil.
func NewNotifier(publisher Publisher, pushers ...Pusher) *Notifier {
	return &Notifier{publisher: publisher, pushers: pushers, timeout: 5 * time.Second}
}

// Notify returns immediately; delivery happens on a separate goroutine bounded by a timeout.
func (n *Notifier) Notify(ctx context.Context, e Event) {
	if n == nil {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()

		if n.publisher != nil {
			if err := n.publisher.Publish(ctx, string(e.Type), e); err != nil {
				log.Error().Err(err).Str("event_type", string(e.Type)).Str("booking_id", e.BookingID.String()).
					Msg("Failed to publish event")
			}
		}

		for _, userID := range e.Recipients {
			for _, p := range n.pushers {
				if err := p.PushToUser(ctx, userID, e); err != nil {
					log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to push event")
				}
			}
		}
	}()
}

// Wait blocks until in-flight deliveries finish
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}
