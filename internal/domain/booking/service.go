package booking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sewago/sewago-api/internal/pkg/events"
	"github.com/sewago/sewago-api/internal/pkg/logger"
)

// Service is the booking state machine.
type Service struct {
	repo     *Repository
	notifier *events.Notifier
	now      func() time.Time
}

func NewService(repo *Repository, notifier *events.Notifier) *Service {
	return &Service{repo: repo, notifier: notifier, now: time.Now}
}

// Create reserves the slot and returns a booking in PENDING_CONFIRMATION.
func (s *Service) Create(ctx context.Context, actor Actor, req *CreateBookingRequest) (*Booking, error) {
	if actor.Role != RoleCustomer && actor.Role != RoleAdmin {
		return nil, ErrNotAllowed
	}
	if req.Price <= 0 {
		return nil, ErrInvalidPrice
	}

	slotDate, err := time.Parse("2006-01-02", req.SlotDate)
	if err != nil {
		return nil, ErrInvalidSlot
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	if slotDate.Before(today) {
		return nil, ErrInvalidSlot
	}

	method := PaymentMethod(req.PaymentMethod)
	if method == "" {
		method = PaymentMethodCash
	}

	b := &Booking{
		ID:            uuid.New(),
		CustomerID:    actor.ID,
		ProviderID:    req.ProviderID,
		ServiceID:     req.ServiceID,
		SlotDate:      slotDate,
		SlotToken:     req.SlotToken,
		Total:         req.Price,
		Status:        StatusPendingConfirmation,
		PaymentMethod: method,
		PaymentStatus: PaymentPending,
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		b.Notes = &notes
	}

	if err := s.repo.Create(ctx, b, actor); err != nil {
		return nil, err
	}

	logger.LogInfo(ctx, "booking created",
		"booking_id", b.ID.String(), "customer_id", b.CustomerID.String(),
		"slot_date", req.SlotDate, "slot_token", b.SlotToken, "total", b.Total)
	return b, nil
}

// Get returns a booking the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, b) {
		return nil, ErrNotAllowed
	}
	return b, nil
}

// List returns the actor's bookings. Admins see everything.
func (s *Service) List(ctx context.Context, actor Actor, filter ListFilter) ([]*Booking, int, error) {
	switch actor.Role {
	case RoleCustomer:
		filter.CustomerID = &actor.ID
		filter.ProviderID = nil
	case RoleProvider:
		filter.ProviderID = &actor.ID
		filter.CustomerID = nil
	case RoleAdmin:
	default:
		return nil, 0, ErrNotAllowed
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

// History returns the status history of a booking.
func (s *Service) History(ctx context.Context, actor Actor, id uuid.UUID) ([]*StatusEvent, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, id)
}

// Advance moves the booking to target on behalf of actor.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, target Status, actor Actor, reason string) (*Booking, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := s.repo.LockTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, b) {
		return nil, ErrNotAllowed
	}

	from := b.Status
	if err := s.TransitionTx(ctx, tx, b, target, actor, reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.notifyTransition(ctx, b, from, reason)
	return b, nil
}

// Cancel releases the slot. Allowed from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*Booking, error) {
	return s.Advance(ctx, id, StatusCanceled, actor, reason)
}

// AssignProvider attaches a provider to a CONFIRMED booking. Admin only.
func (s *Service) AssignProvider(ctx context.Context, id, providerID uuid.UUID, actor Actor) (*Booking, error) {
	if actor.Role != RoleAdmin {
		return nil, ErrNotAllowed
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := s.repo.LockTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusConfirmed {
		return nil, ErrInvalidTransition
	}

	if err := s.repo.AssignProviderTx(ctx, tx, id, providerID); err != nil {
		return nil, err
	}
	from := b.Status
	b.ProviderID = &providerID
	b.Status = StatusProviderAssigned

	if err := s.repo.InsertEventTx(ctx, tx, &StatusEvent{BookingID: id, FromStatus: &from, ToStatus: b.Status}, actor); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logger.LogInfo(ctx, "provider assigned", "booking_id", id.String(), "provider_id", providerID.String(),
		"actor", actor.ID.String())
	s.notifyTransition(ctx, b, from, "")
	return b, nil
}

// BeginTx opens a transaction shared with the settlement orchestrator.
func (s *Service) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return s.repo.BeginTx(ctx)
}

// LockTx loads and locks the booking inside tx.
func (s *Service) LockTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Booking, error) {
	return s.repo.LockTx(ctx, tx, id)
}

// TransitionTx checks the lifecycle graph and actor capability, then moves b to target inside tx
// and appends the history row. b is updated in place.
func (s *Service) TransitionTx(ctx context.Context, tx *sqlx.Tx, b *Booking, target Status, actor Actor, reason string) error {
	if !CanTransition(b.Status, target) {
		return ErrInvalidTransition
	}
	if err := Authorize(actor, b, target); err != nil {
		return err
	}
	if target == StatusProviderAssigned && b.ProviderID == nil {
		return ErrProviderRequired
	}

	var why *string
	if reason = strings.TrimSpace(reason); reason != "" {
		why = &reason
	}
	var cancelReason *string
	if target == StatusCanceled {
		cancelReason = why
	}

	from := b.Status
	if err := s.repo.UpdateStatusTx(ctx, tx, b.ID, from, target, cancelReason); err != nil {
		return err
	}
	if err := s.repo.InsertEventTx(ctx, tx, &StatusEvent{BookingID: b.ID, FromStatus: &from, ToStatus: target, Reason: why}, actor); err != nil {
		return err
	}

	b.Status = target
	if cancelReason != nil {
		b.CancelReason = cancelReason
	}
	if target == StatusCompleted {
		now := s.now().UTC()
		b.CompletedAt = &now
	}

	logger.LogInfo(ctx, "booking status changed",
		"booking_id", b.ID.String(), "from", string(from), "to", string(target),
		"actor", actor.ID.String(), "actor_role", actor.Role)
	return nil
}

// UpdatePaymentTx writes the payment block of b inside tx. b is updated in place.
func (s *Service) UpdatePaymentTx(ctx context.Context, tx *sqlx.Tx, b *Booking, upd PaymentUpdate) error {
	if err := s.repo.UpdatePaymentTx(ctx, tx, b.ID, upd); err != nil {
		return err
	}
	b.PaymentMethod = upd.Method
	b.PaymentStatus = upd.Status
	b.PaymentReference = upd.Reference
	return nil
}

// NotifyTransition publishes the status change of b after the surrounding transaction committed.
func (s *Service) NotifyTransition(ctx context.Context, b *Booking, from Status) {
	s.notifyTransition(ctx, b, from, "")
}

func (s *Service) notifyTransition(ctx context.Context, b *Booking, from Status, reason string) {
	data := map[string]interface{}{
		"from": string(from),
		"to":   string(b.Status),
	}
	t := events.BookingStatusChanged
	if b.Status == StatusCanceled {
		t = events.BookingCanceled
		if reason != "" {
			data["reason"] = reason
		}
	}
	s.notifier.Notify(ctx, events.New(t, b.ID, data, b.Participants()...))
}
