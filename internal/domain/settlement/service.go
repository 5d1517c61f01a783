package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sewago/sewago-api/internal/domain/booking"
	"github.com/sewago/sewago-api/internal/domain/wallet"
	"github.com/sewago/sewago-api/internal/pkg/events"
	"github.com/sewago/sewago-api/internal/pkg/gateway"
	"github.com/sewago/sewago-api/internal/pkg/logger"
)

// Config holds settlement settings
type Config struct {
	BackendURL     string
	FrontendURL    string
	VerifyAttempts int
	RetryBackoff   time.Duration
	PendingAge     time.Duration
	RecheckBatch   int
}

// Service is the settlement orchestrator. It is the only writer of booking payment state
// and of ledger entries tied to a booking.
type Service struct {
	attempts *Repository
	bookings *booking.Service
	ledger   *wallet.Service
	registry *gateway.Registry
	notifier *events.Notifier
	cfg      Config
	now      func() time.Time
}

func NewService(
	attempts *Repository,
	bookings *booking.Service,
	ledger *wallet.Service,
	registry *gateway.Registry,
	notifier *events.Notifier,
	cfg Config,
) *Service {
	if cfg.VerifyAttempts < 1 {
		cfg.VerifyAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 300 * time.Millisecond
	}
	if cfg.PendingAge <= 0 {
		cfg.PendingAge = 15 * time.Minute
	}
	if cfg.RecheckBatch <= 0 {
		cfg.RecheckBatch = 100
	}
	return &Service{
		attempts: attempts,
		bookings: bookings,
		ledger:   ledger,
		registry: registry,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// callbackPaths are the webhook routes the providers redirect to
var callbackPaths = map[string]string{
	gateway.Esewa:  "/api/v1/webhooks/esewa/success",
	gateway.Khalti: "/api/v1/webhooks/khalti/callback",
}

func (s *Service) returnURL(gatewayName string) string {
	path, ok := callbackPaths[gatewayName]
	if !ok {
		path = "/api/v1/webhooks/" + gatewayName + "/callback"
	}
	return strings.TrimRight(s.cfg.BackendURL, "/") + path
}

// InitiatePaymentForBooking opens a gateway session for the booking. The booking row stays locked for the
// duration of the call, so concurrent initiations for one booking run one after another.
func (s *Service) InitiatePaymentForBooking(ctx context.Context, bookingID uuid.UUID, gatewayName string, caller booking.Actor) (*InitiateResult, error) {
	gw, err := s.registry.Get(gatewayName)
	if err != nil {
		return nil, err
	}

	tx, err := s.bookings.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := s.bookings.LockTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsOwner(caller.ID) {
		return nil, ErrNotBookingOwner
	}
	if b.PaymentStatus == booking.PaymentPaid {
		return nil, ErrAlreadyPaid
	}
	if b.Status.Terminal() {
		return nil, ErrBookingClosed
	}

	res, err := gw.Initiate(ctx, gateway.InitiateRequest{
		Amount:     b.Total,
		BookingID:  b.ID,
		UserID:     caller.ID,
		ReturnURL:  s.returnURL(gw.Name()),
		FailureURL: strings.TrimRight(s.cfg.FrontendURL, "/") + "/payment/failure?booking_id=" + b.ID.String(),
	})
	if err != nil {
		logger.LogError(ctx, err, "payment initiation failed", "booking_id", b.ID.String(), "gateway", gw.Name())
		return nil, err
	}

	attempt := &Attempt{
		ReferenceID: res.ReferenceID,
		BookingID:   b.ID,
		UserID:      caller.ID,
		Gateway:     gw.Name(),
		Amount:      b.Total,
		Status:      AttemptPending,
		PaymentURL:  res.PaymentURL,
	}
	if res.ProviderToken != "" {
		token := res.ProviderToken
		attempt.ProviderToken = &token
	}
	if err := s.attempts.InsertTx(ctx, tx, attempt); err != nil {
		return nil, fmt.Errorf("store payment attempt: %w", err)
	}

	ref := res.ReferenceID
	if err := s.bookings.UpdatePaymentTx(ctx, tx, b, booking.PaymentUpdate{
		Method:    booking.PaymentMethod(gw.Name()),
		Status:    booking.PaymentPending,
		Reference: &ref,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logger.LogInfo(ctx, "payment initiated",
		"booking_id", b.ID.String(), "user_id", caller.ID.String(), "amount", b.Total,
		"reference_id", ref, "gateway", gw.Name())

	return &InitiateResult{
		BookingID:   b.ID,
		ReferenceID: ref,
		Gateway:     gw.Name(),
		PaymentURL:  res.PaymentURL,
		FormFields:  res.FormFields,
	}, nil
}

// ConfirmPayment verifies the attempt with its gateway and settles the booking. It is safe to call any number of
// times with the same reference: the ledger entry is keyed by the reference and the booking is re-checked under
// its row lock before anything is written.
func (s *Service) ConfirmPayment(ctx context.Context, referenceID, gatewayName string, fields map[string]string) (*ConfirmResult, error) {
	attempt, err := s.lookupAttempt(ctx, referenceID, gatewayName)
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, attempt, gatewayName, fields)
}

// ConfirmPaymentAs is ConfirmPayment on behalf of an API caller. Only the payer or an admin may confirm;
// anyone else gets the unknown-reference answer and learns nothing about the booking.
func (s *Service) ConfirmPaymentAs(ctx context.Context, caller booking.Actor, referenceID, gatewayName string, fields map[string]string) (*ConfirmResult, error) {
	attempt, err := s.lookupAttempt(ctx, referenceID, gatewayName)
	if err != nil {
		return nil, err
	}
	if caller.Role != booking.RoleAdmin && attempt.UserID != caller.ID {
		logger.LogWarn(ctx, "payment confirmation by a non-payer", "reference_id", referenceID, "user_id", caller.ID.String())
		return nil, ErrUnknownReference
	}
	return s.confirm(ctx, attempt, gatewayName, fields)
}

func (s *Service) lookupAttempt(ctx context.Context, referenceID, gatewayName string) (*Attempt, error) {
	attempt, err := s.attempts.GetByReference(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		logger.LogWarn(ctx, "confirmation for unknown payment reference", "reference_id", referenceID, "gateway", gatewayName)
		return nil, ErrUnknownReference
	}
	return attempt, nil
}

func (s *Service) confirm(ctx context.Context, attempt *Attempt, gatewayName string, fields map[string]string) (*ConfirmResult, error) {
	referenceID := attempt.ReferenceID
	if gatewayName != "" && !strings.EqualFold(gatewayName, attempt.Gateway) {
		return nil, ErrGatewayMismatch
	}

	gw, err := s.registry.Get(attempt.Gateway)
	if err != nil {
		return nil, err
	}

	b, err := s.bookings.Get(ctx, booking.SystemActor, attempt.BookingID)
	if err != nil {
		return nil, err
	}
	if done, res, err := settled(b, attempt); done {
		return res, err
	}

	// A definitive failure is final for this attempt; the customer starts a new one.
	if attempt.Status == AttemptFailed {
		return resultFor(b, attempt, false), nil
	}

	var v *gateway.Verification
	err = retry(ctx, s.cfg.VerifyAttempts, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var verr error
		v, verr = gw.Verify(ctx, gateway.Payload{
			ReferenceID:   attempt.ReferenceID,
			Amount:        attempt.Amount,
			ProviderToken: attempt.providerToken(),
			Fields:        fields,
		})
		return verr
	})
	if err != nil {
		logger.LogError(ctx, err, "payment verification failed", "reference_id", referenceID, "gateway", attempt.Gateway)
		return nil, err
	}

	verified := v.Verified
	if verified && !v.Amount.Equal(decimal.NewFromInt(attempt.Amount)) {
		logger.FromContext(ctx).Error().
			Str("reference_id", referenceID).
			Int64("expected", attempt.Amount).
			Str("reported", v.Amount.String()).
			Msg("gateway reported a different amount")
		verified = false
	}
	if !verified && v.Pending {
		res := resultFor(b, attempt, false)
		res.Pending = true
		return res, nil
	}

	if verified {
		return s.applyPaid(ctx, attempt, v)
	}
	return s.applyFailed(ctx, attempt, v)
}

// settled handles bookings whose payment state already decides the outcome.
func settled(b *booking.Booking, attempt *Attempt) (bool, *ConfirmResult, error) {
	if b.PaymentStatus == booking.PaymentPaid {
		if b.PaymentReference != nil && *b.PaymentReference == attempt.ReferenceID {
			return true, resultFor(b, attempt, true), nil
		}
		return true, nil, ErrAlreadyPaid
	}
	if b.Status.Terminal() {
		return true, nil, ErrBookingClosed
	}
	return false, nil, nil
}

func (s *Service) applyPaid(ctx context.Context, attempt *Attempt, v *gateway.Verification) (*ConfirmResult, error) {
	tx, err := s.bookings.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := s.bookings.LockTx(ctx, tx, attempt.BookingID)
	if err != nil {
		return nil, err
	}
	if done, res, err := settled(b, attempt); done {
		if errors.Is(err, ErrBookingClosed) {
			logger.LogWarn(ctx, "verified payment for a closed booking needs manual refund",
				"booking_id", b.ID.String(), "reference_id", attempt.ReferenceID, "status", string(b.Status))
		}
		return res, err
	}

	if _, err := s.ledger.PostTx(ctx, tx, wallet.Posting{
		UserID:               b.CustomerID,
		BookingID:            &b.ID,
		Type:                 wallet.TransactionTypeBookingPayment,
		Direction:            wallet.DirectionCredit,
		Amount:               attempt.Amount,
		CounterAccount:       wallet.GatewayAccount(attempt.Gateway),
		ReferenceID:          attempt.ReferenceID,
		GatewayTransactionID: v.TransactionID,
		Description:          fmt.Sprintf("Payment for booking %s via %s", b.ID, attempt.Gateway),
	}); err != nil {
		return nil, err
	}

	ref := attempt.ReferenceID
	if err := s.bookings.UpdatePaymentTx(ctx, tx, b, booking.PaymentUpdate{
		Method:    booking.PaymentMethod(attempt.Gateway),
		Status:    booking.PaymentPaid,
		Reference: &ref,
	}); err != nil {
		return nil, err
	}

	from := b.Status
	if b.Status == booking.StatusPendingConfirmation {
		if err := s.bookings.TransitionTx(ctx, tx, b, booking.StatusConfirmed, booking.SystemActor, "payment verified"); err != nil {
			return nil, err
		}
	}

	if err := s.attempts.MarkTx(ctx, tx, ref, AttemptPaid, v.TransactionID, v.Raw); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logger.LogInfo(ctx, "payment settled",
		"booking_id", b.ID.String(), "user_id", b.CustomerID.String(), "amount", attempt.Amount,
		"reference_id", ref, "gateway", attempt.Gateway, "transaction_id", v.TransactionID)

	s.notifier.Notify(ctx, events.New(events.BookingConfirmed, b.ID, map[string]interface{}{
		"reference_id": ref,
		"amount":       attempt.Amount,
		"gateway":      attempt.Gateway,
		"from":         string(from),
		"status":       string(b.Status),
	}, b.Participants()...))

	attempt.Status = AttemptPaid
	return resultFor(b, attempt, true), nil
}

func (s *Service) applyFailed(ctx context.Context, attempt *Attempt, v *gateway.Verification) (*ConfirmResult, error) {
	tx, err := s.bookings.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := s.bookings.LockTx(ctx, tx, attempt.BookingID)
	if err != nil {
		return nil, err
	}
	if done, res, err := settled(b, attempt); done {
		return res, err
	}

	// An older attempt failing must not overwrite a newer one in flight.
	if b.PaymentReference != nil && *b.PaymentReference == attempt.ReferenceID {
		if err := s.bookings.UpdatePaymentTx(ctx, tx, b, booking.PaymentUpdate{
			Method:    b.PaymentMethod,
			Status:    booking.PaymentFailed,
			Reference: b.PaymentReference,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.attempts.MarkTx(ctx, tx, attempt.ReferenceID, AttemptFailed, v.TransactionID, v.Raw); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logger.LogWarn(ctx, "payment failed",
		"booking_id", b.ID.String(), "user_id", b.CustomerID.String(), "amount", attempt.Amount,
		"reference_id", attempt.ReferenceID, "gateway", attempt.Gateway, "provider_status", v.ProviderStatus)

	s.notifier.Notify(ctx, events.New(events.PaymentFailed, b.ID, map[string]interface{}{
		"reference_id":    attempt.ReferenceID,
		"gateway":         attempt.Gateway,
		"provider_status": v.ProviderStatus,
	}, b.CustomerID))

	attempt.Status = AttemptFailed
	return resultFor(b, attempt, false), nil
}

func resultFor(b *booking.Booking, attempt *Attempt, verified bool) *ConfirmResult {
	return &ConfirmResult{
		Verified:      verified,
		BookingID:     b.ID,
		ReferenceID:   attempt.ReferenceID,
		Gateway:       attempt.Gateway,
		PaymentStatus: string(b.PaymentStatus),
		BookingStatus: string(b.Status),
	}
}

// CompleteBooking finishes the service. Cash bookings are marked paid here; gateway bookings must be paid already.
func (s *Service) CompleteBooking(ctx context.Context, bookingID uuid.UUID, actor booking.Actor) (*booking.Booking, error) {
	tx, err := s.bookings.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := s.bookings.LockTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := booking.AuthorizeCompletion(actor, b); err != nil {
		return nil, err
	}
	if !booking.CanTransition(b.Status, booking.StatusCompleted) {
		return nil, booking.ErrInvalidTransition
	}

	if b.PaymentMethod == booking.PaymentMethodCash {
		if b.PaymentStatus != booking.PaymentPaid {
			if err := s.bookings.UpdatePaymentTx(ctx, tx, b, booking.PaymentUpdate{
				Method:    booking.PaymentMethodCash,
				Status:    booking.PaymentPaid,
				Reference: b.PaymentReference,
			}); err != nil {
				return nil, err
			}
		}
	} else if b.PaymentStatus != booking.PaymentPaid {
		return nil, ErrPaymentRequired
	}

	from := b.Status
	reason := fmt.Sprintf("completed by %s %s", actor.Role, actor.ID)
	if err := s.bookings.TransitionTx(ctx, tx, b, booking.StatusCompleted, booking.SystemActor, reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.bookings.NotifyTransition(ctx, b, from)
	return b, nil
}

// Attempts lists the payment attempts of a booking to anyone allowed to view it.
func (s *Service) Attempts(ctx context.Context, actor booking.Actor, bookingID uuid.UUID) ([]*Attempt, error) {
	if _, err := s.bookings.Get(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.attempts.ListByBooking(ctx, bookingID)
}

// RecheckPending re-runs confirmation for attempts that stayed pending longer than the configured age.
func (s *Service) RecheckPending(ctx context.Context) (*RecheckSummary, error) {
	pending, err := s.attempts.ListPending(ctx, s.now().Add(-s.cfg.PendingAge), s.cfg.RecheckBatch)
	if err != nil {
		return nil, err
	}

	summary := &RecheckSummary{}
	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Checked++

		res, err := s.ConfirmPayment(ctx, a.ReferenceID, a.Gateway, nil)
		switch {
		case err != nil:
			summary.Errored++
			log.Warn().Err(err).Str("reference_id", a.ReferenceID).Msg("pending payment recheck failed")
		case res.Verified:
			summary.Paid++
		case res.Pending:
			summary.Pending++
		default:
			summary.Failed++
		}
	}

	log.Info().
		Int("checked", summary.Checked).
		Int("paid", summary.Paid).
		Int("failed", summary.Failed).
		Int("pending", summary.Pending).
		Int("errored", summary.Errored).
		Msg("pending payment recheck finished")
	return summary, nil
}
