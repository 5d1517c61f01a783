package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sewago/sewago-api/internal/pkg/database"
)

const slotConstraint = "bookings_active_provider_slot_key"

const bookingColumns = `id, customer_id, provider_id, service_id, slot_date, slot_token, total, status,
	payment_method, payment_status, payment_reference, notes, cancel_reason, completed_at, created_at, updated_at`

// Repository is the only writer of the bookings table.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// BeginTx opens a transaction for callers that combine booking writes with other writes.
func (r *Repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// Create inserts the booking and its first history row. The partial unique index on the provider slot makes
// the slot check and the reservation one atomic write.
func (r *Repository) Create(ctx context.Context, b *Booking, actor Actor) error {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO bookings (
			id, customer_id, provider_id, service_id, slot_date, slot_token, total, status,
			payment_method, payment_status, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, b.ID, b.CustomerID, b.ProviderID, b.ServiceID, b.SlotDate, b.SlotToken, b.Total, string(b.Status),
		string(b.PaymentMethod), string(b.PaymentStatus), b.Notes).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}

	if err := r.InsertEventTx(ctx, tx, &StatusEvent{BookingID: b.ID, ToStatus: b.Status}, actor); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID returns the booking or ErrBookingNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// LockTx loads the booking and holds its row lock until tx ends.
func (r *Repository) LockTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Booking, error) {
	var b Booking
	err := tx.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateStatusTx moves the booking from -> to only if it is still in from.
func (r *Repository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to Status, cancelReason *string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = $3,
			cancel_reason = COALESCE($4, cancel_reason),
			completed_at = CASE WHEN $3 = 'COMPLETED' THEN now() ELSE completed_at END,
			updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), cancelReason)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOne(result, ErrStatusChanged)
}

// AssignProviderTx sets the provider of a CONFIRMED booking and moves it to PROVIDER_ASSIGNED.
func (r *Repository) AssignProviderTx(ctx context.Context, tx *sqlx.Tx, id, providerID uuid.UUID) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET provider_id = $2, status = 'PROVIDER_ASSIGNED', updated_at = now()
		WHERE id = $1 AND status = 'CONFIRMED'
	`, id, providerID)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOne(result, ErrStatusChanged)
}

// UpdatePaymentTx overwrites the payment block.
func (r *Repository) UpdatePaymentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, upd PaymentUpdate) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET payment_method = $2, payment_status = $3, payment_reference = $4, updated_at = now()
		WHERE id = $1
	`, id, string(upd.Method), string(upd.Status), upd.Reference)
	if err != nil {
		return err
	}
	return expectOne(result, ErrBookingNotFound)
}

func (r *Repository) InsertEventTx(ctx context.Context, tx *sqlx.Tx, e *StatusEvent, actor Actor) error {
	var actorID *uuid.UUID
	if actor.ID != uuid.Nil {
		id := actor.ID
		actorID = &id
	}
	var from *string
	if e.FromStatus != nil {
		s := string(*e.FromStatus)
		from = &s
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO booking_status_events (booking_id, from_status, to_status, actor_id, actor_role, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.BookingID, from, string(e.ToStatus), actorID, actor.Role, e.Reason)
	return err
}

func (r *Repository) ListEvents(ctx context.Context, bookingID uuid.UUID) ([]*StatusEvent, error) {
	var events []*StatusEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, booking_id, from_status, to_status, actor_id, actor_role, reason, created_at
		FROM booking_status_events
		WHERE booking_id = $1
		ORDER BY id
	`, bookingID)
	return events, err
}

// List returns bookings matching filter, newest first
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*Booking, int, error) {
	conds := []string{"1=1"}
	var args []interface{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		conds = append(conds, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if filter.ProviderID != nil {
		args = append(args, *filter.ProviderID)
		conds = append(conds, fmt.Sprintf("provider_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM bookings WHERE `+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		bookingColumns, where, len(args)-1, len(args))

	var bookings []*Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func expectOne(result sql.Result, errNone error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNone
	}
	return nil
}

func mapWriteError(err error) error {
	if constraint, ok := database.UniqueViolation(err); ok && constraint == slotConstraint {
		return ErrSlotUnavailable
	}
	return err
}
