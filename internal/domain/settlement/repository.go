package settlement

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

const attemptColumns = `reference_id, booking_id, user_id, gateway, amount, status, provider_token, transaction_id,
	payment_url, raw_payload, created_at, updated_at`

// Repository stores payment attempts
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) InsertTx(ctx context.Context, tx *sqlx.Tx, a *Attempt) error {
	return tx.QueryRowxContext(ctx, `
		INSERT INTO payment_attempts (reference_id, booking_id, user_id, gateway, amount, status, provider_token, payment_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, a.ReferenceID, a.BookingID, a.UserID, a.Gateway, a.Amount, string(a.Status), a.ProviderToken, a.PaymentURL).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

// GetByReference returns the attempt or nil when the reference was never issued.
func (r *Repository) GetByReference(ctx context.Context, referenceID string) (*Attempt, error) {
	var a Attempt
	err := r.db.GetContext(ctx, &a, `SELECT `+attemptColumns+` FROM payment_attempts WHERE reference_id = $1`, referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkTx records the verification outcome of a pending attempt.
func (r *Repository) MarkTx(ctx context.Context, tx *sqlx.Tx, referenceID string, status AttemptStatus, transactionID string, raw []byte) error {
	var txnID *string
	if transactionID != "" {
		txnID = &transactionID
	}
	payload := types.NullJSONText{JSONText: raw, Valid: len(raw) > 0}
	_, err := tx.ExecContext(ctx, `
		UPDATE payment_attempts
		SET status = $2, transaction_id = COALESCE($3, transaction_id), raw_payload = COALESCE($4, raw_payload), updated_at = now()
		WHERE reference_id = $1 AND status = 'pending'
	`, referenceID, string(status), txnID, payload)
	return err
}

// ListPending returns pending attempts created before olderThan, oldest first.
func (r *Repository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*Attempt, error) {
	var attempts []*Attempt
	err := r.db.SelectContext(ctx, &attempts, `
		SELECT `+attemptColumns+`
		FROM payment_attempts
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, olderThan, limit)
	return attempts, err
}

func (r *Repository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*Attempt, error) {
	var attempts []*Attempt
	err := r.db.SelectContext(ctx, &attempts, `
		SELECT `+attemptColumns+` FROM payment_attempts WHERE booking_id = $1 ORDER BY created_at
	`, bookingID)
	return attempts, err
}
