package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

type AttemptStatus string

const (
	AttemptPending AttemptStatus = "pending"
	AttemptPaid    AttemptStatus = "paid"
	AttemptFailed  AttemptStatus = "failed"
)

// Attempt is one gateway payment session for a booking (matches payment_attempts table)
type Attempt struct {
	ReferenceID   string             `db:"reference_id"`
	BookingID     uuid.UUID          `db:"booking_id"`
	UserID        uuid.UUID          `db:"user_id"`
	Gateway       string             `db:"gateway"`
	Amount        int64              `db:"amount"`
	Status        AttemptStatus      `db:"status"`
	ProviderToken *string            `db:"provider_token"`
	TransactionID *string            `db:"transaction_id"`
	PaymentURL    string             `db:"payment_url"`
	RawPayload    types.NullJSONText `db:"raw_payload"`
	CreatedAt     time.Time          `db:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at"`
}

func (a *Attempt) providerToken() string {
	if a.ProviderToken == nil {
		return ""
	}
	return *a.ProviderToken
}

// InitiateResult is returned to the client that starts a payment
type InitiateResult struct {
	BookingID   uuid.UUID         `json:"booking_id"`
	ReferenceID string            `json:"reference_id"`
	Gateway     string            `json:"gateway"`
	PaymentURL  string            `json:"payment_url"`
	FormFields  map[string]string `json:"form_fields,omitempty"`
}

// ConfirmResult is the outcome of a payment confirmation. Repeating a confirmation yields the same result.
type ConfirmResult struct {
	Verified      bool      `json:"verified"`
	Pending       bool      `json:"pending,omitempty"`
	BookingID     uuid.UUID `json:"booking_id"`
	ReferenceID   string    `json:"reference_id"`
	Gateway       string    `json:"gateway"`
	PaymentStatus string    `json:"payment_status"`
	BookingStatus string    `json:"booking_status"`
}

// RecheckSummary reports a pending-payment sweep
type RecheckSummary struct {
	Checked int `json:"checked"`
	Paid    int `json:"paid"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
	Errored int `json:"errored"`
}
