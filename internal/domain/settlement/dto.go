package settlement

import (
	"time"

	"github.com/google/uuid"
)

// InitiatePaymentRequest for POST /payments/initiate
type InitiatePaymentRequest struct {
	BookingID uuid.UUID `json:"booking_id" validate:"required"`
	Gateway   string    `json:"gateway" validate:"required,gateway"`
}

// VerifyPaymentRequest for POST /payments/verify. Fields carries provider specific values such as
// the eSewa "data" document or the Khalti pidx.
type VerifyPaymentRequest struct {
	ReferenceID string            `json:"reference_id" validate:"required,max=128"`
	Gateway     string            `json:"gateway" validate:"required,gateway"`
	Fields      map[string]string `json:"fields"`
}

type AttemptResponse struct {
	ReferenceID   string    `json:"reference_id"`
	Gateway       string    `json:"gateway"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	TransactionID *string   `json:"transaction_id,omitempty"`
	PaymentURL    string    `json:"payment_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func AttemptResponseFromEntity(a *Attempt) AttemptResponse {
	return AttemptResponse{
		ReferenceID:   a.ReferenceID,
		Gateway:       a.Gateway,
		Amount:        a.Amount,
		Status:        string(a.Status),
		TransactionID: a.TransactionID,
		PaymentURL:    a.PaymentURL,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}
