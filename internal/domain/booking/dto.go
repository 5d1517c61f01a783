package booking

import (
	"time"

	"github.com/google/uuid"
)

// CreateBookingRequest for POST /bookings
type CreateBookingRequest struct {
	ProviderID    *uuid.UUID `json:"provider_id"`
	ServiceID     uuid.UUID  `json:"service_id" validate:"required"`
	SlotDate      string     `json:"slot_date" validate:"required,datetime=2006-01-02"`
	SlotToken     string     `json:"slot_token" validate:"required,slot_token"`
	Price         int64      `json:"price" validate:"required,gt=0"`
	PaymentMethod string     `json:"payment_method" validate:"omitempty,oneof=cash esewa khalti"`
	Notes         string     `json:"notes" validate:"omitempty,max=1000"`
}

// UpdateStatusRequest for PATCH /bookings/{id}/status
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,booking_status"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// CancelRequest for POST /bookings/{id}/cancel
type CancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// AssignProviderRequest for POST /bookings/{id}/assign
type AssignProviderRequest struct {
	ProviderID uuid.UUID `json:"provider_id" validate:"required"`
}

type PaymentResponse struct {
	Method      string  `json:"method"`
	Status      string  `json:"status"`
	ReferenceID *string `json:"reference_id,omitempty"`
}

// BookingResponse represents booking in API response
type BookingResponse struct {
	ID           uuid.UUID       `json:"id"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	ProviderID   *uuid.UUID      `json:"provider_id,omitempty"`
	ServiceID    uuid.UUID       `json:"service_id"`
	SlotDate     string          `json:"slot_date"`
	SlotToken    string          `json:"slot_token"`
	Total        int64           `json:"total"`
	Status       string          `json:"status"`
	NextStatuses []string        `json:"next_statuses"`
	Payment      PaymentResponse `json:"payment"`
	Notes        *string         `json:"notes,omitempty"`
	CancelReason *string         `json:"cancel_reason,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func BookingResponseFromEntity(b *Booking) *BookingResponse {
	next := NextStatuses(b.Status)
	names := make([]string, len(next))
	for i, s := range next {
		names[i] = string(s)
	}
	return &BookingResponse{
		ID:           b.ID,
		CustomerID:   b.CustomerID,
		ProviderID:   b.ProviderID,
		ServiceID:    b.ServiceID,
		SlotDate:     b.SlotDate.Format("2006-01-02"),
		SlotToken:    b.SlotToken,
		Total:        b.Total,
		Status:       string(b.Status),
		NextStatuses: names,
		Payment: PaymentResponse{
			Method:      string(b.PaymentMethod),
			Status:      string(b.PaymentStatus),
			ReferenceID: b.PaymentReference,
		},
		Notes:        b.Notes,
		CancelReason: b.CancelReason,
		CompletedAt:  b.CompletedAt,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

type StatusEventResponse struct {
	From      *string    `json:"from,omitempty"`
	To        string     `json:"to"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	ActorRole string     `json:"actor_role"`
	Reason    *string    `json:"reason,omitempty"`
	At        time.Time  `json:"at"`
}

func StatusEventResponseFromEntity(e *StatusEvent) StatusEventResponse {
	resp := StatusEventResponse{
		To:        string(e.ToStatus),
		ActorID:   e.ActorID,
		ActorRole: e.ActorRole,
		Reason:    e.Reason,
		At:        e.CreatedAt,
	}
	if e.FromStatus != nil {
		from := string(*e.FromStatus)
		resp.From = &from
	}
	return resp
}
