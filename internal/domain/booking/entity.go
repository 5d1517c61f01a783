package booking

import (
	"time"

	"github.com/google/uuid"
)

// Status is the booking lifecycle state
type Status string

const (
	StatusPendingConfirmation Status = "PENDING_CONFIRMATION"
	StatusConfirmed           Status = "CONFIRMED"
	StatusProviderAssigned    Status = "PROVIDER_ASSIGNED"
	StatusEnRoute             Status = "EN_ROUTE"
	StatusInProgress          Status = "IN_PROGRESS"
	StatusCompleted           Status = "COMPLETED"
	StatusCanceled            Status = "CANCELED"
	StatusDisputed            Status = "DISPUTED"
)

// Terminal reports whether the booking no longer holds its slot
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusDisputed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPendingConfirmation, StatusConfirmed, StatusProviderAssigned, StatusEnRoute,
		StatusInProgress, StatusCompleted, StatusCanceled, StatusDisputed:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodEsewa  PaymentMethod = "esewa"
	PaymentMethodKhalti PaymentMethod = "khalti"
)

// Actor roles. RoleSystem is used by the settlement orchestrator and scheduled jobs.
const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
	RoleSystem   = "system"
)

// Actor is the identity performing an operation
type Actor struct {
	ID   uuid.UUID
	Role string
}

// SystemActor acts on behalf of the platform itself
var SystemActor = Actor{Role: RoleSystem}

// Booking represents a service booking (matches bookings table)
type Booking struct {
	ID         uuid.UUID  `db:"id"`
	CustomerID uuid.UUID  `db:"customer_id"`
	ProviderID *uuid.UUID `db:"provider_id"`
	ServiceID  uuid.UUID  `db:"service_id"`

	// Slot
	SlotDate  time.Time `db:"slot_date"`
	SlotToken string    `db:"slot_token"`

	Total  int64  `db:"total"`
	Status Status `db:"status"`

	// Payment
	PaymentMethod    PaymentMethod `db:"payment_method"`
	PaymentStatus    PaymentStatus `db:"payment_status"`
	PaymentReference *string       `db:"payment_reference"`

	Notes        *string    `db:"notes"`
	CancelReason *string    `db:"cancel_reason"`
	CompletedAt  *time.Time `db:"completed_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// IsOwner reports whether userID booked the service
func (b *Booking) IsOwner(userID uuid.UUID) bool {
	return userID != uuid.Nil && b.CustomerID == userID
}

// IsProvider reports whether userID is the assigned provider
func (b *Booking) IsProvider(userID uuid.UUID) bool {
	return userID != uuid.Nil && b.ProviderID != nil && *b.ProviderID == userID
}

// Participants returns the users to notify about the booking
func (b *Booking) Participants() []uuid.UUID {
	ids := []uuid.UUID{b.CustomerID}
	if b.ProviderID != nil {
		ids = append(ids, *b.ProviderID)
	}
	return ids
}

// StatusEvent is one row of the booking status history
type StatusEvent struct {
	ID         int64      `db:"id"`
	BookingID  uuid.UUID  `db:"booking_id"`
	FromStatus *Status    `db:"from_status"`
	ToStatus   Status     `db:"to_status"`
	ActorID    *uuid.UUID `db:"actor_id"`
	ActorRole  string     `db:"actor_role"`
	Reason     *string    `db:"reason"`
	CreatedAt  time.Time  `db:"created_at"`
}

// ListFilter narrows booking listings
type ListFilter struct {
	CustomerID *uuid.UUID
	ProviderID *uuid.UUID
	Status     Status
	Page       int
	Limit      int
}

// PaymentUpdate changes the payment block of a booking
type PaymentUpdate struct {
	Method    PaymentMethod
	Status    PaymentStatus
	Reference *string
}
