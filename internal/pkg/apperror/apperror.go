// Package apperror defines the error taxonomy shared by the booking, settlement and ledger domains.
package apperror

import "errors"

// Kind classifies an error independently of the domain that raised it.
type Kind string

const (
	KindNotFound               Kind = "NOT_FOUND"
	KindForbidden              Kind = "FORBIDDEN"
	KindInvalidTransition      Kind = "INVALID_TRANSITION"
	KindSlotUnavailable        Kind = "SLOT_UNAVAILABLE"
	KindAlreadyPaid            Kind = "ALREADY_PAID"
	KindUnknownReference       Kind = "UNKNOWN_REFERENCE"
	KindUnsupportedGateway     Kind = "UNSUPPORTED_GATEWAY"
	KindInvalidPayload         Kind = "INVALID_PAYLOAD"
	KindGatewayUnreachable     Kind = "GATEWAY_UNREACHABLE"
	KindReconciliationMismatch Kind = "RECONCILIATION_MISMATCH"
	KindInvalid                Kind = "INVALID_ARGUMENT"
	KindConflict               Kind = "CONFLICT"
)

// Base errors, one per kind. Domain sentinels created with New match them through errors.Is.
var (
	ErrNotFound               = New(KindNotFound, "not found")
	ErrForbidden              = New(KindForbidden, "forbidden")
	ErrInvalidTransition      = New(KindInvalidTransition, "invalid transition")
	ErrSlotUnavailable        = New(KindSlotUnavailable, "slot unavailable")
	ErrAlreadyPaid            = New(KindAlreadyPaid, "already paid")
	ErrUnknownReference       = New(KindUnknownReference, "unknown reference")
	ErrUnsupportedGateway     = New(KindUnsupportedGateway, "unsupported gateway")
	ErrInvalidPayload         = New(KindInvalidPayload, "invalid payload")
	ErrGatewayUnreachable     = New(KindGatewayUnreachable, "gateway unreachable")
	ErrReconciliationMismatch = New(KindReconciliationMismatch, "reconciliation mismatch")
	ErrInvalid                = New(KindInvalid, "invalid argument")
	ErrConflict               = New(KindConflict, "conflict")
)

// Error is a classified error.
type Error struct {
	Kind    Kind
	Message string
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports a match when target carries the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first classified error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return KindOf(err) == KindGatewayUnreachable
}
