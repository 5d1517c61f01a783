package settlement

import "github.com/sewago/sewago-api/internal/pkg/apperror"

var (
	ErrNotBookingOwner  = apperror.New(apperror.KindForbidden, "only the customer who booked can pay for it")
	ErrAlreadyPaid      = apperror.New(apperror.KindAlreadyPaid, "booking is already paid")
	ErrUnknownReference = apperror.New(apperror.KindUnknownReference, "unknown payment reference")
	ErrGatewayMismatch  = apperror.New(apperror.KindInvalidPayload, "payment reference belongs to another gateway")
	ErrBookingClosed    = apperror.New(apperror.KindInvalidTransition, "booking no longer accepts payments")
	ErrPaymentRequired  = apperror.New(apperror.KindInvalidTransition, "booking must be paid before completion")
)
