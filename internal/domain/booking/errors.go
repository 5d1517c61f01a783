package booking

import "github.com/sewago/sewago-api/internal/pkg/apperror"

var (
	ErrBookingNotFound    = apperror.New(apperror.KindNotFound, "booking not found")
	ErrNotAllowed         = apperror.New(apperror.KindForbidden, "you are not allowed to perform this action on the booking")
	ErrInvalidTransition  = apperror.New(apperror.KindInvalidTransition, "booking status transition is not allowed")
	ErrStatusChanged      = apperror.New(apperror.KindInvalidTransition, "booking status changed concurrently")
	ErrSlotUnavailable    = apperror.New(apperror.KindSlotUnavailable, "provider is already booked for this slot")
	ErrInvalidStatus      = apperror.New(apperror.KindInvalid, "unknown booking status")
	ErrInvalidSlot        = apperror.New(apperror.KindInvalid, "invalid slot")
	ErrInvalidPrice       = apperror.New(apperror.KindInvalid, "price must be greater than zero")
	ErrProviderRequired   = apperror.New(apperror.KindInvalid, "booking has no assigned provider")
	ErrCompletionRequired = apperror.New(apperror.KindInvalidTransition, "bookings are completed through settlement")
)
