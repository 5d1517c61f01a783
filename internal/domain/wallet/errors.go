package wallet

import "github.com/sewago/sewago-api/internal/pkg/apperror"

var (
	ErrInvalidAmount      = apperror.New(apperror.KindInvalid, "amount must be greater than zero")
	ErrReferenceRequired  = apperror.New(apperror.KindInvalid, "reference_id is required")
	ErrInvalidPosting     = apperror.New(apperror.KindInvalid, "invalid ledger posting")
	ErrInvalidRange       = apperror.New(apperror.KindInvalid, "from must be before to")
	ErrInsufficientFunds  = apperror.New(apperror.KindConflict, "insufficient wallet balance")
	ErrReferenceConflict  = apperror.New(apperror.KindConflict, "reference_id already used with different terms")
	ErrBalanceMismatch    = apperror.New(apperror.KindReconciliationMismatch, "maintained balance does not match ledger replay")
	ErrStatementsDisabled = apperror.New(apperror.KindInvalid, "statement export is not configured")
)
