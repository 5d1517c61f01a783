package errorhandler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sewago/sewago-api/internal/pkg/apperror"
	"github.com/sewago/sewago-api/internal/pkg/logger"
	"github.com/sewago/sewago-api/internal/pkg/response"
)

const unavailableMessage = "Payment provider is temporarily unavailable, please retry"

var statusByKind = map[apperror.Kind]int{
	apperror.KindNotFound:               http.StatusNotFound,
	apperror.KindForbidden:              http.StatusForbidden,
	apperror.KindInvalidTransition:      http.StatusConflict,
	apperror.KindSlotUnavailable:        http.StatusConflict,
	apperror.KindAlreadyPaid:            http.StatusConflict,
	apperror.KindUnknownReference:       http.StatusNotFound,
	apperror.KindUnsupportedGateway:     http.StatusBadRequest,
	apperror.KindInvalidPayload:         http.StatusBadRequest,
	apperror.KindGatewayUnreachable:     http.StatusServiceUnavailable,
	apperror.KindReconciliationMismatch: http.StatusConflict,
	apperror.KindInvalid:                http.StatusBadRequest,
	apperror.KindConflict:               http.StatusConflict,
}

// Status returns the HTTP status for err and the envelope code sent with it.
func Status(err error) (int, string) {
	kind := apperror.KindOf(err)
	if status, ok := statusByKind[kind]; ok {
		return status, string(kind)
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// Write maps a domain error to the response envelope. Classified errors are sent with their own message,
// anything else is logged and hidden behind a generic 500. Gateway outages carry provider URLs and dial errors,
// so the client only gets a fixed message for them.
func Write(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := Status(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(ctx).Error().Err(err).Msg("Request failed")
		response.InternalError(w)
		return
	}

	message := err.Error()
	event := logger.FromContext(ctx).Debug()
	if status == http.StatusServiceUnavailable {
		event = logger.FromContext(ctx).Warn()
		w.Header().Set("Retry-After", "5")
		message = unavailableMessage
	}
	event.Err(err).Str("error_code", code).Int("status_code", status).Msg("Request rejected")

	response.Error(w, status, code, message)
}

// LogValidationError logs validation errors with details
func LogValidationError(ctx context.Context, fieldErrors map[string]string) {
	errJSON, _ := json.Marshal(fieldErrors)
	logger.FromContext(ctx).Warn().
		RawJSON("validation_errors", errJSON).
		Msg("Validation error")
}
