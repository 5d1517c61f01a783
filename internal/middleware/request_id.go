package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/sewago/sewago-api/internal/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// incoming ids are reused only when they look like ids; anything else is replaced
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// RequestID tags the request, the response and the request-scoped logger with one id.
// Provider redirects arrive without one and get a fresh uuid.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if !requestIDPattern.MatchString(requestID) {
			requestID = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, requestID)
		r.Header.Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
	})
}
