package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/sewago/sewago-api/internal/pkg/logger"
	"github.com/sewago/sewago-api/internal/pkg/ratelimit"
	"github.com/sewago/sewago-api/internal/pkg/response"
)

// RateConsumer counts hits against a shared window.
type RateConsumer interface {
	Consume(ctx context.Context, scope, subject string, limit int, window time.Duration) (ratelimit.Result, error)
}

// LimitByIP is the coarse per-instance limiter applied to every route.
func LimitByIP(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requests, window)
}

// LimitByUser limits authenticated callers across all API instances.
// Limiter failures let the request through.
func LimitByUser(limiter RateConsumer, scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := getClientIP(r)
			if userID := GetUserID(r.Context()); userID != uuid.Nil {
				subject = userID.String()
			}

			res, err := limiter.Consume(r.Context(), scope, subject, limit, window)
			if err != nil {
				logger.FromContext(r.Context()).Warn().Err(err).Str("scope", scope).Msg("Rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter))
				response.TooManyRequests(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
