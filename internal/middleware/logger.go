package middleware

import (
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sewago/sewago-api/internal/pkg/logger"
)

// Logger writes one access log line per request. Provider redirects are tagged with their
// gateway so settlement traffic can be traced without the query string, which carries signed payloads.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		l := logger.FromContext(r.Context())
		event := l.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = l.Error()
		case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
			event = l.Warn()
		}

		if gw := webhookGateway(r.URL.Path); gw != "" {
			event = event.Str("gateway", gw)
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("ip", getClientIP(r)).
			Str("user_agent", r.UserAgent()).
			Msg("HTTP Request")
	})
}

// webhookGateway returns the provider name for /webhooks/{gateway}/... paths.
func webhookGateway(path string) string {
	_, rest, ok := strings.Cut(path, "/webhooks/")
	if !ok {
		return ""
	}
	gw, _, _ := strings.Cut(rest, "/")
	return gw
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
