package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/sewago/sewago-api/internal/pkg/logger"
	"github.com/sewago/sewago-api/internal/pkg/response"
)

// Recover turns a panic into a 500 envelope. http.ErrAbortHandler is re-raised so the server aborts the
// connection as intended.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.FromContext(r.Context()).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("user_id", GetUserID(r.Context()).String()).
				Msg("Panic recovered")

			// websocket connections are hijacked; nothing can be written to them
			if r.Header.Get("Upgrade") == "" {
				response.InternalError(w)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
