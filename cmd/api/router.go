package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sewago/sewago-api/internal/domain/booking"
	"github.com/sewago/sewago-api/internal/domain/settlement"
	"github.com/sewago/sewago-api/internal/domain/wallet"
	"github.com/sewago/sewago-api/internal/middleware"
	"github.com/sewago/sewago-api/internal/pkg/response"
)

type routerDeps struct {
	allowedOrigins    []string
	authMiddleware    func(http.Handler) http.Handler
	paymentLimiter    func(http.Handler) http.Handler
	bookingHandler    *booking.Handler
	walletHandler     *wallet.Handler
	settlementHandler *settlement.Handler
	wsHandler         http.Handler
	ping              func(ctx context.Context) error
}

func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(d.allowedOrigins))

	// WebSocket endpoint; browsers cannot set headers so the token may come in the query
	if d.wsHandler != nil {
		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			if token := r.URL.Query().Get("token"); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
			d.authMiddleware(d.wsHandler).ServeHTTP(w, r)
		})
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.ping(ctx); err != nil {
				response.Error(w, http.StatusServiceUnavailable, "UNHEALTHY", "database unavailable")
				return
			}
		}
		response.OK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.LimitByIP(300, time.Minute))

		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			response.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/bookings", d.bookingHandler.Routes(d.authMiddleware))
		r.Mount("/wallet", d.walletHandler.Routes(d.authMiddleware))
		r.Mount("/payments", d.settlementHandler.Routes(d.authMiddleware, d.paymentLimiter))
		r.Mount("/webhooks", d.settlementHandler.WebhookRoutes(middleware.LimitByIP(60, time.Minute)))
		r.Mount("/admin", d.walletHandler.AdminRoutes(d.authMiddleware))
	})

	return r
}
