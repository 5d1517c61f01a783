package booking

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sewago/sewago-api/internal/middleware"
)

// Routes returns booking router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
	r.Get("/{id}/history", h.History)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/cancel", h.Cancel)

	r.With(middleware.RequireAdmin()).Post("/{id}/assign", h.AssignProvider)

	return r
}
