package booking

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sewago/sewago-api/internal/middleware"
	"github.com/sewago/sewago-api/internal/pkg/errorhandler"
	"github.com/sewago/sewago-api/internal/pkg/response"
	"github.com/sewago/sewago-api/internal/pkg/validator"
)

// Completer finishes a booking together with its settlement
type Completer interface {
	CompleteBooking(ctx context.Context, bookingID uuid.UUID, actor Actor) (*Booking, error)
}

// Handler handles booking HTTP requests
type Handler struct {
	service   *Service
	completer Completer
}

// NewHandler creates booking handler
func NewHandler(service *Service, completer Completer) *Handler {
	return &Handler{service: service, completer: completer}
}

func actorFrom(r *http.Request) Actor {
	return Actor{ID: middleware.GetUserID(r.Context()), Role: middleware.GetRole(r.Context())}
}

// Create handles POST /bookings
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	b, err := h.service.Create(r.Context(), actorFrom(r), &req)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	response.Created(w, BookingResponseFromEntity(b))
}

// GetByID handles GET /bookings/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	b, err := h.service.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	response.OK(w, BookingResponseFromEntity(b))
}

// List handles GET /bookings
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := ListFilter{Status: Status(q.Get("status")), Page: page, Limit: limit}

	bookings, total, err := h.service.List(r.Context(), actorFrom(r), filter)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	items := make([]*BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = BookingResponseFromEntity(b)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	response.WithMeta(w, items, response.NewMeta(total, page, limit))
}

// History handles GET /bookings/{id}/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	history, err := h.service.History(r.Context(), actorFrom(r), id)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	items := make([]StatusEventResponse, len(history))
	for i, e := range history {
		items[i] = StatusEventResponseFromEntity(e)
	}
	response.OK(w, items)
}

// UpdateStatus handles PATCH /bookings/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	var req UpdateStatusRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	actor := actorFrom(r)
	var b *Booking
	if Status(req.Status) == StatusCompleted {
		if h.completer == nil {
			errorhandler.Write(r.Context(), w, ErrCompletionRequired)
			return
		}
		b, err = h.completer.CompleteBooking(r.Context(), id, actor)
	} else {
		b, err = h.service.Advance(r.Context(), id, Status(req.Status), actor, req.Reason)
	}
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	response.OK(w, BookingResponseFromEntity(b))
}

// Cancel handles POST /bookings/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	var req CancelRequest
	if r.ContentLength != 0 {
		if err := response.DecodeJSON(r.Body, &req); err != nil {
			response.BadRequest(w, "Invalid JSON body")
			return
		}
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	b, err := h.service.Cancel(r.Context(), id, actorFrom(r), req.Reason)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	response.OK(w, BookingResponseFromEntity(b))
}

// AssignProvider handles POST /bookings/{id}/assign
func (h *Handler) AssignProvider(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	var req AssignProviderRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	b, err := h.service.AssignProvider(r.Context(), id, req.ProviderID, actorFrom(r))
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	response.OK(w, BookingResponseFromEntity(b))
}
