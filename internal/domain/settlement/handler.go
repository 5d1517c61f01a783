package settlement

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sewago/sewago-api/internal/domain/booking"
	"github.com/sewago/sewago-api/internal/middleware"
	"github.com/sewago/sewago-api/internal/pkg/errorhandler"
	"github.com/sewago/sewago-api/internal/pkg/esewa"
	"github.com/sewago/sewago-api/internal/pkg/gateway"
	"github.com/sewago/sewago-api/internal/pkg/logger"
	"github.com/sewago/sewago-api/internal/pkg/response"
	"github.com/sewago/sewago-api/internal/pkg/validator"
)

// Handler handles payment endpoints and provider redirects
type Handler struct {
	svc         *Service
	frontendURL string
}

func NewHandler(svc *Service, frontendURL string) *Handler {
	return &Handler{svc: svc, frontendURL: strings.TrimRight(frontendURL, "/")}
}

func actorFrom(r *http.Request) booking.Actor {
	return booking.Actor{ID: middleware.GetUserID(r.Context()), Role: middleware.GetRole(r.Context())}
}

// Initiate handles POST /payments/initiate
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	res, err := h.svc.InitiatePaymentForBooking(r.Context(), req.BookingID, strings.ToLower(req.Gateway), actorFrom(r))
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	response.Created(w, res)
}

// Verify handles POST /payments/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyPaymentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	res, err := h.svc.ConfirmPaymentAs(r.Context(), actorFrom(r), req.ReferenceID, strings.ToLower(req.Gateway), req.Fields)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	response.OK(w, res)
}

// Attempts handles GET /payments/bookings/{id}/attempts
func (h *Handler) Attempts(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	attempts, err := h.svc.Attempts(r.Context(), actorFrom(r), id)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	items := make([]AttemptResponse, len(attempts))
	for i, a := range attempts {
		items[i] = AttemptResponseFromEntity(a)
	}
	response.OK(w, items)
}

// EsewaSuccess handles GET /webhooks/esewa/success, the browser redirect eSewa sends after payment.
func (h *Handler) EsewaSuccess(w http.ResponseWriter, r *http.Request) {
	data := r.URL.Query().Get("data")
	cb, err := esewa.DecodeCallback(data)
	if err != nil {
		logger.LogWarn(r.Context(), "malformed esewa redirect", "error", err.Error())
		h.redirect(w, r, false, "", "")
		return
	}

	res, err := h.svc.ConfirmPayment(r.Context(), cb.TransactionUUID, gateway.Esewa, map[string]string{"data": data})
	h.finish(w, r, cb.TransactionUUID, res, err)
}

// KhaltiCallback handles GET /webhooks/khalti/callback
func (h *Handler) KhaltiCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := q.Get("purchase_order_id")
	if ref == "" || q.Get("pidx") == "" {
		logger.LogWarn(r.Context(), "malformed khalti callback", "query", r.URL.RawQuery)
		h.redirect(w, r, false, "", ref)
		return
	}

	fields := map[string]string{
		"pidx":              q.Get("pidx"),
		"purchase_order_id": ref,
		"status":            q.Get("status"),
		"transaction_id":    q.Get("transaction_id"),
	}
	res, err := h.svc.ConfirmPayment(r.Context(), ref, gateway.Khalti, fields)
	h.finish(w, r, ref, res, err)
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request, ref string, res *ConfirmResult, err error) {
	if err != nil {
		logger.LogError(r.Context(), err, "payment callback could not be settled", "reference_id", ref)
		h.redirect(w, r, false, "", ref)
		return
	}
	bookingID := res.BookingID.String()
	if res.Pending {
		h.redirectTo(w, r, "/payment/pending", bookingID, ref)
		return
	}
	h.redirect(w, r, res.Verified, bookingID, ref)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, ok bool, bookingID, ref string) {
	path := "/payment/failure"
	if ok {
		path = "/payment/success"
	}
	h.redirectTo(w, r, path, bookingID, ref)
}

func (h *Handler) redirectTo(w http.ResponseWriter, r *http.Request, path, bookingID, ref string) {
	q := url.Values{}
	if bookingID != "" {
		q.Set("booking_id", bookingID)
	}
	if ref != "" {
		q.Set("reference_id", ref)
	}
	target := h.frontendURL + path
	if encoded := q.Encode(); encoded != "" {
		target += "?" + encoded
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Routes mounts the authenticated payment endpoints. limiter throttles per user.
func (h *Handler) Routes(authMiddleware, limiter func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(limiter)
		r.Post("/initiate", h.Initiate)
		r.Post("/verify", h.Verify)
	})
	r.Get("/bookings/{id}/attempts", h.Attempts)

	return r
}

// WebhookRoutes mounts the public provider redirects.
func (h *Handler) WebhookRoutes(limiter func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(limiter)
	r.Get("/esewa/success", h.EsewaSuccess)
	r.Get("/khalti/callback", h.KhaltiCallback)
	return r
}
