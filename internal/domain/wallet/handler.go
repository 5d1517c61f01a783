package wallet

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sewago/sewago-api/internal/middleware"
	"github.com/sewago/sewago-api/internal/pkg/errorhandler"
	"github.com/sewago/sewago-api/internal/pkg/response"
	"github.com/sewago/sewago-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Balance handles GET /wallet/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, err := h.svc.Wallet(r.Context(), userID)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	response.OK(w, BalanceResponseFromWallet(wallet))
}

// Transactions handles GET /wallet/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := HistoryFilter{Page: page, Limit: limit}

	if t := q.Get("type"); t != "" {
		filter.Type = TransactionType(t)
		if !filter.Type.Valid() {
			response.BadRequest(w, "unknown transaction type")
			return
		}
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "invalid "+name+" timestamp, expected RFC3339")
			return
		}
		*dst = &ts
	}

	entries, total, err := h.svc.History(r.Context(), userID, filter)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	items := make([]EntryResponse, len(entries))
	for i, e := range entries {
		items[i] = EntryResponseFromEntity(e)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	response.WithMeta(w, items, response.NewMeta(total, filter.Page, filter.Limit))
}

// Audit handles GET /wallet/audit
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}
	h.writeAudit(r.Context(), w, userID)
}

// Statement handles POST /wallet/statements
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req StatementRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	statement, err := h.svc.ExportStatement(r.Context(), userID, req.From, req.To)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	response.Created(w, statement)
}

// AdminAudit handles GET /admin/wallets/{userId}/audit
func (h *Handler) AdminAudit(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}
	h.writeAudit(r.Context(), w, userID)
}

// AdminAuditAll handles POST /admin/wallets/audit
func (h *Handler) AdminAuditAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.AuditAll(r.Context())
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, summary)
}

// Adjust handles POST /admin/wallets/{userId}/adjustments
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}

	var req AdjustRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	entry, err := h.svc.Adjust(r.Context(), middleware.GetUserID(r.Context()), userID, req)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	response.Created(w, EntryResponseFromEntity(entry))
}

// Reconcile handles POST /admin/ledger/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.svc.Reconcile(r.Context(), req.ReferenceIDs, req.Notes)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	response.OK(w, result)
}

// writeAudit answers 200 for a consistent wallet and 409 with the audit attached otherwise.
func (h *Handler) writeAudit(ctx context.Context, w http.ResponseWriter, userID uuid.UUID) {
	audit, err := h.svc.VerifyBalance(ctx, userID)
	if err != nil && !errors.Is(err, ErrBalanceMismatch) {
		errorhandler.Write(ctx, w, err)
		return
	}
	if err != nil {
		response.JSON(w, http.StatusConflict, audit)
		return
	}
	response.OK(w, audit)
}

// Routes mounts the wallet endpoints of the signed-in user.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.Balance)
	r.Get("/transactions", h.Transactions)
	r.Get("/audit", h.Audit)
	r.Post("/statements", h.Statement)
	return r
}

// AdminRoutes mounts ledger operations for admins.
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())
	r.Post("/wallets/audit", h.AdminAuditAll)
	r.Get("/wallets/{userId}/audit", h.AdminAudit)
	r.Post("/wallets/{userId}/adjustments", h.Adjust)
	r.Post("/ledger/reconcile", h.Reconcile)
	return r
}
