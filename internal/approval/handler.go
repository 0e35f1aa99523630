package approval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/workdesk-erp/workdesk-erp/internal/platform/httpx"
	"github.com/workdesk-erp/workdesk-erp/internal/rbac"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Handler serves the approval inbox and decision endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    *rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard *rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		guard:    guard,
		validate: validator.New(),
	}
}

// MountRoutes registers approval routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermApprovalsView)).Get("/", h.list)
	r.With(h.guard.RequireAny(shared.PermApprovalsView)).Get("/inbox", h.inbox)
	r.With(h.guard.RequireAny(shared.PermApprovalsView)).Get("/{requestID}", h.get)
	r.With(h.guard.RequireAny(shared.PermApprovalsAct)).Post("/{requestID}/approve", h.approve)
	r.With(h.guard.RequireAny(shared.PermApprovalsAct)).Post("/{requestID}/reject", h.reject)
}

type decisionRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	req := ListRequest{
		EntityKind: r.URL.Query().Get("entity_kind"),
		Status:     Status(r.URL.Query().Get("status")),
		Page:       page,
		PerPage:    perPage,
	}
	requests, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Paginated(w, requests, shared.NewPagination(page, perPage, total))
}

// inbox lists requests waiting on the signed-in approver.
func (h *Handler) inbox(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	req := ListRequest{
		Status:     StatusPending,
		ApproverID: shared.UserIDFromContext(r.Context()),
		Page:       page,
		PerPage:    perPage,
	}
	requests, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Paginated(w, requests, shared.NewPagination(page, perPage, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, req)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, act func(ctx context.Context, requestID, actorID int64, note string) (*Request, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	updated, err := act(r.Context(), id, shared.UserIDFromContext(r.Context()), req.Note)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, updated)
}
