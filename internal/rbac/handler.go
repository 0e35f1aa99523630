package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/workdesk-erp/workdesk-erp/internal/platform/httpx"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Handler exposes role assignment endpoints, ADMIN only.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers role management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRolesView))
		r.Get("/users/{userID}", h.listAssignments)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRolesEdit))
		r.Post("/users/{userID}", h.assign)
		r.Delete("/users/{userID}/{role}", h.revoke)
	})
}

type assignRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN FINANCE SALES PRODUCTION"`
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	assignments, err := h.service.Assignments(r.Context(), userID)
	if err != nil {
		h.logger.Error("list role assignments", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, assignments)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}
	actor := shared.UserIDFromContext(r.Context())
	if err := h.service.Assign(r.Context(), userID, req.Role, actor); err != nil {
		h.logger.Error("assign role", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, "role assigned", nil)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.service.Revoke(r.Context(), userID, chi.URLParam(r, "role")); err != nil {
		h.logger.Error("revoke role", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, "role revoked", nil)
}
