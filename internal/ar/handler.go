package ar

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/workdesk-erp/workdesk-erp/internal/platform/httpx"
	"github.com/workdesk-erp/workdesk-erp/internal/rbac"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Handler serves the receivables endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   *rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard *rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers receivable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermFinanceView)).Get("/aging", h.aging)
	r.With(h.guard.RequireAny(shared.PermFinanceView)).Get("/customers/{customerID}/statement", h.statement)
}

func asOfParam(r *http.Request) time.Time {
	if v := r.URL.Query().Get("as_of"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.AgingReport(r.Context(), asOfParam(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, report)
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	st, err := h.service.Statement(r.Context(), customerID, asOfParam(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, st)
}
