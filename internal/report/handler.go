package report

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workdesk-erp/workdesk-erp/internal/platform/httpx"
	"github.com/workdesk-erp/workdesk-erp/internal/rbac"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Handler serves the report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   *rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard *rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermReportsView)).Get("/dashboard", h.dashboard)
	r.With(h.guard.RequireAny(shared.PermReportsView)).Get("/projects", h.projects)
	r.With(h.guard.RequireAny(shared.PermReportsView)).Get("/aging", h.aging)
	r.With(h.guard.RequireAny(shared.PermReportsView)).Get("/aging.csv", h.agingCSV)
	r.With(h.guard.RequireAny(shared.PermReportsView)).Get("/payables-aging", h.payablesAging)
	r.With(h.guard.RequireAny(shared.PermReportsView)).Get("/payables-aging.csv", h.payablesAgingCSV)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Dashboard(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, snap)
}

func (h *Handler) projects(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.ProjectSummaries(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, snap)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.AgingSnapshot(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, snap)
}

func (h *Handler) agingCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ar_aging.csv"`)
	if err := h.service.WriteAgingCSV(r.Context(), w); err != nil {
		h.logger.Error("write aging csv", slog.Any("error", err))
	}
}

func (h *Handler) payablesAging(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.PayablesAgingSnapshot(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, snap)
}

func (h *Handler) payablesAgingCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ap_aging.csv"`)
	if err := h.service.WritePayablesAgingCSV(r.Context(), w); err != nil {
		h.logger.Error("write payables aging csv", slog.Any("error", err))
	}
}
