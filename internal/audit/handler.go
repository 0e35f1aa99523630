package audit

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

// Handler serves the audit trail read endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   *rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard *rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermAuditView)).Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	req := ListRequest{
		ActorID:  actorID,
		Entity:   r.URL.Query().Get("entity"),
		EntityID: r.URL.Query().Get("entity_id"),
		Action:   r.URL.Query().Get("action"),
		Page:     page,
		PerPage:  perPage,
	}
	if v := r.URL.Query().Get("from"); v != "" {
		req.From, _ = time.Parse("2006-01-02", v)
	}
	if v := r.URL.Query().Get("to"); v != "" {
		req.To, _ = time.Parse("2006-01-02", v)
	}

	entries, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Paginated(w, entries, shared.NewPagination(page, perPage, total))
}
