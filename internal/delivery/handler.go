package delivery

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/workdesk-erp/workdesk-erp/internal/platform/httpx"
	"github.com/workdesk-erp/workdesk-erp/internal/rbac"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Handler serves the delivery endpoints.
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

// MountRoutes registers delivery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermDeliveriesView)).Get("/", h.list)
	r.With(h.guard.RequireAny(shared.PermDeliveriesView)).Get("/{deliveryID}", h.get)
	r.With(h.guard.RequireAny(shared.PermDeliveriesView)).Get("/projects/{projectID}/balances", h.balances)
	r.With(h.guard.RequireAny(shared.PermDeliveriesEdit)).Post("/", h.record)
}

type recordRequest struct {
	ProjectID   int64   `json:"project_id" validate:"required,gt=0"`
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	Direction   string  `json:"direction" validate:"required,oneof=DELIVERED RETURNED"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
	DeliveredAt string  `json:"delivered_at" validate:"omitempty,datetime=2006-01-02"`
	Note        string  `json:"note" validate:"max=1000"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	projectID, _ := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	req := ListRequest{
		ProjectID: projectID,
		ProductID: productID,
		Direction: Direction(r.URL.Query().Get("direction")),
		Page:      page,
		PerPage:   perPage,
	}

	records, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Paginated(w, records, shared.NewPagination(page, perPage, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "deliveryID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, rec)
}

func (h *Handler) balances(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	balances, err := h.service.Balances(r.Context(), projectID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, balances)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	rec := Record{
		ProjectID: req.ProjectID,
		ProductID: req.ProductID,
		Direction: Direction(req.Direction),
		Qty:       req.Qty,
		Note:      req.Note,
	}
	if req.DeliveredAt != "" {
		rec.DeliveredAt, _ = time.Parse("2006-01-02", req.DeliveredAt)
	}

	created, err := h.service.Record(r.Context(), rec, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}
