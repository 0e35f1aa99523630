package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/workdesk-erp/workdesk-erp/internal/platform/httpx"
	"github.com/workdesk-erp/workdesk-erp/internal/rbac"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Handler serves the product catalog endpoints.
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

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermCatalogView)).Get("/", h.list)
	r.With(h.guard.RequireAny(shared.PermCatalogView)).Get("/{productID}", h.get)
	r.With(h.guard.RequireAny(shared.PermCatalogEdit)).Post("/", h.create)
	r.With(h.guard.RequireAny(shared.PermCatalogEdit)).Put("/{productID}", h.update)
	r.With(h.guard.RequireAny(shared.PermCatalogEdit)).Delete("/{productID}", h.deactivate)
}

type productRequest struct {
	SKU         string  `json:"sku" validate:"required,max=64"`
	Name        string  `json:"name" validate:"required,max=255"`
	Description string  `json:"description"`
	Unit        string  `json:"unit" validate:"required,max=16"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	IsActive    *bool   `json:"is_active"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	req := ListRequest{
		Search:  r.URL.Query().Get("q"),
		Page:    page,
		PerPage: perPage,
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true"
		req.Active = &active
	}

	products, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Paginated(w, products, shared.NewPagination(page, perPage, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Unit:        req.Unit,
		UnitPrice:   req.UnitPrice,
	}, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	existing, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	existing.SKU = req.SKU
	existing.Name = req.Name
	existing.Description = req.Description
	existing.Unit = req.Unit
	existing.UnitPrice = req.UnitPrice
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	updated, err := h.service.Update(r.Context(), *existing, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, updated)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.service.Deactivate(r.Context(), id, shared.UserIDFromContext(r.Context())); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, "product deactivated", nil)
}
