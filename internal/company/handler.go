package company

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

// Handler serves the company REST endpoints.
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

// MountRoutes registers company routes under the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermCompaniesView)).Get("/", h.list)
	r.With(h.guard.RequireAny(shared.PermCompaniesView)).Get("/{companyID}", h.get)
	r.With(h.guard.RequireAny(shared.PermCompaniesEdit)).Post("/", h.create)
	r.With(h.guard.RequireAny(shared.PermCompaniesEdit)).Put("/{companyID}", h.update)
	r.With(h.guard.RequireAny(shared.PermCompaniesEdit)).Post("/{companyID}/roles", h.attachRole)
	r.With(h.guard.RequireAny(shared.PermCompaniesEdit)).Delete("/{companyID}/roles/{role}", h.detachRole)
}

type companyRequest struct {
	Name        string   `json:"name" validate:"required,max=255"`
	TaxRegNo    string   `json:"tax_reg_no" validate:"max=64"`
	Email       string   `json:"email" validate:"omitempty,email"`
	Phone       string   `json:"phone" validate:"max=32"`
	Address     string   `json:"address"`
	ContactName string   `json:"contact_name" validate:"max=255"`
	IsActive    *bool    `json:"is_active"`
	Roles       []string `json:"roles" validate:"dive,oneof=CUSTOMER VENDOR"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	req := ListRequest{
		Role:    RoleKind(r.URL.Query().Get("role")),
		Search:  r.URL.Query().Get("q"),
		Page:    page,
		PerPage: perPage,
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true"
		req.Active = &active
	}

	companies, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Paginated(w, companies, shared.NewPagination(page, perPage, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, c)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	c := Company{
		Name:        req.Name,
		TaxRegNo:    req.TaxRegNo,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		ContactName: req.ContactName,
	}
	for _, role := range req.Roles {
		c.Roles = append(c.Roles, RoleKind(role))
	}

	created, err := h.service.Create(r.Context(), c, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req companyRequest
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

	existing.Name = req.Name
	existing.TaxRegNo = req.TaxRegNo
	existing.Email = req.Email
	existing.Phone = req.Phone
	existing.Address = req.Address
	existing.ContactName = req.ContactName
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

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=CUSTOMER VENDOR"`
}

func (h *Handler) attachRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	if err := h.service.AttachRole(r.Context(), id, RoleKind(req.Role), shared.UserIDFromContext(r.Context())); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, "role attached", nil)
}

func (h *Handler) detachRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	kind := RoleKind(chi.URLParam(r, "role"))

	if err := h.service.DetachRole(r.Context(), id, kind, shared.UserIDFromContext(r.Context())); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, "role detached", nil)
}
