package jobcode

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

// Handler serves the project endpoints.
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

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermJobCodesView)).Get("/", h.list)
	r.With(h.guard.RequireAny(shared.PermJobCodesView)).Get("/{projectID}", h.get)
	r.With(h.guard.RequireAny(shared.PermJobCodesView)).Get("/{projectID}/summary", h.summary)
	r.With(h.guard.RequireAny(shared.PermJobCodesEdit)).Post("/", h.register)
	r.With(h.guard.RequireAny(shared.PermJobCodesEdit)).Put("/{projectID}", h.update)
	r.With(h.guard.RequireAny(shared.PermJobCodesEdit)).Post("/{projectID}/transition", h.transition)
}

type registerRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	CustomerID  int64  `json:"customer_id" validate:"required,gt=0"`
	Description string `json:"description"`
	StartDate   string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate     string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,oneof=IN_PROGRESS COMPLETED CANCELLED"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	customerID, _ := strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
	req := ListRequest{
		Status:     Status(r.URL.Query().Get("status")),
		CustomerID: customerID,
		Search:     r.URL.Query().Get("q"),
		Page:       page,
		PerPage:    perPage,
	}

	projects, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Paginated(w, projects, shared.NewPagination(page, perPage, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
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

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	s, err := h.service.Summary(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, s)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	p := Project{
		Name:        req.Name,
		CustomerID:  req.CustomerID,
		Description: req.Description,
	}
	if req.StartDate != "" {
		p.StartDate, _ = time.Parse("2006-01-02", req.StartDate)
	}
	if req.DueDate != "" {
		due, _ := time.Parse("2006-01-02", req.DueDate)
		p.DueDate = &due
	}

	created, err := h.service.Register(r.Context(), p, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	p := Project{ID: id, Name: req.Name, Description: req.Description}
	if req.StartDate != "" {
		p.StartDate, _ = time.Parse("2006-01-02", req.StartDate)
	}
	if req.DueDate != "" {
		due, _ := time.Parse("2006-01-02", req.DueDate)
		p.DueDate = &due
	}

	updated, err := h.service.Update(r.Context(), p, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, updated)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	p, err := h.service.Transition(r.Context(), id, Status(req.Status), shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, p)
}
