package quotation

import (
	"context"
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

// Handler serves the quotation endpoints.
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

// MountRoutes registers quotation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermQuotationsView)).Get("/", h.list)
	r.With(h.guard.RequireAny(shared.PermQuotationsView)).Get("/{quotationID}", h.get)
	r.With(h.guard.RequireAny(shared.PermQuotationsEdit)).Post("/", h.create)
	r.With(h.guard.RequireAny(shared.PermQuotationsEdit)).Put("/{quotationID}", h.update)
	r.With(h.guard.RequireAny(shared.PermQuotationsEdit)).Post("/{quotationID}/submit", h.submit)
	r.With(h.guard.RequireAny(shared.PermQuotationsEdit)).Post("/{quotationID}/send", h.send)
	r.With(h.guard.RequireAny(shared.PermQuotationsEdit)).Post("/{quotationID}/accept", h.accept)
	r.With(h.guard.RequireAny(shared.PermQuotationsEdit)).Post("/{quotationID}/revise", h.revise)
}

type lineRequest struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	DiscountPct float64 `json:"discount_pct" validate:"gte=0,lte=100"`
}

type quotationRequest struct {
	ProjectID  int64         `json:"project_id" validate:"required,gt=0"`
	ValidUntil string        `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	Notes      string        `json:"notes"`
	TaxRate    float64       `json:"tax_rate" validate:"gte=0,lte=100"`
	Lines      []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type submitRequest struct {
	ApproverIDs []int64 `json:"approver_ids" validate:"required,min=1,dive,gt=0"`
}

func (req *quotationRequest) toModel() Quotation {
	q := Quotation{
		ProjectID: req.ProjectID,
		Notes:     req.Notes,
		TaxRate:   req.TaxRate,
	}
	if req.ValidUntil != "" {
		until, _ := time.Parse("2006-01-02", req.ValidUntil)
		q.ValidUntil = &until
	}
	for _, l := range req.Lines {
		q.Lines = append(q.Lines, Line{
			ProductID:   l.ProductID,
			Description: l.Description,
			Qty:         l.Qty,
			UnitPrice:   l.UnitPrice,
			DiscountPct: l.DiscountPct,
		})
	}
	return q
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	projectID, _ := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)
	customerID, _ := strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
	req := ListRequest{
		ProjectID:  projectID,
		CustomerID: customerID,
		Status:     Status(r.URL.Query().Get("status")),
		Page:       page,
		PerPage:    perPage,
	}

	quotations, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Paginated(w, quotations, shared.NewPagination(page, perPage, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "quotationID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req quotationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	created, err := h.service.CreateDraft(r.Context(), req.toModel(), shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "quotationID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req quotationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	q := req.toModel()
	q.ID = id
	updated, err := h.service.UpdateDraft(r.Context(), q, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, updated)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "quotationID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	q, err := h.service.Submit(r.Context(), id, req.ApproverIDs, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.Send)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.Accept)
}

func (h *Handler) revise(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.Revise)
}

func (h *Handler) simple(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, actorID int64) (*Quotation, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "quotationID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	q, err := op(r.Context(), id, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
}
