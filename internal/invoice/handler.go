package invoice

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

// Handler serves the tax invoice endpoints.
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

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermInvoicesView)).Get("/", h.list)
	r.With(h.guard.RequireAny(shared.PermInvoicesView)).Get("/{invoiceID}", h.get)
	r.With(h.guard.RequireAny(shared.PermInvoicesView)).Get("/{invoiceID}/payments", h.payments)
	r.With(h.guard.RequireAny(shared.PermInvoicesEdit)).Post("/", h.issue)
	r.With(h.guard.RequireAny(shared.PermInvoicesEdit)).Post("/{invoiceID}/cancel", h.cancel)
	r.With(h.guard.RequireAny(shared.PermFinanceEdit)).Post("/{invoiceID}/payments", h.recordPayment)
}

type lineRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

type issueRequest struct {
	ProjectID int64         `json:"project_id" validate:"required,gt=0"`
	IssueDate string        `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate   string        `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	TaxRate   float64       `json:"tax_rate" validate:"gte=0,lte=100"`
	Lines     []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type paymentRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	PaidAt    string  `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
	Method    string  `json:"method" validate:"required,max=32"`
	Reference string  `json:"reference" validate:"max=255"`
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

	invoices, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Paginated(w, invoices, shared.NewPagination(page, perPage, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	payments, err := h.service.Payments(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, payments)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	inv := Invoice{ProjectID: req.ProjectID, TaxRate: req.TaxRate}
	if req.IssueDate != "" {
		inv.IssueDate, _ = time.Parse("2006-01-02", req.IssueDate)
	}
	if req.DueDate != "" {
		inv.DueDate, _ = time.Parse("2006-01-02", req.DueDate)
	}
	for _, l := range req.Lines {
		inv.Lines = append(inv.Lines, Line{ProductID: l.ProductID, Qty: l.Qty, UnitPrice: l.UnitPrice})
	}

	created, err := h.service.IssueWithKey(r.Context(), inv, r.Header.Get("Idempotency-Key"), shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	inv, err := h.service.Cancel(r.Context(), id, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	p := Payment{InvoiceID: id, Amount: req.Amount, Method: req.Method, Reference: req.Reference}
	if req.PaidAt != "" {
		p.PaidAt, _ = time.Parse("2006-01-02", req.PaidAt)
	}

	updated, err := h.service.RecordPayment(r.Context(), p, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, updated)
}
