package ap

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

// Handler serves the payables endpoints.
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

// MountRoutes registers payable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermFinanceView)).Get("/bills", h.list)
	r.With(h.guard.RequireAny(shared.PermFinanceView)).Get("/bills/{billID}", h.get)
	r.With(h.guard.RequireAny(shared.PermFinanceView)).Get("/bills/{billID}/payments", h.payments)
	r.With(h.guard.RequireAny(shared.PermFinanceView)).Get("/aging", h.aging)
	r.With(h.guard.RequireAny(shared.PermFinanceEdit)).Post("/bills", h.register)
	r.With(h.guard.RequireAny(shared.PermFinanceEdit)).Post("/bills/{billID}/cancel", h.cancel)
	r.With(h.guard.RequireAny(shared.PermFinanceEdit)).Post("/bills/{billID}/payments", h.recordPayment)
}

type billRequest struct {
	BillNo          string  `json:"bill_no" validate:"required,max=64"`
	VendorID        int64   `json:"vendor_id" validate:"required,gt=0"`
	PurchaseOrderID *int64  `json:"purchase_order_id" validate:"omitempty,gt=0"`
	IssueDate       string  `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate         string  `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	Notes           string  `json:"notes" validate:"max=1000"`
}

type paymentRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	PaidAt    string  `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
	Method    string  `json:"method" validate:"required,max=32"`
	Reference string  `json:"reference" validate:"max=255"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	vendorID, _ := strconv.ParseInt(r.URL.Query().Get("vendor_id"), 10, 64)
	req := ListRequest{
		VendorID: vendorID,
		Status:   BillStatus(r.URL.Query().Get("status")),
		Page:     page,
		PerPage:  perPage,
	}

	bills, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Paginated(w, bills, shared.NewPagination(page, perPage, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "billID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, b)
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "billID"), 10, 64)
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

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if v := r.URL.Query().Get("as_of"); v != "" {
		asOf, _ = time.Parse("2006-01-02", v)
	}
	report, err := h.service.AgingReport(r.Context(), asOf)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, report)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	b := Bill{
		BillNo:          req.BillNo,
		VendorID:        req.VendorID,
		PurchaseOrderID: req.PurchaseOrderID,
		Amount:          req.Amount,
		Notes:           req.Notes,
	}
	if req.IssueDate != "" {
		b.IssueDate, _ = time.Parse("2006-01-02", req.IssueDate)
	}
	if req.DueDate != "" {
		b.DueDate, _ = time.Parse("2006-01-02", req.DueDate)
	}

	created, err := h.service.RegisterBill(r.Context(), b, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "billID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	b, err := h.service.CancelBill(r.Context(), id, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, b)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "billID"), 10, 64)
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

	p := Payment{BillID: id, Amount: req.Amount, Method: req.Method, Reference: req.Reference}
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
