package purchase

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

// Handler serves the purchasing endpoints.
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

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermPurchaseView)).Get("/requests", h.listRequests)
	r.With(h.guard.RequireAny(shared.PermPurchaseView)).Get("/requests/{requestID}", h.getRequest)
	r.With(h.guard.RequireAny(shared.PermPurchaseEdit)).Post("/requests", h.createRequest)
	r.With(h.guard.RequireAny(shared.PermPurchaseEdit)).Put("/requests/{requestID}", h.updateRequest)
	r.With(h.guard.RequireAny(shared.PermPurchaseEdit)).Post("/requests/{requestID}/submit", h.submitRequest)
	r.With(h.guard.RequireAny(shared.PermPurchaseEdit)).Post("/requests/{requestID}/convert", h.convert)
	r.With(h.guard.RequireAny(shared.PermPurchaseView)).Get("/requests/{requestID}/rfqs", h.listRFQs)
	r.With(h.guard.RequireAny(shared.PermPurchaseEdit)).Post("/requests/{requestID}/rfqs", h.issueRFQs)

	r.With(h.guard.RequireAny(shared.PermPurchaseView)).Get("/orders", h.listOrders)
	r.With(h.guard.RequireAny(shared.PermPurchaseView)).Get("/orders/{orderID}", h.getOrder)
	r.With(h.guard.RequireAny(shared.PermPurchaseEdit)).Post("/orders", h.createOrder)
	r.With(h.guard.RequireAny(shared.PermPurchaseEdit)).Post("/orders/{orderID}/transition", h.transitionOrder)
}

type requestLineRequest struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
	EstUnitCost float64 `json:"est_unit_cost" validate:"gte=0"`
	Note        string  `json:"note" validate:"max=500"`
}

type prRequest struct {
	ProjectID *int64               `json:"project_id" validate:"omitempty,gt=0"`
	Notes     string               `json:"notes" validate:"max=1000"`
	Lines     []requestLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type submitRequest struct {
	ApproverIDs []int64 `json:"approver_ids" validate:"required,min=1,dive,gt=0"`
}

type convertRequest struct {
	VendorID int64 `json:"vendor_id" validate:"required,gt=0"`
}

type rfqRequest struct {
	VendorIDs []int64 `json:"vendor_ids" validate:"required,min=1,dive,gt=0"`
	Note      string  `json:"note" validate:"max=1000"`
}

type orderLineRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitCost  float64 `json:"unit_cost" validate:"gte=0"`
}

type poRequest struct {
	VendorID   int64              `json:"vendor_id" validate:"required,gt=0"`
	OrderDate  string             `json:"order_date" validate:"omitempty,datetime=2006-01-02"`
	ExpectedAt string             `json:"expected_at" validate:"omitempty,datetime=2006-01-02"`
	Notes      string             `json:"notes" validate:"max=1000"`
	Lines      []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type orderTransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=ISSUED RECEIVED CLOSED CANCELLED"`
}

func (req *prRequest) toModel() Request {
	pr := Request{ProjectID: req.ProjectID, Notes: req.Notes}
	for _, l := range req.Lines {
		pr.Lines = append(pr.Lines, RequestLine{
			ProductID:   l.ProductID,
			Qty:         l.Qty,
			EstUnitCost: l.EstUnitCost,
			Note:        l.Note,
		})
	}
	return pr
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	requesterID, _ := strconv.ParseInt(r.URL.Query().Get("requester_id"), 10, 64)
	req := RequestListRequest{
		Status:      RequestStatus(r.URL.Query().Get("status")),
		RequesterID: requesterID,
		Page:        page,
		PerPage:     perPage,
	}

	requests, total, err := h.service.ListRequests(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Paginated(w, requests, shared.NewPagination(page, perPage, total))
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	pr, err := h.service.GetRequest(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, pr)
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var req prRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	created, err := h.service.CreateRequest(r.Context(), req.toModel(), shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}

func (h *Handler) updateRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req prRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	pr := req.toModel()
	pr.ID = id
	updated, err := h.service.UpdateRequest(r.Context(), pr, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, updated)
}

func (h *Handler) submitRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
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

	pr, err := h.service.SubmitRequest(r.Context(), id, req.ApproverIDs, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, pr)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req convertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	po, err := h.service.ConvertToOrder(r.Context(), id, req.VendorID, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, po)
}

func (h *Handler) issueRFQs(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req rfqRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	rfqs, err := h.service.IssueRFQs(r.Context(), id, req.VendorIDs, req.Note, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, rfqs)
}

func (h *Handler) listRFQs(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	rfqs, err := h.service.ListRFQs(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, rfqs)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	vendorID, _ := strconv.ParseInt(r.URL.Query().Get("vendor_id"), 10, 64)
	req := OrderListRequest{
		Status:   OrderStatus(r.URL.Query().Get("status")),
		VendorID: vendorID,
		Page:     page,
		PerPage:  perPage,
	}

	orders, total, err := h.service.ListOrders(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Paginated(w, orders, shared.NewPagination(page, perPage, total))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	po, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, po)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req poRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	po := Order{VendorID: req.VendorID, Notes: req.Notes}
	if req.OrderDate != "" {
		po.OrderDate, _ = time.Parse("2006-01-02", req.OrderDate)
	}
	if req.ExpectedAt != "" {
		expected, _ := time.Parse("2006-01-02", req.ExpectedAt)
		po.ExpectedAt = &expected
	}
	for _, l := range req.Lines {
		po.Lines = append(po.Lines, OrderLine{ProductID: l.ProductID, Qty: l.Qty, UnitCost: l.UnitCost})
	}

	created, err := h.service.CreateOrder(r.Context(), po, shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	var req orderTransitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	po, err := h.service.TransitionOrder(r.Context(), id, OrderStatus(req.Status), shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, po)
}
