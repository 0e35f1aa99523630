package purchase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/workdesk-erp/workdesk-erp/internal/approval"
	"github.com/workdesk-erp/workdesk-erp/internal/catalog"
	"github.com/workdesk-erp/workdesk-erp/internal/company"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Service wraps purchasing business rules.
type Service struct {
	repo      Repository
	companies *company.Service
	products  *catalog.Service
	approvals *approval.Service
	audit     shared.AuditRecorder
	now       func() time.Time
}

// NewService constructs a Service and hooks the approval outcome callback.
func NewService(repo Repository, companies *company.Service, products *catalog.Service,
	approvals *approval.Service, audit shared.AuditRecorder) *Service {
	s := &Service{
		repo:      repo,
		companies: companies,
		products:  products,
		approvals: approvals,
		audit:     audit,
		now:       time.Now,
	}
	approvals.Subscribe(approval.EntityPurchaseRequest, s.onApprovalOutcome)
	return s
}

func (s *Service) validateRequestLines(ctx context.Context, lines []RequestLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: purchase request needs at least one line", shared.ErrValidation)
	}
	for _, l := range lines {
		if l.Qty <= 0 {
			return fmt.Errorf("%w: line qty must be positive", shared.ErrValidation)
		}
		if l.EstUnitCost < 0 {
			return fmt.Errorf("%w: estimated cost must not be negative", shared.ErrValidation)
		}
		if _, err := s.products.RequireActive(ctx, l.ProductID); err != nil {
			return err
		}
	}
	return nil
}

// CreateRequest opens a draft purchase request.
func (s *Service) CreateRequest(ctx context.Context, pr Request, actorID int64) (*Request, error) {
	if err := s.validateRequestLines(ctx, pr.Lines); err != nil {
		return nil, err
	}
	pr.RequesterID = actorID

	created, err := s.repo.CreateRequest(ctx, pr, s.now())
	if err != nil {
		return nil, fmt.Errorf("create purchase request: %w", err)
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "purchase_request.create",
		Entity:   "purchase_request",
		EntityID: strconv.FormatInt(created.ID, 10),
		Meta:     map[string]any{"number": created.Number},
	})
	return created, nil
}

// UpdateRequest rewrites the lines of a DRAFT request.
func (s *Service) UpdateRequest(ctx context.Context, pr Request, actorID int64) (*Request, error) {
	existing, err := s.repo.GetRequest(ctx, pr.ID)
	if err != nil {
		return nil, err
	}
	if existing.Status != RequestDraft {
		return nil, fmt.Errorf("%w: purchase request %s is %s, only drafts are editable",
			shared.ErrInvalidState, existing.Number, existing.Status)
	}
	if err := s.validateRequestLines(ctx, pr.Lines); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceRequestLines(ctx, pr); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "purchase_request.update",
		Entity:   "purchase_request",
		EntityID: strconv.FormatInt(pr.ID, 10),
	})
	return s.repo.GetRequest(ctx, pr.ID)
}

// SubmitRequest moves a draft to SUBMITTED and opens its approval chain.
func (s *Service) SubmitRequest(ctx context.Context, id int64, approverIDs []int64, actorID int64) (*Request, error) {
	pr, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if pr.Status != RequestDraft {
		return nil, fmt.Errorf("%w: purchase request %s is %s", shared.ErrInvalidState, pr.Number, pr.Status)
	}

	// status first: a failed chain start reverts to DRAFT, so an open chain
	// never points at a draft.
	if err := s.repo.SetRequestStatus(ctx, id, RequestSubmitted); err != nil {
		return nil, err
	}
	if _, err := s.approvals.Start(ctx, approval.EntityPurchaseRequest, id, approverIDs, actorID); err != nil {
		_ = s.repo.SetRequestStatus(ctx, id, RequestDraft)
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "purchase_request.submit",
		Entity:   "purchase_request",
		EntityID: strconv.FormatInt(id, 10),
	})
	return s.repo.GetRequest(ctx, id)
}

func (s *Service) onApprovalOutcome(ctx context.Context, o approval.Outcome) error {
	pr, err := s.repo.GetRequest(ctx, o.EntityID)
	if err != nil {
		return err
	}
	if pr.Status != RequestSubmitted {
		return fmt.Errorf("%w: purchase request %s is %s", shared.ErrInvalidState, pr.Number, pr.Status)
	}

	next := RequestRejected
	if o.Approved {
		next = RequestApproved
	}
	if err := s.repo.SetRequestStatus(ctx, o.EntityID, next); err != nil {
		return err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  o.ActorID,
		Action:   "purchase_request." + string(next),
		Entity:   "purchase_request",
		EntityID: strconv.FormatInt(o.EntityID, 10),
	})
	return nil
}

// IssueRFQs sends a request for quotation to each listed vendor. The request
// must already be routed for approval; drafts keep their lines editable and
// must not be quoted yet.
func (s *Service) IssueRFQs(ctx context.Context, requestID int64, vendorIDs []int64, note string, actorID int64) ([]RFQ, error) {
	pr, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if pr.Status != RequestSubmitted && pr.Status != RequestApproved {
		return nil, fmt.Errorf("%w: purchase request %s is %s, quotes are gathered after submission",
			shared.ErrInvalidState, pr.Number, pr.Status)
	}

	if len(vendorIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one vendor is required", shared.ErrValidation)
	}
	seen := make(map[int64]bool, len(vendorIDs))
	for _, vendorID := range vendorIDs {
		if seen[vendorID] {
			return nil, fmt.Errorf("%w: duplicate vendor %d", shared.ErrValidation, vendorID)
		}
		seen[vendorID] = true
		if _, err := s.companies.RequireRole(ctx, vendorID, company.RoleVendor); err != nil {
			return nil, err
		}
	}

	created, err := s.repo.CreateRFQs(ctx, requestID, vendorIDs, note, s.now())
	if err != nil {
		return nil, fmt.Errorf("issue rfqs: %w", err)
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "purchase_rfq.issue",
		Entity:   "purchase_request",
		EntityID: strconv.FormatInt(requestID, 10),
		Meta:     map[string]any{"vendors": len(created), "request": pr.Number},
	})
	return created, nil
}

// ListRFQs returns the RFQs issued for a purchase request.
func (s *Service) ListRFQs(ctx context.Context, requestID int64) ([]RFQ, error) {
	if _, err := s.repo.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.repo.ListRFQs(ctx, requestID)
}

// ConvertToOrder turns an APPROVED request into a draft purchase order with
// the chosen vendor and closes the request.
func (s *Service) ConvertToOrder(ctx context.Context, requestID, vendorID int64, actorID int64) (*Order, error) {
	pr, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if pr.Status != RequestApproved {
		return nil, fmt.Errorf("%w: purchase request %s is %s, only approved requests convert",
			shared.ErrInvalidState, pr.Number, pr.Status)
	}
	if _, err := s.companies.RequireRole(ctx, vendorID, company.RoleVendor); err != nil {
		return nil, err
	}

	po := Order{
		RequestID: &pr.ID,
		VendorID:  vendorID,
		OrderDate: s.now(),
		Notes:     pr.Notes,
		CreatedBy: actorID,
	}
	for _, l := range pr.Lines {
		po.Lines = append(po.Lines, OrderLine{ProductID: l.ProductID, Qty: l.Qty, UnitCost: l.EstUnitCost})
	}
	po.Recalculate()

	created, err := s.repo.CreateOrder(ctx, po, s.now())
	if err != nil {
		return nil, fmt.Errorf("convert to order: %w", err)
	}
	if err := s.repo.SetRequestStatus(ctx, requestID, RequestClosed); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "purchase_order.create",
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(created.ID, 10),
		Meta:     map[string]any{"number": created.Number, "request": pr.Number},
	})
	return created, nil
}

// CreateOrder places a direct purchase order without a preceding request.
func (s *Service) CreateOrder(ctx context.Context, po Order, actorID int64) (*Order, error) {
	if len(po.Lines) == 0 {
		return nil, fmt.Errorf("%w: purchase order needs at least one line", shared.ErrValidation)
	}
	for _, l := range po.Lines {
		if l.Qty <= 0 {
			return nil, fmt.Errorf("%w: line qty must be positive", shared.ErrValidation)
		}
		if l.UnitCost < 0 {
			return nil, fmt.Errorf("%w: unit cost must not be negative", shared.ErrValidation)
		}
		if _, err := s.products.RequireActive(ctx, l.ProductID); err != nil {
			return nil, err
		}
	}
	if _, err := s.companies.RequireRole(ctx, po.VendorID, company.RoleVendor); err != nil {
		return nil, err
	}

	if po.OrderDate.IsZero() {
		po.OrderDate = s.now()
	}
	po.CreatedBy = actorID
	po.Recalculate()

	created, err := s.repo.CreateOrder(ctx, po, s.now())
	if err != nil {
		return nil, fmt.Errorf("create purchase order: %w", err)
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "purchase_order.create",
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(created.ID, 10),
		Meta:     map[string]any{"number": created.Number},
	})
	return created, nil
}

// TransitionOrder moves a purchase order along its status machine.
func (s *Service) TransitionOrder(ctx context.Context, id int64, next OrderStatus, actorID int64) (*Order, error) {
	po, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !po.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: cannot move purchase order %s from %s to %s",
			shared.ErrInvalidState, po.Number, po.Status, next)
	}
	if err := s.repo.SetOrderStatus(ctx, id, next); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "purchase_order.transition",
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"from": string(po.Status), "to": string(next)},
	})
	return s.repo.GetOrder(ctx, id)
}

// GetRequest loads one purchase request.
func (s *Service) GetRequest(ctx context.Context, id int64) (*Request, error) {
	return s.repo.GetRequest(ctx, id)
}

// ListRequests returns purchase requests matching the filter.
func (s *Service) ListRequests(ctx context.Context, req RequestListRequest) ([]Request, int, error) {
	return s.repo.ListRequests(ctx, req)
}

// GetOrder loads one purchase order.
func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns purchase orders matching the filter.
func (s *Service) ListOrders(ctx context.Context, req OrderListRequest) ([]Order, int, error) {
	return s.repo.ListOrders(ctx, req)
}
