package ap

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/workdesk-erp/workdesk-erp/internal/ar"
	"github.com/workdesk-erp/workdesk-erp/internal/company"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Service wraps payable business rules.
type Service struct {
	repo      Repository
	companies *company.Service
	audit     shared.AuditRecorder
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, companies *company.Service, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, companies: companies, audit: audit, now: time.Now}
}

// RegisterBill records a vendor's invoice as an open payable. The company
// must hold the VENDOR role.
func (s *Service) RegisterBill(ctx context.Context, b Bill, actorID int64) (*Bill, error) {
	if b.BillNo == "" {
		return nil, fmt.Errorf("%w: bill number required", shared.ErrValidation)
	}
	if b.Amount <= 0 {
		return nil, fmt.Errorf("%w: bill amount must be positive", shared.ErrValidation)
	}
	if _, err := s.companies.RequireRole(ctx, b.VendorID, company.RoleVendor); err != nil {
		return nil, err
	}
	if b.IssueDate.IsZero() {
		b.IssueDate = s.now()
	}
	if b.DueDate.IsZero() {
		b.DueDate = b.IssueDate.AddDate(0, 0, 30)
	}
	b.CreatedBy = actorID

	id, err := s.repo.Create(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("register bill: %w", err)
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "bill.register",
		Entity:   "vendor_bill",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"bill_no": b.BillNo, "amount": b.Amount},
	})
	return s.repo.Get(ctx, id)
}

// CancelBill voids an open, unpaid bill.
func (s *Service) CancelBill(ctx context.Context, id int64, actorID int64) (*Bill, error) {
	if err := s.repo.Cancel(ctx, id); err != nil {
		return nil, err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "bill.cancel",
		Entity:   "vendor_bill",
		EntityID: strconv.FormatInt(id, 10),
	})
	return s.repo.Get(ctx, id)
}

// RecordPayment books an outgoing payment. Full coverage flips the bill to
// PAID.
func (s *Service) RecordPayment(ctx context.Context, p Payment, actorID int64) (*Bill, error) {
	if p.PaidAt.IsZero() {
		p.PaidAt = s.now()
	}
	p.CreatedBy = actorID

	updated, err := s.repo.AddPayment(ctx, p)
	if err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "bill.payment",
		Entity:   "vendor_bill",
		EntityID: strconv.FormatInt(p.BillID, 10),
		Meta:     map[string]any{"amount": p.Amount},
	})
	return updated, nil
}

// AgingReport buckets outstanding bills per vendor as of the given date.
func (s *Service) AgingReport(ctx context.Context, asOf time.Time) ([]VendorAging, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	bills, err := s.repo.OpenBills(ctx, 0, asOf)
	if err != nil {
		return nil, fmt.Errorf("ap aging: %w", err)
	}

	byVendor := map[int64]*VendorAging{}
	var order []int64
	for _, b := range bills {
		a, ok := byVendor[b.VendorID]
		if !ok {
			a = &VendorAging{VendorID: b.VendorID, VendorName: b.VendorName}
			byVendor[b.VendorID] = a
			order = append(order, b.VendorID)
		}
		a.Add(ar.BucketFor(asOf, b.DueDate), b.Outstanding())
	}

	report := make([]VendorAging, 0, len(order))
	for _, id := range order {
		report = append(report, *byVendor[id])
	}
	return report, nil
}

// Get loads one bill.
func (s *Service) Get(ctx context.Context, id int64) (*Bill, error) {
	return s.repo.Get(ctx, id)
}

// Payments lists payments booked against a bill.
func (s *Service) Payments(ctx context.Context, billID int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, billID); err != nil {
		return nil, err
	}
	return s.repo.Payments(ctx, billID)
}

// List returns bills matching the filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Bill, int, error) {
	return s.repo.List(ctx, req)
}
