package invoice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/workdesk-erp/workdesk-erp/internal/catalog"
	"github.com/workdesk-erp/workdesk-erp/internal/jobcode"
	"github.com/workdesk-erp/workdesk-erp/internal/observability"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// MailEnqueuer queues the outbound invoice email. Nil disables sending.
type MailEnqueuer interface {
	EnqueueInvoiceIssued(ctx context.Context, invoiceID int64) error
}

// Service wraps invoicing business rules.
type Service struct {
	repo        Repository
	projects    *jobcode.Service
	products    *catalog.Service
	metrics     *observability.Metrics
	idempotency *shared.IdempotencyStore
	mail        MailEnqueuer
	audit       shared.AuditRecorder
	now         func() time.Time
}

// NewService constructs a Service. Metrics, the idempotency store and the
// mail enqueuer may be nil.
func NewService(repo Repository, projects *jobcode.Service, products *catalog.Service,
	metrics *observability.Metrics, idem *shared.IdempotencyStore, mail MailEnqueuer,
	audit shared.AuditRecorder) *Service {
	return &Service{
		repo:        repo,
		projects:    projects,
		products:    products,
		metrics:     metrics,
		idempotency: idem,
		mail:        mail,
		audit:       audit,
		now:         time.Now,
	}
}

// IssueWithKey creates a tax invoice guarded by a client-supplied
// idempotency key, so a retried submission does not issue twice. An empty key
// behaves like Issue.
func (s *Service) IssueWithKey(ctx context.Context, inv Invoice, key string, actorID int64) (*Invoice, error) {
	if key == "" || s.idempotency == nil {
		return s.Issue(ctx, inv, actorID)
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, "invoice.issue"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return nil, fmt.Errorf("%w: %v", shared.ErrConflict, err)
		}
		return nil, err
	}
	created, err := s.Issue(ctx, inv, actorID)
	if err != nil {
		_ = s.idempotency.Delete(ctx, key)
		return nil, err
	}
	return created, nil
}

// Issue creates a tax invoice. Quantities are validated against the
// project's net delivered balance under a project lock, so concurrent issuers
// cannot jointly exceed what was delivered.
func (s *Service) Issue(ctx context.Context, inv Invoice, actorID int64) (*Invoice, error) {
	project, err := s.projects.RequireWritable(ctx, inv.ProjectID)
	if err != nil {
		return nil, err
	}
	if len(inv.Lines) == 0 {
		return nil, fmt.Errorf("%w: invoice needs at least one line", shared.ErrValidation)
	}
	seen := map[int64]struct{}{}
	for _, l := range inv.Lines {
		if l.Qty <= 0 {
			return nil, fmt.Errorf("%w: line qty must be positive", shared.ErrValidation)
		}
		if l.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
		}
		if _, dup := seen[l.ProductID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %d", shared.ErrValidation, l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
		if _, err := s.products.Get(ctx, l.ProductID); err != nil {
			return nil, err
		}
	}

	issuedAt := s.now()
	inv.CustomerID = project.CustomerID
	if inv.IssueDate.IsZero() {
		inv.IssueDate = issuedAt
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.IssueDate.AddDate(0, 0, 30)
	}
	inv.CreatedBy = actorID
	inv.Recalculate()

	created, err := s.repo.IssueGuarded(ctx, inv, issuedAt)
	if err != nil {
		if errors.Is(err, ErrOverInvoiced) {
			if s.metrics != nil {
				s.metrics.CountInvoiceGuardRejection()
			}
			return nil, fmt.Errorf("%w: %v", shared.ErrConflict, err)
		}
		return nil, fmt.Errorf("issue invoice: %w", err)
	}

	// the invoice exists at this point; mail is queued best-effort.
	if s.mail != nil {
		_ = s.mail.EnqueueInvoiceIssued(ctx, created.ID)
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "invoice.issue",
		Entity:   "invoice",
		EntityID: strconv.FormatInt(created.ID, 10),
		Meta:     map[string]any{"number": created.Number, "total": created.Total},
	})
	return created, nil
}

// Cancel voids an issued invoice, freeing its quantities for re-invoicing.
func (s *Service) Cancel(ctx context.Context, id int64, actorID int64) (*Invoice, error) {
	if err := s.repo.Cancel(ctx, id); err != nil {
		return nil, err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "invoice.cancel",
		Entity:   "invoice",
		EntityID: strconv.FormatInt(id, 10),
	})
	return s.repo.Get(ctx, id)
}

// RecordPayment books a payment. Full coverage flips the invoice to PAID.
func (s *Service) RecordPayment(ctx context.Context, p Payment, actorID int64) (*Invoice, error) {
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
		Action:   "invoice.payment",
		Entity:   "invoice",
		EntityID: strconv.FormatInt(p.InvoiceID, 10),
		Meta:     map[string]any{"amount": p.Amount},
	})
	return updated, nil
}

// Get loads one invoice.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

// Payments lists the payments booked against an invoice.
func (s *Service) Payments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.Payments(ctx, invoiceID)
}

// List returns invoices matching the filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Invoice, int, error) {
	return s.repo.List(ctx, req)
}
