package quotation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/workdesk-erp/workdesk-erp/internal/approval"
	"github.com/workdesk-erp/workdesk-erp/internal/catalog"
	"github.com/workdesk-erp/workdesk-erp/internal/jobcode"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// MailEnqueuer queues the outbound quotation email. Nil disables sending.
type MailEnqueuer interface {
	EnqueueQuotationSend(ctx context.Context, quotationID int64) error
}

// Service wraps quotation business rules.
type Service struct {
	repo      Repository
	projects  *jobcode.Service
	products  *catalog.Service
	approvals *approval.Service
	mail      MailEnqueuer
	audit     shared.AuditRecorder
	now       func() time.Time
}

// NewService constructs a Service and hooks the approval outcome callback.
func NewService(repo Repository, projects *jobcode.Service, products *catalog.Service,
	approvals *approval.Service, mail MailEnqueuer, audit shared.AuditRecorder) *Service {
	s := &Service{
		repo:      repo,
		projects:  projects,
		products:  products,
		approvals: approvals,
		mail:      mail,
		audit:     audit,
		now:       time.Now,
	}
	approvals.Subscribe(approval.EntityQuotation, s.onApprovalOutcome)
	return s
}

func (s *Service) validateLines(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: quotation needs at least one line", shared.ErrValidation)
	}
	for _, l := range lines {
		if l.Qty <= 0 {
			return fmt.Errorf("%w: line qty must be positive", shared.ErrValidation)
		}
		if l.UnitPrice < 0 {
			return fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
		}
		if l.DiscountPct < 0 || l.DiscountPct > 100 {
			return fmt.Errorf("%w: discount must be between 0 and 100", shared.ErrValidation)
		}
		if _, err := s.products.RequireActive(ctx, l.ProductID); err != nil {
			return err
		}
	}
	return nil
}

// CreateDraft opens a new quotation version against a project.
func (s *Service) CreateDraft(ctx context.Context, q Quotation, actorID int64) (*Quotation, error) {
	project, err := s.projects.RequireWritable(ctx, q.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := s.validateLines(ctx, q.Lines); err != nil {
		return nil, err
	}

	version, err := s.repo.NextVersion(ctx, q.ProjectID)
	if err != nil {
		return nil, err
	}

	q.CustomerID = project.CustomerID
	q.Version = version
	q.CreatedBy = actorID
	q.Recalculate()

	created, err := s.repo.CreateWithNumber(ctx, q, s.now())
	if err != nil {
		return nil, fmt.Errorf("create quotation: %w", err)
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "quotation.create",
		Entity:   "quotation",
		EntityID: strconv.FormatInt(created.ID, 10),
		Meta:     map[string]any{"number": created.Number, "version": created.Version},
	})
	return created, nil
}

// UpdateDraft rewrites the lines of a DRAFT quotation.
func (s *Service) UpdateDraft(ctx context.Context, q Quotation, actorID int64) (*Quotation, error) {
	existing, err := s.repo.Get(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusDraft {
		return nil, fmt.Errorf("%w: quotation %s is %s, only drafts are editable",
			shared.ErrInvalidState, existing.Number, existing.Status)
	}
	if err := s.validateLines(ctx, q.Lines); err != nil {
		return nil, err
	}

	q.Recalculate()
	if err := s.repo.ReplaceLines(ctx, q); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "quotation.update",
		Entity:   "quotation",
		EntityID: strconv.FormatInt(q.ID, 10),
	})
	return s.repo.Get(ctx, q.ID)
}

// Submit moves a draft to PENDING and opens its approval chain.
func (s *Service) Submit(ctx context.Context, id int64, approverIDs []int64, actorID int64) (*Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.CanTransition(StatusPending) {
		return nil, fmt.Errorf("%w: quotation %s is %s", shared.ErrInvalidState, q.Number, q.Status)
	}

	// status first: a failed chain start reverts to DRAFT, so an open chain
	// never points at a draft.
	if err := s.repo.SetStatus(ctx, id, StatusPending); err != nil {
		return nil, err
	}
	if _, err := s.approvals.Start(ctx, approval.EntityQuotation, id, approverIDs, actorID); err != nil {
		_ = s.repo.SetStatus(ctx, id, StatusDraft)
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "quotation.submit",
		Entity:   "quotation",
		EntityID: strconv.FormatInt(id, 10),
	})
	return s.repo.Get(ctx, id)
}

// onApprovalOutcome closes the loop when the quotation's approval chain ends.
func (s *Service) onApprovalOutcome(ctx context.Context, o approval.Outcome) error {
	q, err := s.repo.Get(ctx, o.EntityID)
	if err != nil {
		return err
	}
	if q.Status != StatusPending {
		return fmt.Errorf("%w: quotation %s is %s", shared.ErrInvalidState, q.Number, q.Status)
	}

	next := StatusRejected
	if o.Approved {
		next = StatusApproved
	}
	if err := s.repo.SetStatus(ctx, o.EntityID, next); err != nil {
		return err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  o.ActorID,
		Action:   "quotation." + string(next),
		Entity:   "quotation",
		EntityID: strconv.FormatInt(o.EntityID, 10),
	})
	return nil
}

// Send marks an approved quotation as SENT and queues the customer email.
func (s *Service) Send(ctx context.Context, id int64, actorID int64) (*Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.CanTransition(StatusSent) {
		return nil, fmt.Errorf("%w: quotation %s is %s", shared.ErrInvalidState, q.Number, q.Status)
	}

	if s.mail != nil {
		if err := s.mail.EnqueueQuotationSend(ctx, id); err != nil {
			return nil, fmt.Errorf("enqueue quotation mail: %w", err)
		}
	}
	if err := s.repo.SetStatus(ctx, id, StatusSent); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "quotation.send",
		Entity:   "quotation",
		EntityID: strconv.FormatInt(id, 10),
	})
	return s.repo.Get(ctx, id)
}

// Accept records the customer's acceptance of a sent quotation.
func (s *Service) Accept(ctx context.Context, id int64, actorID int64) (*Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.CanTransition(StatusAccepted) {
		return nil, fmt.Errorf("%w: quotation %s is %s", shared.ErrInvalidState, q.Number, q.Status)
	}
	if err := s.repo.SetStatus(ctx, id, StatusAccepted); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "quotation.accept",
		Entity:   "quotation",
		EntityID: strconv.FormatInt(id, 10),
	})
	return s.repo.Get(ctx, id)
}

// Revise clones a rejected or superseded quotation into a fresh draft with
// the next version number.
func (s *Service) Revise(ctx context.Context, id int64, actorID int64) (*Quotation, error) {
	src, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if src.Status == StatusDraft || src.Status == StatusPending {
		return nil, fmt.Errorf("%w: quotation %s is still %s", shared.ErrInvalidState, src.Number, src.Status)
	}

	draft := Quotation{
		ProjectID:  src.ProjectID,
		ValidUntil: src.ValidUntil,
		Notes:      src.Notes,
		TaxRate:    src.TaxRate,
	}
	for _, l := range src.Lines {
		draft.Lines = append(draft.Lines, Line{
			ProductID:   l.ProductID,
			Description: l.Description,
			Qty:         l.Qty,
			UnitPrice:   l.UnitPrice,
			DiscountPct: l.DiscountPct,
		})
	}
	return s.CreateDraft(ctx, draft, actorID)
}

// Get loads one quotation.
func (s *Service) Get(ctx context.Context, id int64) (*Quotation, error) {
	return s.repo.Get(ctx, id)
}

// List returns quotations matching the filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Quotation, int, error) {
	return s.repo.List(ctx, req)
}
