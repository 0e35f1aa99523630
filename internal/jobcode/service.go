package jobcode

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/workdesk-erp/workdesk-erp/internal/company"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Service wraps project business rules.
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

// Register creates a project and allocates its job code. The customer must
// hold the CUSTOMER role.
func (s *Service) Register(ctx context.Context, p Project, actorID int64) (*Project, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: project name required", shared.ErrValidation)
	}
	if _, err := s.companies.RequireRole(ctx, p.CustomerID, company.RoleCustomer); err != nil {
		return nil, err
	}

	registeredAt := s.now()
	if p.StartDate.IsZero() {
		p.StartDate = registeredAt
	}
	p.CreatedBy = actorID

	created, err := s.repo.CreateWithCode(ctx, p, registeredAt)
	if err != nil {
		return nil, fmt.Errorf("register project: %w", err)
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "project.register",
		Entity:   "project",
		EntityID: strconv.FormatInt(created.ID, 10),
		Meta:     map[string]any{"code": created.Code},
	})
	return created, nil
}

// Update modifies mutable project fields. Terminal projects are read-only.
func (s *Service) Update(ctx context.Context, p Project, actorID int64) (*Project, error) {
	existing, err := s.repo.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if existing.Status == StatusCompleted || existing.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: project %s is %s", shared.ErrInvalidState, existing.Code, existing.Status)
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "project.update",
		Entity:   "project",
		EntityID: strconv.FormatInt(p.ID, 10),
	})
	return s.repo.Get(ctx, p.ID)
}

// Transition moves a project along its status machine.
func (s *Service) Transition(ctx context.Context, id int64, next Status, actorID int64) (*Project, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: cannot move project %s from %s to %s",
			shared.ErrInvalidState, existing.Code, existing.Status, next)
	}
	if err := s.repo.SetStatus(ctx, id, next); err != nil {
		return nil, err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "project.transition",
		Entity:   "project",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"from": string(existing.Status), "to": string(next)},
	})
	return s.repo.Get(ctx, id)
}

// Get loads one project.
func (s *Service) Get(ctx context.Context, id int64) (*Project, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode looks a project up by its job code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Project, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns projects matching the filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Project, int, error) {
	return s.repo.List(ctx, req)
}

// Summary returns the quoted/invoiced/paid rollup for one project.
func (s *Service) Summary(ctx context.Context, id int64) (*Summary, error) {
	return s.repo.Summary(ctx, id)
}

// RequireWritable loads a project and rejects terminal ones. Document
// creation across modules funnels through this check.
func (s *Service) RequireWritable(ctx context.Context, id int64) (*Project, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusCompleted || p.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: project %s is %s", shared.ErrInvalidState, p.Code, p.Status)
	}
	return p, nil
}
