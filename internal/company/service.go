package company

import (
	"context"
	"fmt"
	"strconv"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Service wraps company business rules.
type Service struct {
	repo  Repository
	audit shared.AuditRecorder
}

// NewService constructs a Service.
func NewService(repo Repository, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create registers a company with an initial role set.
func (s *Service) Create(ctx context.Context, c Company, actorID int64) (*Company, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("%w: company name required", shared.ErrValidation)
	}
	for _, kind := range c.Roles {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: unknown role kind %q", shared.ErrValidation, kind)
		}
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}
	for _, kind := range c.Roles {
		if err := s.repo.AttachRole(ctx, id, kind); err != nil {
			return nil, fmt.Errorf("attach role: %w", err)
		}
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "company.create",
		Entity:   "company",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"name": c.Name},
	})
	return s.repo.Get(ctx, id)
}

// Update modifies company master data.
func (s *Service) Update(ctx context.Context, c Company, actorID int64) (*Company, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("%w: company name required", shared.ErrValidation)
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "company.update",
		Entity:   "company",
		EntityID: strconv.FormatInt(c.ID, 10),
	})
	return s.repo.Get(ctx, c.ID)
}

// AttachRole grants a business role to the company.
func (s *Service) AttachRole(ctx context.Context, companyID int64, kind RoleKind, actorID int64) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown role kind %q", shared.ErrValidation, kind)
	}
	if _, err := s.repo.Get(ctx, companyID); err != nil {
		return err
	}
	if err := s.repo.AttachRole(ctx, companyID, kind); err != nil {
		return err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "company.role.attach",
		Entity:   "company",
		EntityID: strconv.FormatInt(companyID, 10),
		Meta:     map[string]any{"role": string(kind)},
	})
	return nil
}

// DetachRole removes a business role. Roles referenced by open documents
// cannot be removed.
func (s *Service) DetachRole(ctx context.Context, companyID int64, kind RoleKind, actorID int64) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown role kind %q", shared.ErrValidation, kind)
	}
	inUse, err := s.repo.RoleInUse(ctx, companyID, kind)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("%w: role %s is referenced by open documents", shared.ErrConflict, kind)
	}
	if err := s.repo.DetachRole(ctx, companyID, kind); err != nil {
		return err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "company.role.detach",
		Entity:   "company",
		EntityID: strconv.FormatInt(companyID, 10),
		Meta:     map[string]any{"role": string(kind)},
	})
	return nil
}

// Get loads one company.
func (s *Service) Get(ctx context.Context, id int64) (*Company, error) {
	return s.repo.Get(ctx, id)
}

// List returns companies matching the filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Company, int, error) {
	return s.repo.List(ctx, req)
}

// RequireRole verifies a company holds the role, for cross-module checks.
func (s *Service) RequireRole(ctx context.Context, companyID int64, kind RoleKind) (*Company, error) {
	c, err := s.repo.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !c.HasRole(kind) {
		return nil, fmt.Errorf("%w: company %d lacks role %s", shared.ErrValidation, companyID, kind)
	}
	return c, nil
}
