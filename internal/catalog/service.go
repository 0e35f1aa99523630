package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Service wraps product business rules.
type Service struct {
	repo  Repository
	audit shared.AuditRecorder
}

// NewService constructs a Service.
func NewService(repo Repository, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create registers a catalog item. SKUs are unique; duplicates surface as a
// conflict from the unique index.
func (s *Service) Create(ctx context.Context, p Product, actorID int64) (*Product, error) {
	if p.UnitPrice < 0 {
		return nil, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}
	id, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "product.create",
		Entity:   "product",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"sku": p.SKU},
	})
	return s.repo.Get(ctx, id)
}

// Update modifies a catalog item.
func (s *Service) Update(ctx context.Context, p Product, actorID int64) (*Product, error) {
	if p.UnitPrice < 0 {
		return nil, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "product.update",
		Entity:   "product",
		EntityID: strconv.FormatInt(p.ID, 10),
	})
	return s.repo.Get(ctx, p.ID)
}

// Deactivate soft-deletes a product; historical documents keep referencing it.
func (s *Service) Deactivate(ctx context.Context, id int64, actorID int64) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "product.deactivate",
		Entity:   "product",
		EntityID: strconv.FormatInt(id, 10),
	})
	return nil
}

// Get loads one product.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.Get(ctx, id)
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Product, int, error) {
	return s.repo.List(ctx, req)
}

// RequireActive loads a product and rejects inactive ones; document lines
// must reference active items at creation time.
func (s *Service) RequireActive(ctx context.Context, id int64) (*Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: product %s is inactive", shared.ErrValidation, p.SKU)
	}
	return p, nil
}
