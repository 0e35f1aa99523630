package delivery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/workdesk-erp/workdesk-erp/internal/catalog"
	"github.com/workdesk-erp/workdesk-erp/internal/jobcode"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Service wraps delivery business rules.
type Service struct {
	repo     Repository
	projects *jobcode.Service
	products *catalog.Service
	audit    shared.AuditRecorder
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, projects *jobcode.Service, products *catalog.Service, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, projects: projects, products: products, audit: audit, now: time.Now}
}

// Record books a delivery or return. Returns may never push the net
// delivered quantity below zero.
func (s *Service) Record(ctx context.Context, rec Record, actorID int64) (*Record, error) {
	if !rec.Direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", shared.ErrValidation, rec.Direction)
	}
	if rec.Qty <= 0 {
		return nil, fmt.Errorf("%w: qty must be positive", shared.ErrValidation)
	}
	if _, err := s.projects.RequireWritable(ctx, rec.ProjectID); err != nil {
		return nil, err
	}
	if _, err := s.products.RequireActive(ctx, rec.ProductID); err != nil {
		return nil, err
	}

	if rec.Direction == DirectionReturned {
		net, err := s.repo.NetDelivered(ctx, rec.ProjectID, rec.ProductID)
		if err != nil {
			return nil, err
		}
		if rec.Qty > net {
			return nil, fmt.Errorf("%w: return of %.2f exceeds net delivered %.2f",
				shared.ErrValidation, rec.Qty, net)
		}
	}

	if rec.DeliveredAt.IsZero() {
		rec.DeliveredAt = s.now()
	}
	rec.CreatedBy = actorID

	id, err := s.repo.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("record delivery: %w", err)
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "delivery." + string(rec.Direction),
		Entity:   "delivery",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"project_id": rec.ProjectID, "product_id": rec.ProductID, "qty": rec.Qty},
	})
	return s.repo.Get(ctx, id)
}

// Get loads one delivery record.
func (s *Service) Get(ctx context.Context, id int64) (*Record, error) {
	return s.repo.Get(ctx, id)
}

// List returns delivery records matching the filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Record, int, error) {
	return s.repo.List(ctx, req)
}

// Balances returns the per-product net delivered quantities for a project.
func (s *Service) Balances(ctx context.Context, projectID int64) ([]Balance, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.Balances(ctx, projectID)
}
