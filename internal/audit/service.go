package audit

import (
	"context"
	"time"
)

// Service exposes the audit trail for reading and retention pruning.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns audit entries matching the filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Entry, int, error) {
	return s.repo.List(ctx, req)
}

// Prune deletes entries older than the retention window and returns the
// number removed.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, s.now().Add(-retention))
}
