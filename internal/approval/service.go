package approval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Outcome is delivered to the owning module when a chain closes.
type Outcome struct {
	EntityID int64
	Approved bool
	ActorID  int64
	Note     string
}

// OutcomeFunc reacts to a closed approval chain for one entity kind.
type OutcomeFunc func(ctx context.Context, o Outcome) error

// Service runs ordered approval chains. Only the approver assigned to the
// current level may act; approving advances the chain, and any rejection
// closes it immediately without consulting later levels.
type Service struct {
	repo  Repository
	audit shared.AuditRecorder

	mu        sync.RWMutex
	listeners map[string]OutcomeFunc
}

// NewService constructs a Service.
func NewService(repo Repository, audit shared.AuditRecorder) *Service {
	return &Service{
		repo:      repo,
		audit:     audit,
		listeners: map[string]OutcomeFunc{},
	}
}

// Subscribe registers the outcome callback for an entity kind. Each kind has
// exactly one owner module.
func (s *Service) Subscribe(entityKind string, fn OutcomeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[entityKind] = fn
}

// Start opens an approval chain with the given ordered approvers. An entity
// can only carry one open chain at a time.
func (s *Service) Start(ctx context.Context, entityKind string, entityID int64, approverIDs []int64, requestedBy int64) (*Request, error) {
	if len(approverIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one approver required", shared.ErrValidation)
	}
	seen := map[int64]struct{}{}
	for _, id := range approverIDs {
		if id == requestedBy {
			return nil, fmt.Errorf("%w: requester cannot approve their own document", shared.ErrValidation)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate approver %d", shared.ErrValidation, id)
		}
		seen[id] = struct{}{}
	}

	existing, err := s.repo.FindOpen(ctx, entityKind, entityID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("find open approval: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s %d already has an open approval chain",
			shared.ErrConflict, entityKind, entityID)
	}

	req := Request{
		EntityKind:  entityKind,
		EntityID:    entityID,
		RequestedBy: requestedBy,
	}
	for i, approverID := range approverIDs {
		req.Steps = append(req.Steps, Step{Level: i + 1, ApproverID: approverID})
	}

	id, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("start approval: %w", err)
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  requestedBy,
		Action:   "approval.start",
		Entity:   entityKind,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     map[string]any{"request_id": id, "levels": len(approverIDs)},
	})
	return s.repo.Get(ctx, id)
}

// Approve records an approval on the current level.
func (s *Service) Approve(ctx context.Context, requestID, actorID int64, note string) (*Request, error) {
	return s.act(ctx, requestID, actorID, note, StatusApproved)
}

// Reject records a rejection on the current level and closes the chain.
func (s *Service) Reject(ctx context.Context, requestID, actorID int64, note string) (*Request, error) {
	return s.act(ctx, requestID, actorID, note, StatusRejected)
}

func (s *Service) act(ctx context.Context, requestID, actorID int64, note string, decision Status) (*Request, error) {
	req, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, fmt.Errorf("%w: approval request is already %s", shared.ErrInvalidState, req.Status)
	}

	step := req.CurrentStep()
	if step == nil {
		return nil, fmt.Errorf("%w: approval request has no pending step", shared.ErrInvalidState)
	}
	if step.ApproverID != actorID {
		return nil, fmt.Errorf("%w: level %d is assigned to another approver", shared.ErrForbidden, step.Level)
	}

	nextLevel := req.CurrentLevel
	requestStatus := StatusPending
	switch decision {
	case StatusApproved:
		if req.CurrentLevel == len(req.Steps) {
			requestStatus = StatusApproved
		} else {
			nextLevel = req.CurrentLevel + 1
		}
	case StatusRejected:
		requestStatus = StatusRejected
	}

	updated, err := s.repo.Act(ctx, requestID, step.Level, decision, note, nextLevel, requestStatus)
	if err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "approval." + string(decision),
		Entity:   req.EntityKind,
		EntityID: strconv.FormatInt(req.EntityID, 10),
		Meta:     map[string]any{"request_id": requestID, "level": step.Level},
	})

	if requestStatus != StatusPending {
		if err := s.notify(ctx, updated, actorID, note); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

func (s *Service) notify(ctx context.Context, req *Request, actorID int64, note string) error {
	s.mu.RLock()
	fn, ok := s.listeners[req.EntityKind]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return fn(ctx, Outcome{
		EntityID: req.EntityID,
		Approved: req.Status == StatusApproved,
		ActorID:  actorID,
		Note:     note,
	})
}

// Get loads one approval request with its steps.
func (s *Service) Get(ctx context.Context, id int64) (*Request, error) {
	return s.repo.Get(ctx, id)
}

// List returns approval requests matching the filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Request, int, error) {
	return s.repo.List(ctx, req)
}
