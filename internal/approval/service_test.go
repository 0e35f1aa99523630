package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

type auditStub struct {
	entries []shared.AuditLog
}

func (a *auditStub) Record(ctx context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

type mockRepository struct {
	requests map[int64]*Request
	nextID   int64

	createErr   error
	findOpenErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{requests: map[int64]*Request{}, nextID: 1}
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *req
	clone.Steps = append([]Step(nil), req.Steps...)
	return &clone, nil
}

func (m *mockRepository) FindOpen(ctx context.Context, entityKind string, entityID int64) (*Request, error) {
	if m.findOpenErr != nil {
		return nil, m.findOpenErr
	}
	for _, req := range m.requests {
		if req.EntityKind == entityKind && req.EntityID == entityID && req.Status == StatusPending {
			return req, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) List(ctx context.Context, req ListRequest) ([]Request, int, error) {
	var out []Request
	for _, r := range m.requests {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(ctx context.Context, r Request) (int64, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	id := m.nextID
	m.nextID++
	r.ID = id
	r.Status = StatusPending
	r.CurrentLevel = 1
	for i := range r.Steps {
		r.Steps[i].RequestID = id
		r.Steps[i].Status = StatusPending
	}
	m.requests[id] = &r
	return id, nil
}

func (m *mockRepository) Act(ctx context.Context, requestID int64, level int, decision Status, note string, nextLevel int, requestStatus Status) (*Request, error) {
	req, ok := m.requests[requestID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	now := time.Now()
	for i := range req.Steps {
		if req.Steps[i].Level == level {
			if req.Steps[i].Status != StatusPending {
				return nil, shared.ErrConflict
			}
			req.Steps[i].Status = decision
			req.Steps[i].Note = note
			req.Steps[i].ActedAt = &now
		}
	}
	req.CurrentLevel = nextLevel
	req.Status = requestStatus
	return m.Get(ctx, requestID)
}

func newTestService() (*Service, *mockRepository, *auditStub) {
	repo := newMockRepository()
	audit := &auditStub{}
	return NewService(repo, audit), repo, audit
}

func TestStartValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Start(ctx, EntityQuotation, 1, nil, 10)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Start(ctx, EntityQuotation, 1, []int64{10}, 10)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Start(ctx, EntityQuotation, 1, []int64{20, 20}, 10)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestStartRejectsSecondOpenChain(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Start(ctx, EntityQuotation, 7, []int64{20}, 10)
	require.NoError(t, err)

	_, err = svc.Start(ctx, EntityQuotation, 7, []int64{30}, 10)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestStartPropagatesFindOpenFailure(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	// a repository failure is not proof there is no open chain.
	repo.findOpenErr = errors.New("connection reset")
	_, err := svc.Start(ctx, EntityQuotation, 7, []int64{20}, 10)
	require.ErrorContains(t, err, "connection reset")
	require.Empty(t, repo.requests)
}

func TestApproveAdvancesThroughLevels(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	req, err := svc.Start(ctx, EntityQuotation, 7, []int64{20, 30}, 10)
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, 1, req.CurrentLevel)

	req, err = svc.Approve(ctx, req.ID, 20, "looks fine")
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, 2, req.CurrentLevel)

	req, err = svc.Approve(ctx, req.ID, 30, "")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, req.Status)
}

func TestApproveRejectsWrongActor(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	req, err := svc.Start(ctx, EntityQuotation, 7, []int64{20, 30}, 10)
	require.NoError(t, err)

	// level 2 approver cannot act before level 1.
	_, err = svc.Approve(ctx, req.ID, 30, "")
	require.ErrorIs(t, err, shared.ErrForbidden)

	// unrelated user cannot act at all.
	_, err = svc.Approve(ctx, req.ID, 99, "")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestRejectClosesImmediately(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	req, err := svc.Start(ctx, EntityQuotation, 7, []int64{20, 30, 40}, 10)
	require.NoError(t, err)

	req, err = svc.Reject(ctx, req.ID, 20, "missing discount approval")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, req.Status)

	// closed chains take no further decisions.
	_, err = svc.Approve(ctx, req.ID, 30, "")
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestOutcomeNotifiesSubscriber(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	var got *Outcome
	svc.Subscribe(EntityQuotation, func(ctx context.Context, o Outcome) error {
		got = &o
		return nil
	})

	req, err := svc.Start(ctx, EntityQuotation, 7, []int64{20}, 10)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, req.ID, 20, "ok")
	require.NoError(t, err)

	require.NotNil(t, got)
	require.Equal(t, int64(7), got.EntityID)
	require.True(t, got.Approved)
	require.Equal(t, int64(20), got.ActorID)
	require.Equal(t, "ok", got.Note)
}

func TestOutcomeOnRejection(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	var got *Outcome
	svc.Subscribe(EntityPurchaseRequest, func(ctx context.Context, o Outcome) error {
		got = &o
		return nil
	})

	req, err := svc.Start(ctx, EntityPurchaseRequest, 3, []int64{20, 30}, 10)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, req.ID, 20, "over budget")
	require.NoError(t, err)

	require.NotNil(t, got)
	require.False(t, got.Approved)
	require.Equal(t, "over budget", got.Note)
}

func TestCurrentStep(t *testing.T) {
	req := &Request{
		Status:       StatusPending,
		CurrentLevel: 2,
		Steps: []Step{
			{Level: 1, ApproverID: 20, Status: StatusApproved},
			{Level: 2, ApproverID: 30, Status: StatusPending},
		},
	}
	step := req.CurrentStep()
	require.NotNil(t, step)
	require.Equal(t, int64(30), step.ApproverID)

	req.Status = StatusApproved
	require.Nil(t, req.CurrentStep())
}
