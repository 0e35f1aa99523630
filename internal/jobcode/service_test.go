package jobcode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workdesk-erp/workdesk-erp/internal/company"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

type auditStub struct{}

func (auditStub) Record(ctx context.Context, log shared.AuditLog) error { return nil }

type mockRepository struct {
	projects map[int64]*Project
	nextID   int64
	counters map[int]int
}

func newMockRepository() *mockRepository {
	return &mockRepository{projects: map[int64]*Project{}, nextID: 1, counters: map[int]int{}}
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *mockRepository) GetByCode(ctx context.Context, code string) (*Project, error) {
	for _, p := range m.projects {
		if p.Code == code {
			clone := *p
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) List(ctx context.Context, req ListRequest) ([]Project, int, error) {
	var out []Project
	for _, p := range m.projects {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockRepository) CreateWithCode(ctx context.Context, p Project, registeredAt time.Time) (*Project, error) {
	m.counters[registeredAt.Year()]++
	p.ID = m.nextID
	m.nextID++
	p.Code = FormatCode(registeredAt, m.counters[registeredAt.Year()])
	p.Status = StatusOpen
	m.projects[p.ID] = &p
	return m.Get(ctx, p.ID)
}

func (m *mockRepository) Update(ctx context.Context, p Project) error {
	existing, ok := m.projects[p.ID]
	if !ok {
		return shared.ErrNotFound
	}
	p.Code = existing.Code
	p.Status = existing.Status
	m.projects[p.ID] = &p
	return nil
}

func (m *mockRepository) SetStatus(ctx context.Context, id int64, status Status) error {
	p, ok := m.projects[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Status = status
	return nil
}

func (m *mockRepository) Summary(ctx context.Context, id int64) (*Summary, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &Summary{ProjectID: p.ID, Code: p.Code}, nil
}

type companyRepoStub struct {
	companies map[int64]*company.Company
}

func (s *companyRepoStub) Get(ctx context.Context, id int64) (*company.Company, error) {
	c, ok := s.companies[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

func (s *companyRepoStub) List(ctx context.Context, req company.ListRequest) ([]company.Company, int, error) {
	return nil, 0, nil
}
func (s *companyRepoStub) Create(ctx context.Context, c company.Company) (int64, error) {
	return 0, nil
}
func (s *companyRepoStub) Update(ctx context.Context, c company.Company) error { return nil }
func (s *companyRepoStub) AttachRole(ctx context.Context, companyID int64, kind company.RoleKind) error {
	return nil
}
func (s *companyRepoStub) DetachRole(ctx context.Context, companyID int64, kind company.RoleKind) error {
	return nil
}
func (s *companyRepoStub) RoleInUse(ctx context.Context, companyID int64, kind company.RoleKind) (bool, error) {
	return false, nil
}

func newTestService(t *testing.T) (*Service, *mockRepository) {
	t.Helper()
	repo := newMockRepository()
	companies := company.NewService(&companyRepoStub{companies: map[int64]*company.Company{
		1: {ID: 1, Name: "Acme", Roles: []company.RoleKind{company.RoleCustomer}},
		2: {ID: 2, Name: "Bolt Supplies", Roles: []company.RoleKind{company.RoleVendor}},
	}}, auditStub{})
	svc := NewService(repo, companies, auditStub{})
	svc.now = func() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestFormatCode(t *testing.T) {
	at := time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)
	require.Equal(t, "WK226-0001-0309", FormatCode(at, 1))
	require.Equal(t, "WK226-0042-0309", FormatCode(at, 42))

	dec := time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)
	require.Equal(t, "WK225-9999-1231", FormatCode(dec, 9999))
}

func TestRegisterAllocatesSequentialCodes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, Project{Name: "Warehouse fit-out", CustomerID: 1}, 5)
	require.NoError(t, err)
	require.Equal(t, "WK226-0001-0309", first.Code)
	require.Equal(t, StatusOpen, first.Status)

	second, err := svc.Register(ctx, Project{Name: "HVAC refresh", CustomerID: 1}, 5)
	require.NoError(t, err)
	require.Equal(t, "WK226-0002-0309", second.Code)
}

func TestRegisterRequiresCustomerRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// vendor-only company cannot own a project.
	_, err := svc.Register(ctx, Project{Name: "Bad", CustomerID: 2}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Register(ctx, Project{CustomerID: 1}, 5)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTransitionTable(t *testing.T) {
	require.True(t, StatusOpen.CanTransition(StatusInProgress))
	require.True(t, StatusOpen.CanTransition(StatusCancelled))
	require.True(t, StatusInProgress.CanTransition(StatusCompleted))
	require.True(t, StatusInProgress.CanTransition(StatusCancelled))

	require.False(t, StatusOpen.CanTransition(StatusCompleted))
	require.False(t, StatusCompleted.CanTransition(StatusInProgress))
	require.False(t, StatusCancelled.CanTransition(StatusOpen))
}

func TestTransitionService(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, Project{Name: "Fit-out", CustomerID: 1}, 5)
	require.NoError(t, err)

	p, err = svc.Transition(ctx, p.ID, StatusInProgress, 5)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, p.Status)

	_, err = svc.Transition(ctx, p.ID, StatusOpen, 5)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	p, err = svc.Transition(ctx, p.ID, StatusCompleted, 5)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, p.Status)
}

func TestRequireWritableRejectsTerminalProjects(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, Project{Name: "Fit-out", CustomerID: 1}, 5)
	require.NoError(t, err)

	_, err = svc.RequireWritable(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, repo.SetStatus(ctx, p.ID, StatusCancelled))
	_, err = svc.RequireWritable(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}
