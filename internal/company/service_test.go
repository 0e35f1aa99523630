package company

import (
	"context"
	"fmt"
	"testing"

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
	companies map[int64]*Company
	nextID    int64
	inUse     map[string]bool
}

func roleKey(companyID int64, kind RoleKind) string {
	return fmt.Sprintf("%d:%s", companyID, kind)
}

func newMockRepository() *mockRepository {
	return &mockRepository{companies: map[int64]*Company{}, nextID: 1, inUse: map[string]bool{}}
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *c
	clone.Roles = append([]RoleKind(nil), c.Roles...)
	return &clone, nil
}

func (m *mockRepository) List(ctx context.Context, req ListRequest) ([]Company, int, error) {
	var out []Company
	for _, c := range m.companies {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(ctx context.Context, c Company) (int64, error) {
	id := m.nextID
	m.nextID++
	c.ID = id
	c.IsActive = true
	m.companies[id] = &c
	return id, nil
}

func (m *mockRepository) Update(ctx context.Context, c Company) error {
	existing, ok := m.companies[c.ID]
	if !ok {
		return shared.ErrNotFound
	}
	c.Roles = existing.Roles
	m.companies[c.ID] = &c
	return nil
}

func (m *mockRepository) AttachRole(ctx context.Context, companyID int64, kind RoleKind) error {
	c, ok := m.companies[companyID]
	if !ok {
		return shared.ErrNotFound
	}
	if !c.HasRole(kind) {
		c.Roles = append(c.Roles, kind)
	}
	return nil
}

func (m *mockRepository) DetachRole(ctx context.Context, companyID int64, kind RoleKind) error {
	c, ok := m.companies[companyID]
	if !ok {
		return shared.ErrNotFound
	}
	var kept []RoleKind
	for _, r := range c.Roles {
		if r != kind {
			kept = append(kept, r)
		}
	}
	c.Roles = kept
	return nil
}

func (m *mockRepository) RoleInUse(ctx context.Context, companyID int64, kind RoleKind) (bool, error) {
	return m.inUse[roleKey(companyID, kind)], nil
}

func newTestService() (*Service, *mockRepository) {
	repo := newMockRepository()
	return NewService(repo, &auditStub{}), repo
}

func TestAttachAndRequireRole(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, Company{Name: "Acme Industries"}, 1)
	require.NoError(t, err)

	_, err = svc.RequireRole(ctx, created.ID, RoleCustomer)
	require.ErrorIs(t, err, shared.ErrValidation)

	require.NoError(t, svc.AttachRole(ctx, created.ID, RoleCustomer, 1))

	c, err := svc.RequireRole(ctx, created.ID, RoleCustomer)
	require.NoError(t, err)
	require.True(t, c.HasRole(RoleCustomer))

	// the other role is still absent.
	_, err = svc.RequireRole(ctx, created.ID, RoleVendor)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAttachRoleRejectsUnknownKind(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, Company{Name: "Acme"}, 1)
	require.NoError(t, err)

	err = svc.AttachRole(ctx, created.ID, RoleKind("SUPPLIER"), 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDetachRoleBlockedWhenInUse(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, Company{Name: "Acme"}, 1)
	require.NoError(t, err)
	require.NoError(t, svc.AttachRole(ctx, created.ID, RoleVendor, 1))

	repo.inUse[roleKey(created.ID, RoleVendor)] = true
	err = svc.DetachRole(ctx, created.ID, RoleVendor, 1)
	require.ErrorIs(t, err, shared.ErrConflict)

	repo.inUse[roleKey(created.ID, RoleVendor)] = false
	require.NoError(t, svc.DetachRole(ctx, created.ID, RoleVendor, 1))

	c, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, c.HasRole(RoleVendor))
}

func TestCompanyCanHoldBothRoles(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, Company{Name: "Acme"}, 1)
	require.NoError(t, err)
	require.NoError(t, svc.AttachRole(ctx, created.ID, RoleCustomer, 1))
	require.NoError(t, svc.AttachRole(ctx, created.ID, RoleVendor, 1))

	c, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, c.HasRole(RoleCustomer))
	require.True(t, c.HasRole(RoleVendor))
}
