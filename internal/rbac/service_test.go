package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

type roleSourceStub struct {
	roles map[int64][]string
}

func (s *roleSourceStub) RoleNames(ctx context.Context, userID int64) ([]string, error) {
	return s.roles[userID], nil
}

func (s *roleSourceStub) AssignRole(ctx context.Context, userID int64, roleName string, assignedBy int64) error {
	s.roles[userID] = append(s.roles[userID], roleName)
	return nil
}

func (s *roleSourceStub) RevokeRole(ctx context.Context, userID int64, roleName string) error {
	kept := s.roles[userID][:0]
	for _, r := range s.roles[userID] {
		if r != roleName {
			kept = append(kept, r)
		}
	}
	s.roles[userID] = kept
	return nil
}

func (s *roleSourceStub) ListAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	var out []Assignment
	for _, r := range s.roles[userID] {
		out = append(out, Assignment{UserID: userID, RoleName: r})
	}
	return out, nil
}

func TestEffectivePermissions(t *testing.T) {
	svc := NewService(&roleSourceStub{roles: map[int64][]string{
		1: {shared.RoleFinance},
		2: {shared.RoleProduction},
		3: {shared.RoleAdmin},
		4: nil,
	}})
	ctx := context.Background()

	perms, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	require.Contains(t, perms, shared.PermInvoicesEdit)
	require.Contains(t, perms, shared.PermFinanceEdit)
	require.NotContains(t, perms, shared.PermQuotationsEdit)

	perms, err = svc.EffectivePermissions(ctx, 2)
	require.NoError(t, err)
	require.Contains(t, perms, shared.PermDeliveriesEdit)
	require.NotContains(t, perms, shared.PermInvoicesView)

	perms, err = svc.EffectivePermissions(ctx, 3)
	require.NoError(t, err)
	require.Contains(t, perms, shared.PermUsersEdit)
	require.Contains(t, perms, shared.PermQuotationsApprove)

	perms, err = svc.EffectivePermissions(ctx, 4)
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestEffectivePermissionsDeduplicatesAcrossRoles(t *testing.T) {
	svc := NewService(&roleSourceStub{roles: map[int64][]string{
		1: {shared.RoleFinance, shared.RoleSales},
	}})

	perms, err := svc.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, p := range perms {
		seen[p]++
	}
	require.Equal(t, 1, seen[shared.PermCompaniesView])
	require.Contains(t, perms, shared.PermQuotationsEdit)
	require.Contains(t, perms, shared.PermFinanceEdit)
}

func TestAssignRejectsUnknownRole(t *testing.T) {
	source := &roleSourceStub{roles: map[int64][]string{}}
	svc := NewService(source)
	ctx := context.Background()

	require.ErrorIs(t, svc.Assign(ctx, 1, "SUPERUSER", 9), shared.ErrValidation)

	require.NoError(t, svc.Assign(ctx, 1, shared.RoleSales, 9))
	assignments, err := svc.Assignments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	require.Equal(t, shared.RoleSales, assignments[0].RoleName)

	require.NoError(t, svc.Revoke(ctx, 1, shared.RoleSales))
	assignments, err = svc.Assignments(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, assignments)
}
