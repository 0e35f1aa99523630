package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// RoleSource loads role names granted to a user. Split out so the permission
// resolution logic is testable without postgres.
type RoleSource interface {
	RoleNames(ctx context.Context, userID int64) ([]string, error)
	AssignRole(ctx context.Context, userID int64, roleName string, assignedBy int64) error
	RevokeRole(ctx context.Context, userID int64, roleName string) error
	ListAssignments(ctx context.Context, userID int64) ([]Assignment, error)
}

// Service resolves effective permissions for users from their role set.
type Service struct {
	source RoleSource
	scopes map[string][]string
}

// NewService constructs a Service using the built-in role scope table.
func NewService(source RoleSource) *Service {
	return &Service{source: source, scopes: shared.RoleScopes()}
}

// EffectivePermissions returns the union of permissions across the user roles.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	roles, err := s.source.RoleNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: load roles: %w", err)
	}
	seen := map[string]struct{}{}
	var perms []string
	for _, role := range roles {
		for _, p := range s.scopes[role] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			perms = append(perms, p)
		}
	}
	return perms, nil
}

// Assign grants a built-in role to a user.
func (s *Service) Assign(ctx context.Context, userID int64, roleName string, assignedBy int64) error {
	if _, ok := s.scopes[roleName]; !ok {
		return fmt.Errorf("%w: unknown role %q", shared.ErrValidation, roleName)
	}
	return s.source.AssignRole(ctx, userID, roleName, assignedBy)
}

// Revoke removes a role from a user.
func (s *Service) Revoke(ctx context.Context, userID int64, roleName string) error {
	return s.source.RevokeRole(ctx, userID, roleName)
}

// Assignments lists the role assignments for a user.
func (s *Service) Assignments(ctx context.Context, userID int64) ([]Assignment, error) {
	return s.source.ListAssignments(ctx, userID)
}

// Repository implements RoleSource on postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RoleNames returns role names granted to the user.
func (r *Repository) RoleNames(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ro.name
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AssignRole inserts a user-role link, ignoring duplicates.
func (r *Repository) AssignRole(ctx context.Context, userID int64, roleName string, assignedBy int64) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, assigned_by, assigned_at)
		SELECT $1, ro.id, $3, NOW() FROM roles ro WHERE ro.name = $2
		ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleName, assignedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the role does not exist or the link is already present.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT true FROM roles WHERE name = $1`, roleName).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: role %q", shared.ErrNotFound, roleName)
			}
			return err
		}
	}
	return nil
}

// RevokeRole deletes a user-role link.
func (r *Repository) RevokeRole(ctx context.Context, userID int64, roleName string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM user_roles ur
		USING roles ro
		WHERE ur.role_id = ro.id AND ur.user_id = $1 AND ro.name = $2`, userID, roleName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: assignment", shared.ErrNotFound)
	}
	return nil
}

// ListAssignments returns role assignments for a user.
func (r *Repository) ListAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ur.user_id, ur.role_id, ro.name, ur.assigned_by, ur.assigned_at
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY ro.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.RoleName, &a.AssignedBy, &a.AssignedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
