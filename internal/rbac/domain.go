package rbac

import "time"

// Role is a named permission bundle assignable to users.
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	BuiltIn   bool      `json:"built_in"`
	CreatedAt time.Time `json:"created_at"`
}

// Assignment links a user to a role.
type Assignment struct {
	UserID     int64     `json:"user_id"`
	RoleID     int64     `json:"role_id"`
	RoleName   string    `json:"role_name"`
	AssignedBy int64     `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}
