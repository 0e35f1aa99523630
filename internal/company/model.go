package company

import "time"

// RoleKind is the polymorphic business role a company can hold.
type RoleKind string

const (
	RoleCustomer RoleKind = "CUSTOMER"
	RoleVendor   RoleKind = "VENDOR"
)

// Valid reports whether the role kind is known.
func (k RoleKind) Valid() bool {
	return k == RoleCustomer || k == RoleVendor
}

// Company is a business partner; roles decide where it may appear
// (customer on quotations/invoices, vendor on purchase documents).
type Company struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	TaxRegNo    string     `json:"tax_reg_no"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`
	ContactName string     `json:"contact_name"`
	IsActive    bool       `json:"is_active"`
	Roles       []RoleKind `json:"roles"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasRole reports whether the company holds the given role.
func (c *Company) HasRole(kind RoleKind) bool {
	for _, r := range c.Roles {
		if r == kind {
			return true
		}
	}
	return false
}

// ListRequest filters company listings.
type ListRequest struct {
	Role    RoleKind
	Search  string
	Active  *bool
	Page    int
	PerPage int
}
