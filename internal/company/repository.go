package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Repository provides persistence for companies and their roles.
type Repository interface {
	Get(ctx context.Context, id int64) (*Company, error)
	List(ctx context.Context, req ListRequest) ([]Company, int, error)
	Create(ctx context.Context, c Company) (int64, error)
	Update(ctx context.Context, c Company) error
	AttachRole(ctx context.Context, companyID int64, kind RoleKind) error
	DetachRole(ctx context.Context, companyID int64, kind RoleKind) error
	RoleInUse(ctx context.Context, companyID int64, kind RoleKind) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a postgres backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, id int64) (*Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, tax_reg_no, email, phone, address, contact_name, is_active, created_at, updated_at
		FROM companies WHERE id = $1`, id).Scan(
		&c.ID, &c.Name, &c.TaxRegNo, &c.Email, &c.Phone, &c.Address, &c.ContactName,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: company %d", shared.ErrNotFound, id)
		}
		return nil, err
	}

	roles, err := r.roles(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Roles = roles
	return &c, nil
}

func (r *repository) roles(ctx context.Context, companyID int64) ([]RoleKind, error) {
	rows, err := r.pool.Query(ctx, `SELECT kind FROM company_roles WHERE company_id = $1 ORDER BY kind`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []RoleKind
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return nil, err
		}
		roles = append(roles, RoleKind(kind))
	}
	return roles, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Company, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.Role != "" {
		where += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM company_roles cr WHERE cr.company_id = c.id AND cr.kind = $%d)", argPos)
		args = append(args, string(req.Role))
		argPos++
	}
	if req.Search != "" {
		where += fmt.Sprintf(" AND (c.name ILIKE $%d OR c.tax_reg_no ILIKE $%d)", argPos, argPos)
		args = append(args, "%"+req.Search+"%")
		argPos++
	}
	if req.Active != nil {
		where += fmt.Sprintf(" AND c.is_active = $%d", argPos)
		args = append(args, *req.Active)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM companies c "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	p := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf(`
		SELECT c.id, c.name, c.tax_reg_no, c.email, c.phone, c.address, c.contact_name,
		       c.is_active, c.created_at, c.updated_at,
		       COALESCE(array_agg(cr.kind ORDER BY cr.kind) FILTER (WHERE cr.kind IS NOT NULL), '{}')
		FROM companies c
		LEFT JOIN company_roles cr ON cr.company_id = c.id
		%s
		GROUP BY c.id
		ORDER BY c.name
		LIMIT $%d OFFSET $%d`, where, argPos, argPos+1)
	args = append(args, p.PerPage, p.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		var kinds []string
		if err := rows.Scan(
			&c.ID, &c.Name, &c.TaxRegNo, &c.Email, &c.Phone, &c.Address, &c.ContactName,
			&c.IsActive, &c.CreatedAt, &c.UpdatedAt, &kinds,
		); err != nil {
			return nil, 0, err
		}
		for _, k := range kinds {
			c.Roles = append(c.Roles, RoleKind(k))
		}
		companies = append(companies, c)
	}
	return companies, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Company) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO companies (name, tax_reg_no, email, phone, address, contact_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, NOW(), NOW())
		RETURNING id`,
		c.Name, c.TaxRegNo, c.Email, c.Phone, c.Address, c.ContactName,
	).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, c Company) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE companies
		SET name = $2, tax_reg_no = $3, email = $4, phone = $5, address = $6,
		    contact_name = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.TaxRegNo, c.Email, c.Phone, c.Address, c.ContactName, c.IsActive,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: company %d", shared.ErrNotFound, c.ID)
	}
	return nil
}

func (r *repository) AttachRole(ctx context.Context, companyID int64, kind RoleKind) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO company_roles (company_id, kind, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (company_id, kind) DO NOTHING`, companyID, string(kind))
	return err
}

func (r *repository) DetachRole(ctx context.Context, companyID int64, kind RoleKind) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM company_roles WHERE company_id = $1 AND kind = $2`, companyID, string(kind))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role %s", shared.ErrNotFound, kind)
	}
	return nil
}

// RoleInUse reports whether open documents still reference the company under
// the given role.
func (r *repository) RoleInUse(ctx context.Context, companyID int64, kind RoleKind) (bool, error) {
	var query string
	switch kind {
	case RoleCustomer:
		query = `SELECT EXISTS (
			SELECT 1 FROM projects WHERE customer_id = $1 AND status IN ('OPEN','IN_PROGRESS')
			UNION
			SELECT 1 FROM tax_invoices WHERE customer_id = $1 AND status = 'ISSUED')`
	case RoleVendor:
		query = `SELECT EXISTS (
			SELECT 1 FROM purchase_orders WHERE vendor_id = $1 AND status IN ('DRAFT','ISSUED')
			UNION
			SELECT 1 FROM vendor_bills WHERE vendor_id = $1 AND status = 'OPEN')`
	default:
		return false, fmt.Errorf("%w: unknown role kind %q", shared.ErrValidation, kind)
	}
	var inUse bool
	err := r.pool.QueryRow(ctx, query, companyID).Scan(&inUse)
	return inUse, err
}
