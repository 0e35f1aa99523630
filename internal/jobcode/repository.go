package jobcode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workdesk-erp/workdesk-erp/internal/platform/db"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Repository provides project persistence and job code allocation.
type Repository interface {
	Get(ctx context.Context, id int64) (*Project, error)
	GetByCode(ctx context.Context, code string) (*Project, error)
	List(ctx context.Context, req ListRequest) ([]Project, int, error)
	CreateWithCode(ctx context.Context, p Project, registeredAt time.Time) (*Project, error)
	Update(ctx context.Context, p Project) error
	SetStatus(ctx context.Context, id int64, status Status) error
	Summary(ctx context.Context, id int64) (*Summary, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a postgres backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const projectSelect = `
	SELECT p.id, p.code, p.name, p.customer_id, c.name, p.description, p.status,
	       p.start_date, p.due_date, p.created_by, p.created_at, p.updated_at
	FROM projects p
	JOIN companies c ON c.id = p.customer_id`

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.CustomerID, &p.CustomerName, &p.Description,
		&p.Status, &p.StartDate, &p.DueDate, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: project", shared.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Project, error) {
	return scanProject(r.pool.QueryRow(ctx, projectSelect+` WHERE p.id = $1`, id))
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Project, error) {
	return scanProject(r.pool.QueryRow(ctx, projectSelect+` WHERE p.code = $1`, code))
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Project, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.Status != "" {
		where += fmt.Sprintf(" AND p.status = $%d", argPos)
		args = append(args, string(req.Status))
		argPos++
	}
	if req.CustomerID != 0 {
		where += fmt.Sprintf(" AND p.customer_id = $%d", argPos)
		args = append(args, req.CustomerID)
		argPos++
	}
	if req.Search != "" {
		where += fmt.Sprintf(" AND (p.code ILIKE $%d OR p.name ILIKE $%d)", argPos, argPos)
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM projects p "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pg := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf("%s %s ORDER BY p.code DESC LIMIT $%d OFFSET $%d", projectSelect, where, argPos, argPos+1)
	args = append(args, pg.PerPage, pg.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.CustomerID, &p.CustomerName, &p.Description,
			&p.Status, &p.StartDate, &p.DueDate, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}
	return projects, total, rows.Err()
}

// CreateWithCode allocates the next yearly sequence and inserts the project in
// one transaction. The counter row is locked FOR UPDATE, so concurrent
// registrations serialize and codes come out strictly increasing within a
// year with no gaps from lost updates.
func (r *repository) CreateWithCode(ctx context.Context, p Project, registeredAt time.Time) (*Project, error) {
	var created *Project
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		year := registeredAt.Year()
		if _, err := tx.Exec(ctx, `
			INSERT INTO job_code_counters (year, last_seq) VALUES ($1, 0)
			ON CONFLICT (year) DO NOTHING`, year); err != nil {
			return err
		}

		var lastSeq int
		if err := tx.QueryRow(ctx,
			`SELECT last_seq FROM job_code_counters WHERE year = $1 FOR UPDATE`, year,
		).Scan(&lastSeq); err != nil {
			return err
		}

		seq := lastSeq + 1
		if _, err := tx.Exec(ctx,
			`UPDATE job_code_counters SET last_seq = $2 WHERE year = $1`, year, seq); err != nil {
			return err
		}

		code := FormatCode(registeredAt, seq)
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO projects (code, name, customer_id, description, status, start_date, due_date, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
			RETURNING id`,
			code, p.Name, p.CustomerID, p.Description, string(StatusOpen), p.StartDate, p.DueDate, p.CreatedBy,
		).Scan(&id); err != nil {
			return err
		}

		row, err := scanProject(tx.QueryRow(ctx, projectSelect+` WHERE p.id = $1`, id))
		if err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, p Project) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE projects
		SET name = $2, description = $3, start_date = $4, due_date = $5, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.StartDate, p.DueDate,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project %d", shared.ErrNotFound, p.ID)
	}
	return nil
}

func (r *repository) Summary(ctx context.Context, id int64) (*Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, `
		SELECT p.id, p.code,
		       COALESCE((SELECT MAX(q.total) FROM quotations q
		                 WHERE q.project_id = p.id AND q.status = 'ACCEPTED'), 0),
		       COALESCE((SELECT SUM(i.total) FROM tax_invoices i
		                 WHERE i.project_id = p.id AND i.status <> 'CANCELLED'), 0),
		       COALESCE((SELECT SUM(i.paid_amount) FROM tax_invoices i
		                 WHERE i.project_id = p.id AND i.status <> 'CANCELLED'), 0)
		FROM projects p WHERE p.id = $1`, id,
	).Scan(&s.ProjectID, &s.Code, &s.Quoted, &s.Invoiced, &s.Paid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: project", shared.ErrNotFound)
		}
		return nil, err
	}
	s.Outstanding = s.Invoiced - s.Paid
	return &s, nil
}

func (r *repository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE projects SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project %d", shared.ErrNotFound, id)
	}
	return nil
}
