package report

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the report aggregation queries.
type Repository interface {
	ProjectSummaries(ctx context.Context) ([]ProjectSummary, error)
	Dashboard(ctx context.Context, now time.Time) (*Dashboard, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a postgres backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ProjectSummaries(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.code, p.name, c.name, p.status,
		       COALESCE((SELECT MAX(q.total) FROM quotations q
		                 WHERE q.project_id = p.id AND q.status = 'ACCEPTED'), 0),
		       COALESCE((SELECT SUM(i.total) FROM tax_invoices i
		                 WHERE i.project_id = p.id AND i.status <> 'CANCELLED'), 0),
		       COALESCE((SELECT SUM(i.paid_amount) FROM tax_invoices i
		                 WHERE i.project_id = p.id AND i.status <> 'CANCELLED'), 0)
		FROM projects p
		JOIN companies c ON c.id = p.customer_id
		ORDER BY p.code DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []ProjectSummary
	for rows.Next() {
		var s ProjectSummary
		if err := rows.Scan(&s.ProjectID, &s.Code, &s.Name, &s.Customer, &s.Status,
			&s.Quoted, &s.Invoiced, &s.Paid); err != nil {
			return nil, err
		}
		s.Outstanding = s.Invoiced - s.Paid
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *repository) Dashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var d Dashboard
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM projects WHERE status IN ('OPEN', 'IN_PROGRESS')),
			(SELECT COUNT(*) FROM approval_requests WHERE status = 'PENDING'),
			(SELECT COUNT(*) FROM tax_invoices WHERE status = 'ISSUED'),
			(SELECT COALESCE(SUM(total - paid_amount), 0) FROM tax_invoices WHERE status = 'ISSUED'),
			(SELECT COALESCE(SUM(amount - paid_amount), 0) FROM vendor_bills WHERE status = 'OPEN'),
			(SELECT COALESCE(SUM(total), 0) FROM tax_invoices
			 WHERE status <> 'CANCELLED' AND issue_date >= $1)`,
		monthStart,
	).Scan(&d.OpenProjects, &d.PendingApprovals, &d.OpenInvoices,
		&d.ReceivableTotal, &d.PayableTotal, &d.InvoicedThisMonth)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
