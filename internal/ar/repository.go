package ar

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenRow is an unpaid invoice row with its customer attached.
type OpenRow struct {
	Item         OpenItem
	CustomerID   int64
	CustomerName string
}

// Repository reads open receivable positions.
type Repository interface {
	// OpenRows returns unpaid, non-cancelled invoices ordered by customer
	// and due date, optionally scoped to one customer.
	OpenRows(ctx context.Context, customerID int64, asOf time.Time) ([]OpenRow, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a postgres backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) OpenRows(ctx context.Context, customerID int64, asOf time.Time) ([]OpenRow, error) {
	query := `
		SELECT i.id, i.number, p.code, i.customer_id, c.name, i.issue_date, i.due_date,
		       i.total, i.paid_amount
		FROM tax_invoices i
		JOIN projects p ON p.id = i.project_id
		JOIN companies c ON c.id = i.customer_id
		WHERE i.status = 'ISSUED' AND i.total > i.paid_amount AND i.issue_date <= $1`
	args := []any{asOf}
	if customerID != 0 {
		query += ` AND i.customer_id = $2`
		args = append(args, customerID)
	}
	query += ` ORDER BY i.customer_id, i.due_date, i.number`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OpenRow
	for rows.Next() {
		var row OpenRow
		if err := rows.Scan(&row.Item.InvoiceID, &row.Item.Number, &row.Item.ProjectCode,
			&row.CustomerID, &row.CustomerName, &row.Item.IssueDate, &row.Item.DueDate,
			&row.Item.Total, &row.Item.PaidAmount); err != nil {
			return nil, err
		}
		row.Item.Outstanding = row.Item.Total - row.Item.PaidAmount
		row.Item.Bucket = BucketFor(asOf, row.Item.DueDate)
		out = append(out, row)
	}
	return out, rows.Err()
}
