package invoice

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

// ErrOverInvoiced is returned when a requested quantity would exceed the net
// delivered balance once existing invoices are counted.
var ErrOverInvoiced = errors.New("requested quantity exceeds uninvoiced delivered balance")

// Repository provides invoice persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, req ListRequest) ([]Invoice, int, error)
	// IssueGuarded allocates an invoice number and inserts the invoice after
	// re-checking the delivered-vs-invoiced balance under a project advisory
	// lock.
	IssueGuarded(ctx context.Context, inv Invoice, issuedAt time.Time) (*Invoice, error)
	Cancel(ctx context.Context, id int64) error
	// AddPayment inserts a payment and rolls the paid amount forward,
	// flipping the status to PAID when the total is covered.
	AddPayment(ctx context.Context, p Payment) (*Invoice, error)
	Payments(ctx context.Context, invoiceID int64) ([]Payment, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a postgres backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const invoiceSelect = `
	SELECT i.id, i.number, i.project_id, p.code, i.customer_id, i.status,
	       i.issue_date, i.due_date, i.tax_rate, i.subtotal, i.tax_amount, i.total,
	       i.paid_amount, i.created_by, i.created_at, i.updated_at
	FROM tax_invoices i
	JOIN projects p ON p.id = i.project_id`

func (r *repository) fetch(ctx context.Context, q querier, where string, args ...any) (*Invoice, error) {
	var inv Invoice
	err := q.QueryRow(ctx, invoiceSelect+" "+where, args...).Scan(
		&inv.ID, &inv.Number, &inv.ProjectID, &inv.ProjectCode, &inv.CustomerID, &inv.Status,
		&inv.IssueDate, &inv.DueDate, &inv.TaxRate, &inv.Subtotal, &inv.TaxAmount, &inv.Total,
		&inv.PaidAmount, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice", shared.ErrNotFound)
		}
		return nil, err
	}

	lines, err := r.lines(ctx, q, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return &inv, nil
}

func (r *repository) lines(ctx context.Context, q querier, invoiceID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT l.id, l.invoice_id, l.product_id, pr.sku, l.qty, l.unit_price, l.line_total
		FROM tax_invoice_lines l
		JOIN products pr ON pr.id = l.product_id
		WHERE l.invoice_id = $1
		ORDER BY l.id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.ProductID, &l.ProductSKU, &l.Qty, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	return r.fetch(ctx, r.pool, `WHERE i.id = $1`, id)
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Invoice, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.ProjectID != 0 {
		where += fmt.Sprintf(" AND i.project_id = $%d", argPos)
		args = append(args, req.ProjectID)
		argPos++
	}
	if req.CustomerID != 0 {
		where += fmt.Sprintf(" AND i.customer_id = $%d", argPos)
		args = append(args, req.CustomerID)
		argPos++
	}
	if req.Status != "" {
		where += fmt.Sprintf(" AND i.status = $%d", argPos)
		args = append(args, string(req.Status))
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tax_invoices i "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pg := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf("%s %s ORDER BY i.number DESC LIMIT $%d OFFSET $%d",
		invoiceSelect, where, argPos, argPos+1)
	args = append(args, pg.PerPage, pg.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.ProjectID, &inv.ProjectCode, &inv.CustomerID,
			&inv.Status, &inv.IssueDate, &inv.DueDate, &inv.TaxRate, &inv.Subtotal, &inv.TaxAmount,
			&inv.Total, &inv.PaidAmount, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range invoices {
		lines, err := r.lines(ctx, r.pool, invoices[i].ID)
		if err != nil {
			return nil, 0, err
		}
		invoices[i].Lines = lines
	}
	return invoices, total, nil
}

// IssueGuarded serializes with other invoice writers on the same project via
// an advisory lock, then enforces, per product:
//
//	invoiced (non-CANCELLED) + requested <= delivered - returned
//
// The check and the insert run in one transaction, so two concurrent invoices
// cannot both pass against the same delivered balance.
func (r *repository) IssueGuarded(ctx context.Context, inv Invoice, issuedAt time.Time) (*Invoice, error) {
	var created *Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := shared.LockProject(ctx, tx, inv.ProjectID); err != nil {
			return err
		}

		for _, l := range inv.Lines {
			var net, invoiced float64
			if err := tx.QueryRow(ctx, `
				SELECT COALESCE(SUM(CASE WHEN direction = 'DELIVERED' THEN qty ELSE -qty END), 0)
				FROM deliveries
				WHERE project_id = $1 AND product_id = $2`,
				inv.ProjectID, l.ProductID,
			).Scan(&net); err != nil {
				return err
			}
			if err := tx.QueryRow(ctx, `
				SELECT COALESCE(SUM(il.qty), 0)
				FROM tax_invoice_lines il
				JOIN tax_invoices i ON i.id = il.invoice_id
				WHERE i.project_id = $1 AND il.product_id = $2 AND i.status <> 'CANCELLED'`,
				inv.ProjectID, l.ProductID,
			).Scan(&invoiced); err != nil {
				return err
			}
			if invoiced+l.Qty > net {
				return fmt.Errorf("%w: product %d requested %.2f, invoiced %.2f, delivered %.2f",
					ErrOverInvoiced, l.ProductID, l.Qty, invoiced, net)
			}
		}

		seq, err := shared.NextDocumentSeq(ctx, tx, "INV", issuedAt.Format("2006"))
		if err != nil {
			return err
		}
		number := FormatNumber(issuedAt, seq)

		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO tax_invoices (number, project_id, customer_id, status, issue_date, due_date,
			                          tax_rate, subtotal, tax_amount, total, paid_amount, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, NOW(), NOW())
			RETURNING id`,
			number, inv.ProjectID, inv.CustomerID, string(StatusIssued), inv.IssueDate, inv.DueDate,
			inv.TaxRate, inv.Subtotal, inv.TaxAmount, inv.Total, inv.CreatedBy,
		).Scan(&id); err != nil {
			return err
		}

		for _, l := range inv.Lines {
			if _, err := tx.Exec(ctx, `
				INSERT INTO tax_invoice_lines (invoice_id, product_id, qty, unit_price, line_total)
				VALUES ($1, $2, $3, $4, $5)`,
				id, l.ProductID, l.Qty, l.UnitPrice, l.LineTotal); err != nil {
				return err
			}
		}

		row, err := r.fetch(ctx, tx, `WHERE i.id = $1`, id)
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

func (r *repository) Cancel(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tax_invoices SET status = 'CANCELLED', updated_at = NOW()
		WHERE id = $1 AND status = 'ISSUED'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice %d is not in ISSUED state", shared.ErrInvalidState, id)
	}
	return nil
}

func (r *repository) AddPayment(ctx context.Context, p Payment) (*Invoice, error) {
	var updated *Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		var total, paid float64
		if err := tx.QueryRow(ctx, `
			SELECT status, total, paid_amount FROM tax_invoices WHERE id = $1 FOR UPDATE`,
			p.InvoiceID,
		).Scan(&status, &total, &paid); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: invoice %d", shared.ErrNotFound, p.InvoiceID)
			}
			return err
		}
		if status != string(StatusIssued) {
			return fmt.Errorf("%w: invoice is %s", shared.ErrInvalidState, status)
		}
		if p.Amount <= 0 {
			return fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
		}
		if paid+p.Amount > total {
			return fmt.Errorf("%w: payment %.2f exceeds outstanding %.2f",
				shared.ErrValidation, p.Amount, total-paid)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO invoice_payments (invoice_id, amount, paid_at, method, reference, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
			p.InvoiceID, p.Amount, p.PaidAt, p.Method, p.Reference, p.CreatedBy); err != nil {
			return err
		}

		newPaid := paid + p.Amount
		newStatus := string(StatusIssued)
		if newPaid >= total {
			newStatus = string(StatusPaid)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE tax_invoices SET paid_amount = $2, status = $3, updated_at = NOW() WHERE id = $1`,
			p.InvoiceID, newPaid, newStatus); err != nil {
			return err
		}

		row, err := r.fetch(ctx, tx, `WHERE i.id = $1`, p.InvoiceID)
		if err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *repository) Payments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, amount, paid_at, method, reference, created_by, created_at
		FROM invoice_payments
		WHERE invoice_id = $1
		ORDER BY paid_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaidAt, &p.Method, &p.Reference,
			&p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
