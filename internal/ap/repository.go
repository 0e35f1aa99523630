package ap

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

// Repository provides vendor bill persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (*Bill, error)
	List(ctx context.Context, req ListRequest) ([]Bill, int, error)
	Create(ctx context.Context, b Bill) (int64, error)
	Cancel(ctx context.Context, id int64) error
	AddPayment(ctx context.Context, p Payment) (*Bill, error)
	Payments(ctx context.Context, billID int64) ([]Payment, error)
	OpenBills(ctx context.Context, vendorID int64, asOf time.Time) ([]Bill, error)
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

const billSelect = `
	SELECT b.id, b.bill_no, b.vendor_id, c.name, b.purchase_order_id, b.status,
	       b.issue_date, b.due_date, b.amount, b.paid_amount, b.notes,
	       b.created_by, b.created_at, b.updated_at
	FROM vendor_bills b
	JOIN companies c ON c.id = b.vendor_id`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.BillNo, &b.VendorID, &b.VendorName, &b.PurchaseOrderID, &b.Status,
		&b.IssueDate, &b.DueDate, &b.Amount, &b.PaidAmount, &b.Notes,
		&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: vendor bill", shared.ErrNotFound)
		}
		return nil, err
	}
	return &b, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Bill, error) {
	return scanBill(r.pool.QueryRow(ctx, billSelect+` WHERE b.id = $1`, id))
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Bill, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.VendorID != 0 {
		where += fmt.Sprintf(" AND b.vendor_id = $%d", argPos)
		args = append(args, req.VendorID)
		argPos++
	}
	if req.Status != "" {
		where += fmt.Sprintf(" AND b.status = $%d", argPos)
		args = append(args, string(req.Status))
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM vendor_bills b "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	p := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf("%s %s ORDER BY b.due_date, b.id LIMIT $%d OFFSET $%d", billSelect, where, argPos, argPos+1)
	args = append(args, p.PerPage, p.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(&b.ID, &b.BillNo, &b.VendorID, &b.VendorName, &b.PurchaseOrderID, &b.Status,
			&b.IssueDate, &b.DueDate, &b.Amount, &b.PaidAmount, &b.Notes,
			&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		bills = append(bills, b)
	}
	return bills, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, b Bill) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO vendor_bills (bill_no, vendor_id, purchase_order_id, status, issue_date, due_date,
		                          amount, paid_amount, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, NOW(), NOW())
		RETURNING id`,
		b.BillNo, b.VendorID, b.PurchaseOrderID, string(BillOpen), b.IssueDate, b.DueDate,
		b.Amount, b.Notes, b.CreatedBy,
	).Scan(&id)
	return id, err
}

func (r *repository) Cancel(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE vendor_bills SET status = 'CANCELLED', updated_at = NOW()
		WHERE id = $1 AND status = 'OPEN' AND paid_amount = 0`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: bill %d is not an unpaid open bill", shared.ErrInvalidState, id)
	}
	return nil
}

func (r *repository) AddPayment(ctx context.Context, p Payment) (*Bill, error) {
	var updated *Bill
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		var amount, paid float64
		if err := tx.QueryRow(ctx, `
			SELECT status, amount, paid_amount FROM vendor_bills WHERE id = $1 FOR UPDATE`,
			p.BillID,
		).Scan(&status, &amount, &paid); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: bill %d", shared.ErrNotFound, p.BillID)
			}
			return err
		}
		if status != string(BillOpen) {
			return fmt.Errorf("%w: bill is %s", shared.ErrInvalidState, status)
		}
		if p.Amount <= 0 {
			return fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
		}
		if paid+p.Amount > amount {
			return fmt.Errorf("%w: payment %.2f exceeds outstanding %.2f",
				shared.ErrValidation, p.Amount, amount-paid)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO bill_payments (bill_id, amount, paid_at, method, reference, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
			p.BillID, p.Amount, p.PaidAt, p.Method, p.Reference, p.CreatedBy); err != nil {
			return err
		}

		newPaid := paid + p.Amount
		newStatus := string(BillOpen)
		if newPaid >= amount {
			newStatus = string(BillPaid)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE vendor_bills SET paid_amount = $2, status = $3, updated_at = NOW() WHERE id = $1`,
			p.BillID, newPaid, newStatus); err != nil {
			return err
		}

		b, err := scanBill(tx.QueryRow(ctx, billSelect+` WHERE b.id = $1`, p.BillID))
		if err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *repository) Payments(ctx context.Context, billID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, bill_id, amount, paid_at, method, reference, created_by, created_at
		FROM bill_payments
		WHERE bill_id = $1
		ORDER BY paid_at, id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.BillID, &p.Amount, &p.PaidAt, &p.Method, &p.Reference,
			&p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *repository) OpenBills(ctx context.Context, vendorID int64, asOf time.Time) ([]Bill, error) {
	query := billSelect + ` WHERE b.status = 'OPEN' AND b.amount > b.paid_amount AND b.issue_date <= $1`
	args := []any{asOf}
	if vendorID != 0 {
		query += ` AND b.vendor_id = $2`
		args = append(args, vendorID)
	}
	query += ` ORDER BY b.vendor_id, b.due_date`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(&b.ID, &b.BillNo, &b.VendorID, &b.VendorName, &b.PurchaseOrderID, &b.Status,
			&b.IssueDate, &b.DueDate, &b.Amount, &b.PaidAmount, &b.Notes,
			&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}
