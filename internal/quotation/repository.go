package quotation

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

// Repository provides quotation persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, req ListRequest) ([]Quotation, int, error)
	CreateWithNumber(ctx context.Context, q Quotation, issuedAt time.Time) (*Quotation, error)
	ReplaceLines(ctx context.Context, q Quotation) error
	SetStatus(ctx context.Context, id int64, status Status) error
	NextVersion(ctx context.Context, projectID int64) (int, error)
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

const quotationSelect = `
	SELECT q.id, q.number, q.project_id, p.code, q.customer_id, q.version, q.status,
	       q.valid_until, q.notes, q.tax_rate, q.subtotal, q.tax_amount, q.total,
	       q.created_by, q.created_at, q.updated_at
	FROM quotations q
	JOIN projects p ON p.id = q.project_id`

func (r *repository) fetch(ctx context.Context, qr querier, where string, args ...any) (*Quotation, error) {
	var q Quotation
	err := qr.QueryRow(ctx, quotationSelect+" "+where, args...).Scan(
		&q.ID, &q.Number, &q.ProjectID, &q.ProjectCode, &q.CustomerID, &q.Version, &q.Status,
		&q.ValidUntil, &q.Notes, &q.TaxRate, &q.Subtotal, &q.TaxAmount, &q.Total,
		&q.CreatedBy, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: quotation", shared.ErrNotFound)
		}
		return nil, err
	}

	lines, err := r.lines(ctx, qr, q.ID)
	if err != nil {
		return nil, err
	}
	q.Lines = lines
	return &q, nil
}

func (r *repository) lines(ctx context.Context, qr querier, quotationID int64) ([]Line, error) {
	rows, err := qr.Query(ctx, `
		SELECT l.id, l.quotation_id, l.product_id, pr.sku, l.description, l.qty,
		       l.unit_price, l.discount_pct, l.line_total
		FROM quotation_lines l
		JOIN products pr ON pr.id = l.product_id
		WHERE l.quotation_id = $1
		ORDER BY l.id`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.QuotationID, &l.ProductID, &l.ProductSKU, &l.Description,
			&l.Qty, &l.UnitPrice, &l.DiscountPct, &l.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	return r.fetch(ctx, r.pool, `WHERE q.id = $1`, id)
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Quotation, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.ProjectID != 0 {
		where += fmt.Sprintf(" AND q.project_id = $%d", argPos)
		args = append(args, req.ProjectID)
		argPos++
	}
	if req.CustomerID != 0 {
		where += fmt.Sprintf(" AND q.customer_id = $%d", argPos)
		args = append(args, req.CustomerID)
		argPos++
	}
	if req.Status != "" {
		where += fmt.Sprintf(" AND q.status = $%d", argPos)
		args = append(args, string(req.Status))
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM quotations q "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pg := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf("%s %s ORDER BY q.number DESC, q.version DESC LIMIT $%d OFFSET $%d",
		quotationSelect, where, argPos, argPos+1)
	args = append(args, pg.PerPage, pg.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var quotations []Quotation
	for rows.Next() {
		var q Quotation
		if err := rows.Scan(&q.ID, &q.Number, &q.ProjectID, &q.ProjectCode, &q.CustomerID,
			&q.Version, &q.Status, &q.ValidUntil, &q.Notes, &q.TaxRate,
			&q.Subtotal, &q.TaxAmount, &q.Total, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, 0, err
		}
		quotations = append(quotations, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range quotations {
		lines, err := r.lines(ctx, r.pool, quotations[i].ID)
		if err != nil {
			return nil, 0, err
		}
		quotations[i].Lines = lines
	}
	return quotations, total, nil
}

// CreateWithNumber allocates a yearly quotation number and inserts the header
// plus lines in one transaction.
func (r *repository) CreateWithNumber(ctx context.Context, q Quotation, issuedAt time.Time) (*Quotation, error) {
	var created *Quotation
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		seq, err := shared.NextDocumentSeq(ctx, tx, "QT", issuedAt.Format("2006"))
		if err != nil {
			return err
		}
		number := FormatNumber(issuedAt, seq)

		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO quotations (number, project_id, customer_id, version, status, valid_until, notes,
			                        tax_rate, subtotal, tax_amount, total, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
			RETURNING id`,
			number, q.ProjectID, q.CustomerID, q.Version, string(StatusDraft), q.ValidUntil, q.Notes,
			q.TaxRate, q.Subtotal, q.TaxAmount, q.Total, q.CreatedBy,
		).Scan(&id); err != nil {
			return err
		}

		if err := insertLines(ctx, tx, id, q.Lines); err != nil {
			return err
		}

		row, err := r.fetch(ctx, tx, `WHERE q.id = $1`, id)
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

func insertLines(ctx context.Context, tx pgx.Tx, quotationID int64, lines []Line) error {
	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO quotation_lines (quotation_id, product_id, description, qty, unit_price, discount_pct, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			quotationID, l.ProductID, l.Description, l.Qty, l.UnitPrice, l.DiscountPct, l.LineTotal); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceLines rewrites the lines and header amounts of a draft.
func (r *repository) ReplaceLines(ctx context.Context, q Quotation) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE quotations
			SET valid_until = $2, notes = $3, tax_rate = $4, subtotal = $5, tax_amount = $6, total = $7, updated_at = NOW()
			WHERE id = $1`,
			q.ID, q.ValidUntil, q.Notes, q.TaxRate, q.Subtotal, q.TaxAmount, q.Total)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, q.ID)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id = $1`, q.ID); err != nil {
			return err
		}
		return insertLines(ctx, tx, q.ID, q.Lines)
	})
}

func (r *repository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quotations SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) NextVersion(ctx context.Context, projectID int64) (int, error) {
	var maxVersion int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM quotations WHERE project_id = $1`, projectID,
	).Scan(&maxVersion)
	return maxVersion + 1, err
}
