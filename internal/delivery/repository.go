package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Repository provides delivery persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (*Record, error)
	List(ctx context.Context, req ListRequest) ([]Record, int, error)
	Create(ctx context.Context, rec Record) (int64, error)
	// NetDelivered returns delivered minus returned for one product on a
	// project.
	NetDelivered(ctx context.Context, projectID, productID int64) (float64, error)
	Balances(ctx context.Context, projectID int64) ([]Balance, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a postgres backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const recordSelect = `
	SELECT d.id, d.project_id, p.code, d.product_id, pr.sku, d.direction, d.qty,
	       d.delivered_at, d.note, d.created_by, d.created_at
	FROM deliveries d
	JOIN projects p ON p.id = d.project_id
	JOIN products pr ON pr.id = d.product_id`

func (r *repository) Get(ctx context.Context, id int64) (*Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx, recordSelect+` WHERE d.id = $1`, id).Scan(
		&rec.ID, &rec.ProjectID, &rec.ProjectCode, &rec.ProductID, &rec.ProductSKU,
		&rec.Direction, &rec.Qty, &rec.DeliveredAt, &rec.Note, &rec.CreatedBy, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: delivery", shared.ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Record, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.ProjectID != 0 {
		where += fmt.Sprintf(" AND d.project_id = $%d", argPos)
		args = append(args, req.ProjectID)
		argPos++
	}
	if req.ProductID != 0 {
		where += fmt.Sprintf(" AND d.product_id = $%d", argPos)
		args = append(args, req.ProductID)
		argPos++
	}
	if req.Direction != "" {
		where += fmt.Sprintf(" AND d.direction = $%d", argPos)
		args = append(args, string(req.Direction))
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM deliveries d "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	p := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf("%s %s ORDER BY d.delivered_at DESC, d.id DESC LIMIT $%d OFFSET $%d",
		recordSelect, where, argPos, argPos+1)
	args = append(args, p.PerPage, p.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ProjectID, &rec.ProjectCode, &rec.ProductID, &rec.ProductSKU,
			&rec.Direction, &rec.Qty, &rec.DeliveredAt, &rec.Note, &rec.CreatedBy, &rec.CreatedAt); err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, rec Record) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO deliveries (project_id, product_id, direction, qty, delivered_at, note, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id`,
		rec.ProjectID, rec.ProductID, string(rec.Direction), rec.Qty, rec.DeliveredAt, rec.Note, rec.CreatedBy,
	).Scan(&id)
	return id, err
}

func (r *repository) NetDelivered(ctx context.Context, projectID, productID int64) (float64, error) {
	var net float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'DELIVERED' THEN qty ELSE -qty END), 0)
		FROM deliveries
		WHERE project_id = $1 AND product_id = $2`,
		projectID, productID,
	).Scan(&net)
	return net, err
}

func (r *repository) Balances(ctx context.Context, projectID int64) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.product_id, pr.sku,
		       COALESCE(SUM(qty) FILTER (WHERE direction = 'DELIVERED'), 0),
		       COALESCE(SUM(qty) FILTER (WHERE direction = 'RETURNED'), 0)
		FROM deliveries d
		JOIN products pr ON pr.id = d.product_id
		WHERE d.project_id = $1
		GROUP BY d.product_id, pr.sku
		ORDER BY pr.sku`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.ProductID, &b.ProductSKU, &b.Delivered, &b.Returned); err != nil {
			return nil, err
		}
		b.Net = b.Delivered - b.Returned
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
