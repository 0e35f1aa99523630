package purchase

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

// Repository provides purchase request and order persistence.
type Repository interface {
	GetRequest(ctx context.Context, id int64) (*Request, error)
	ListRequests(ctx context.Context, req RequestListRequest) ([]Request, int, error)
	CreateRequest(ctx context.Context, pr Request, at time.Time) (*Request, error)
	ReplaceRequestLines(ctx context.Context, pr Request) error
	SetRequestStatus(ctx context.Context, id int64, status RequestStatus) error

	CreateRFQs(ctx context.Context, requestID int64, vendorIDs []int64, note string, at time.Time) ([]RFQ, error)
	ListRFQs(ctx context.Context, requestID int64) ([]RFQ, error)

	GetOrder(ctx context.Context, id int64) (*Order, error)
	ListOrders(ctx context.Context, req OrderListRequest) ([]Order, int, error)
	CreateOrder(ctx context.Context, po Order, at time.Time) (*Order, error)
	SetOrderStatus(ctx context.Context, id int64, status OrderStatus) error
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

const requestSelect = `
	SELECT pr.id, pr.number, pr.project_id, pr.requester_id, pr.status, pr.notes,
	       pr.created_at, pr.updated_at
	FROM purchase_requests pr`

func (r *repository) fetchRequest(ctx context.Context, q querier, where string, args ...any) (*Request, error) {
	var pr Request
	err := q.QueryRow(ctx, requestSelect+" "+where, args...).Scan(
		&pr.ID, &pr.Number, &pr.ProjectID, &pr.RequesterID, &pr.Status, &pr.Notes,
		&pr.CreatedAt, &pr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: purchase request", shared.ErrNotFound)
		}
		return nil, err
	}

	lines, err := r.requestLines(ctx, q, pr.ID)
	if err != nil {
		return nil, err
	}
	pr.Lines = lines
	return &pr, nil
}

func (r *repository) requestLines(ctx context.Context, q querier, requestID int64) ([]RequestLine, error) {
	rows, err := q.Query(ctx, `
		SELECT l.id, l.request_id, l.product_id, p.sku, l.qty, l.est_unit_cost, COALESCE(l.note, '')
		FROM purchase_request_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.request_id = $1
		ORDER BY l.id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []RequestLine
	for rows.Next() {
		var l RequestLine
		if err := rows.Scan(&l.ID, &l.RequestID, &l.ProductID, &l.ProductSKU, &l.Qty, &l.EstUnitCost, &l.Note); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) GetRequest(ctx context.Context, id int64) (*Request, error) {
	return r.fetchRequest(ctx, r.pool, `WHERE pr.id = $1`, id)
}

func (r *repository) ListRequests(ctx context.Context, req RequestListRequest) ([]Request, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.Status != "" {
		where += fmt.Sprintf(" AND pr.status = $%d", argPos)
		args = append(args, string(req.Status))
		argPos++
	}
	if req.RequesterID != 0 {
		where += fmt.Sprintf(" AND pr.requester_id = $%d", argPos)
		args = append(args, req.RequesterID)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM purchase_requests pr "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	p := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf("%s %s ORDER BY pr.number DESC LIMIT $%d OFFSET $%d", requestSelect, where, argPos, argPos+1)
	args = append(args, p.PerPage, p.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		var pr Request
		if err := rows.Scan(&pr.ID, &pr.Number, &pr.ProjectID, &pr.RequesterID, &pr.Status, &pr.Notes,
			&pr.CreatedAt, &pr.UpdatedAt); err != nil {
			return nil, 0, err
		}
		requests = append(requests, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range requests {
		lines, err := r.requestLines(ctx, r.pool, requests[i].ID)
		if err != nil {
			return nil, 0, err
		}
		requests[i].Lines = lines
	}
	return requests, total, nil
}

func (r *repository) CreateRequest(ctx context.Context, pr Request, at time.Time) (*Request, error) {
	var created *Request
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		seq, err := shared.NextDocumentSeq(ctx, tx, "PR", at.Format("2006"))
		if err != nil {
			return err
		}
		number := FormatRequestNumber(at, seq)

		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO purchase_requests (number, project_id, requester_id, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			RETURNING id`,
			number, pr.ProjectID, pr.RequesterID, string(RequestDraft), pr.Notes,
		).Scan(&id); err != nil {
			return err
		}

		if err := insertRequestLines(ctx, tx, id, pr.Lines); err != nil {
			return err
		}

		row, err := r.fetchRequest(ctx, tx, `WHERE pr.id = $1`, id)
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

func insertRequestLines(ctx context.Context, tx pgx.Tx, requestID int64, lines []RequestLine) error {
	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO purchase_request_lines (request_id, product_id, qty, est_unit_cost, note)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
			requestID, l.ProductID, l.Qty, l.EstUnitCost, l.Note); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) ReplaceRequestLines(ctx context.Context, pr Request) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE purchase_requests SET notes = $2, updated_at = NOW() WHERE id = $1`,
			pr.ID, pr.Notes)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: purchase request %d", shared.ErrNotFound, pr.ID)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM purchase_request_lines WHERE request_id = $1`, pr.ID); err != nil {
			return err
		}
		return insertRequestLines(ctx, tx, pr.ID, pr.Lines)
	})
}

func (r *repository) SetRequestStatus(ctx context.Context, id int64, status RequestStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE purchase_requests SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase request %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) CreateRFQs(ctx context.Context, requestID int64, vendorIDs []int64, note string, at time.Time) ([]RFQ, error) {
	var ids []int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, vendorID := range vendorIDs {
			seq, err := shared.NextDocumentSeq(ctx, tx, "RFQ", at.Format("2006"))
			if err != nil {
				return err
			}
			var id int64
			if err := tx.QueryRow(ctx, `
				INSERT INTO purchase_rfqs (number, request_id, vendor_id, status, sent_at, note)
				VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
				RETURNING id`,
				FormatRFQNumber(at, seq), requestID, vendorID, string(RFQSent), at, note,
			).Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	all, err := r.ListRFQs(ctx, requestID)
	if err != nil {
		return nil, err
	}
	created := make([]RFQ, 0, len(ids))
	for _, rfq := range all {
		for _, id := range ids {
			if rfq.ID == id {
				created = append(created, rfq)
			}
		}
	}
	return created, nil
}

func (r *repository) ListRFQs(ctx context.Context, requestID int64) ([]RFQ, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT q.id, q.number, q.request_id, q.vendor_id, c.name, q.status, q.sent_at, COALESCE(q.note, '')
		FROM purchase_rfqs q
		JOIN companies c ON c.id = q.vendor_id
		WHERE q.request_id = $1
		ORDER BY q.id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rfqs []RFQ
	for rows.Next() {
		var rfq RFQ
		if err := rows.Scan(&rfq.ID, &rfq.Number, &rfq.RequestID, &rfq.VendorID, &rfq.VendorName,
			&rfq.Status, &rfq.SentAt, &rfq.Note); err != nil {
			return nil, err
		}
		rfqs = append(rfqs, rfq)
	}
	return rfqs, rows.Err()
}

const orderSelect = `
	SELECT po.id, po.number, po.request_id, po.vendor_id, c.name, po.status,
	       po.order_date, po.expected_at, po.total, po.notes,
	       po.created_by, po.created_at, po.updated_at
	FROM purchase_orders po
	JOIN companies c ON c.id = po.vendor_id`

func (r *repository) fetchOrder(ctx context.Context, q querier, where string, args ...any) (*Order, error) {
	var po Order
	err := q.QueryRow(ctx, orderSelect+" "+where, args...).Scan(
		&po.ID, &po.Number, &po.RequestID, &po.VendorID, &po.VendorName, &po.Status,
		&po.OrderDate, &po.ExpectedAt, &po.Total, &po.Notes,
		&po.CreatedBy, &po.CreatedAt, &po.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: purchase order", shared.ErrNotFound)
		}
		return nil, err
	}

	lines, err := r.orderLines(ctx, q, po.ID)
	if err != nil {
		return nil, err
	}
	po.Lines = lines
	return &po, nil
}

func (r *repository) orderLines(ctx context.Context, q querier, orderID int64) ([]OrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT l.id, l.order_id, l.product_id, p.sku, l.qty, l.unit_cost, l.line_total
		FROM purchase_order_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.order_id = $1
		ORDER BY l.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductSKU, &l.Qty, &l.UnitCost, &l.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return r.fetchOrder(ctx, r.pool, `WHERE po.id = $1`, id)
}

func (r *repository) ListOrders(ctx context.Context, req OrderListRequest) ([]Order, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.Status != "" {
		where += fmt.Sprintf(" AND po.status = $%d", argPos)
		args = append(args, string(req.Status))
		argPos++
	}
	if req.VendorID != 0 {
		where += fmt.Sprintf(" AND po.vendor_id = $%d", argPos)
		args = append(args, req.VendorID)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM purchase_orders po "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	p := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf("%s %s ORDER BY po.number DESC LIMIT $%d OFFSET $%d", orderSelect, where, argPos, argPos+1)
	args = append(args, p.PerPage, p.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var po Order
		if err := rows.Scan(&po.ID, &po.Number, &po.RequestID, &po.VendorID, &po.VendorName, &po.Status,
			&po.OrderDate, &po.ExpectedAt, &po.Total, &po.Notes,
			&po.CreatedBy, &po.CreatedAt, &po.UpdatedAt); err != nil {
			return nil, 0, err
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range orders {
		lines, err := r.orderLines(ctx, r.pool, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
		orders[i].Lines = lines
	}
	return orders, total, nil
}

func (r *repository) CreateOrder(ctx context.Context, po Order, at time.Time) (*Order, error) {
	var created *Order
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		seq, err := shared.NextDocumentSeq(ctx, tx, "PO", at.Format("2006"))
		if err != nil {
			return err
		}
		number := FormatOrderNumber(at, seq)

		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO purchase_orders (number, request_id, vendor_id, status, order_date, expected_at,
			                             total, notes, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			RETURNING id`,
			number, po.RequestID, po.VendorID, string(OrderDraft), po.OrderDate, po.ExpectedAt,
			po.Total, po.Notes, po.CreatedBy,
		).Scan(&id); err != nil {
			return err
		}

		for _, l := range po.Lines {
			if _, err := tx.Exec(ctx, `
				INSERT INTO purchase_order_lines (order_id, product_id, qty, unit_cost, line_total)
				VALUES ($1, $2, $3, $4, $5)`,
				id, l.ProductID, l.Qty, l.UnitCost, l.LineTotal); err != nil {
				return err
			}
		}

		row, err := r.fetchOrder(ctx, tx, `WHERE po.id = $1`, id)
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

func (r *repository) SetOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE purchase_orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase order %d", shared.ErrNotFound, id)
	}
	return nil
}
