package approval

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

// Repository provides persistence for approval chains.
type Repository interface {
	Get(ctx context.Context, id int64) (*Request, error)
	FindOpen(ctx context.Context, entityKind string, entityID int64) (*Request, error)
	List(ctx context.Context, req ListRequest) ([]Request, int, error)
	Create(ctx context.Context, r Request) (int64, error)
	// Act records a decision on a step and updates the request head in one
	// transaction, returning the refreshed request.
	Act(ctx context.Context, requestID int64, level int, decision Status, note string, nextLevel int, requestStatus Status) (*Request, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a postgres backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, id int64) (*Request, error) {
	return r.fetch(ctx, r.pool, `WHERE ar.id = $1`, id)
}

func (r *repository) FindOpen(ctx context.Context, entityKind string, entityID int64) (*Request, error) {
	return r.fetch(ctx, r.pool, `WHERE ar.entity_kind = $1 AND ar.entity_id = $2 AND ar.status = 'PENDING'`, entityKind, entityID)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *repository) fetch(ctx context.Context, q querier, where string, args ...any) (*Request, error) {
	var req Request
	err := q.QueryRow(ctx, `
		SELECT ar.id, ar.entity_kind, ar.entity_id, ar.status, ar.current_level,
		       ar.requested_by, ar.created_at, ar.updated_at
		FROM approval_requests ar `+where, args...).Scan(
		&req.ID, &req.EntityKind, &req.EntityID, &req.Status, &req.CurrentLevel,
		&req.RequestedBy, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: approval request", shared.ErrNotFound)
		}
		return nil, err
	}

	steps, err := r.steps(ctx, q, req.ID)
	if err != nil {
		return nil, err
	}
	req.Steps = steps
	return &req, nil
}

func (r *repository) steps(ctx context.Context, q querier, requestID int64) ([]Step, error) {
	rows, err := q.Query(ctx, `
		SELECT s.id, s.request_id, s.level, s.approver_id, u.full_name, s.status, COALESCE(s.note, ''), s.acted_at
		FROM approval_steps s
		JOIN users u ON u.id = s.approver_id
		WHERE s.request_id = $1
		ORDER BY s.level`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var s Step
		if err := rows.Scan(&s.ID, &s.RequestID, &s.Level, &s.ApproverID, &s.ApproverName,
			&s.Status, &s.Note, &s.ActedAt); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Request, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.EntityKind != "" {
		where += fmt.Sprintf(" AND ar.entity_kind = $%d", argPos)
		args = append(args, req.EntityKind)
		argPos++
	}
	if req.Status != "" {
		where += fmt.Sprintf(" AND ar.status = $%d", argPos)
		args = append(args, string(req.Status))
		argPos++
	}
	if req.ApproverID != 0 {
		// Inbox view: requests waiting on this approver at the current level.
		where += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM approval_steps s
			WHERE s.request_id = ar.id AND s.approver_id = $%d
			  AND s.level = ar.current_level AND s.status = 'PENDING')`, argPos)
		args = append(args, req.ApproverID)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM approval_requests ar "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	p := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf(`
		SELECT ar.id, ar.entity_kind, ar.entity_id, ar.status, ar.current_level,
		       ar.requested_by, ar.created_at, ar.updated_at
		FROM approval_requests ar %s
		ORDER BY ar.created_at DESC
		LIMIT $%d OFFSET $%d`, where, argPos, argPos+1)
	args = append(args, p.PerPage, p.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		var rq Request
		if err := rows.Scan(&rq.ID, &rq.EntityKind, &rq.EntityID, &rq.Status, &rq.CurrentLevel,
			&rq.RequestedBy, &rq.CreatedAt, &rq.UpdatedAt); err != nil {
			return nil, 0, err
		}
		requests = append(requests, rq)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range requests {
		steps, err := r.steps(ctx, r.pool, requests[i].ID)
		if err != nil {
			return nil, 0, err
		}
		requests[i].Steps = steps
	}
	return requests, total, nil
}

func (r *repository) Create(ctx context.Context, req Request) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO approval_requests (entity_kind, entity_id, status, current_level, requested_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			RETURNING id`,
			req.EntityKind, req.EntityID, string(StatusPending), 1, req.RequestedBy,
		).Scan(&id); err != nil {
			return err
		}
		for _, s := range req.Steps {
			if _, err := tx.Exec(ctx, `
				INSERT INTO approval_steps (request_id, level, approver_id, status)
				VALUES ($1, $2, $3, $4)`,
				id, s.Level, s.ApproverID, string(StatusPending)); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

func (r *repository) Act(ctx context.Context, requestID int64, level int, decision Status, note string, nextLevel int, requestStatus Status) (*Request, error) {
	var out *Request
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now()
		tag, err := tx.Exec(ctx, `
			UPDATE approval_steps SET status = $3, note = NULLIF($4, ''), acted_at = $5
			WHERE request_id = $1 AND level = $2 AND status = 'PENDING'`,
			requestID, level, string(decision), note, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: step already decided", shared.ErrInvalidState)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE approval_requests SET status = $2, current_level = $3, updated_at = $4
			WHERE id = $1`,
			requestID, string(requestStatus), nextLevel, now); err != nil {
			return err
		}

		req, err := r.fetch(ctx, tx, `WHERE ar.id = $1`, requestID)
		if err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
