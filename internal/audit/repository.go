package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Repository reads and prunes the audit trail. Writes go through
// shared.AuditLogger; there is deliberately no update path.
type Repository interface {
	List(ctx context.Context, req ListRequest) ([]Entry, int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a postgres backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Entry, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.ActorID != 0 {
		where += fmt.Sprintf(" AND a.actor_id = $%d", argPos)
		args = append(args, req.ActorID)
		argPos++
	}
	if req.Entity != "" {
		where += fmt.Sprintf(" AND a.entity = $%d", argPos)
		args = append(args, req.Entity)
		argPos++
	}
	if req.EntityID != "" {
		where += fmt.Sprintf(" AND a.entity_id = $%d", argPos)
		args = append(args, req.EntityID)
		argPos++
	}
	if req.Action != "" {
		where += fmt.Sprintf(" AND a.action = $%d", argPos)
		args = append(args, req.Action)
		argPos++
	}
	if !req.From.IsZero() {
		where += fmt.Sprintf(" AND a.occurred_at >= $%d", argPos)
		args = append(args, req.From)
		argPos++
	}
	if !req.To.IsZero() {
		where += fmt.Sprintf(" AND a.occurred_at < $%d", argPos)
		args = append(args, req.To)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs a "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	p := shared.NewPagination(req.Page, req.PerPage, total)
	query := fmt.Sprintf(`
		SELECT a.id, a.actor_id, COALESCE(u.full_name, ''), a.action, a.entity, a.entity_id, a.meta, a.occurred_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.actor_id
		%s
		ORDER BY a.occurred_at DESC, a.id DESC
		LIMIT $%d OFFSET $%d`, where, argPos, argPos+1)
	args = append(args, p.PerPage, p.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.Entity, &e.EntityID, &e.Meta, &e.At); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
