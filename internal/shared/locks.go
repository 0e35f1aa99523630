package shared

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// LockProject acquires a transaction-scoped advisory lock keyed by the full
// 64-bit project ID. Invoice creation takes this lock so that
// delivered-vs-invoiced quantity checks and the insert happen without
// interleaving writers on the same project. The lock is released automatically
// at commit or rollback.
func LockProject(ctx context.Context, tx pgx.Tx, projectID int64) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, projectID)
	return err
}
