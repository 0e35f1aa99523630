package shared

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type execRecorder struct {
	pgx.Tx
	sql  string
	args []any
}

func (r *execRecorder) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	r.args = args
	return pgconn.CommandTag{}, nil
}

func TestLockProjectKeysFullID(t *testing.T) {
	rec := &execRecorder{}

	// an ID above 2^32 must not alias with its low 32 bits.
	id := int64(5)<<32 | 1
	require.NoError(t, LockProject(context.Background(), rec, id))
	require.Contains(t, rec.sql, "pg_advisory_xact_lock($1)")
	require.Equal(t, []any{id}, rec.args)
}
