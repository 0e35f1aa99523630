package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// tokenRow carries an account with its sealed token blobs.
type tokenRow struct {
	Account       Account
	AccessSealed  []byte
	RefreshSealed []byte
}

// Repository provides mail account persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (*Account, error)
	GetByMailbox(ctx context.Context, mailbox string) (*tokenRow, error)
	List(ctx context.Context) ([]Account, error)
	// ExpiringBefore returns accounts whose access token expires before the
	// cutoff, with sealed tokens attached.
	ExpiringBefore(ctx context.Context, cutoff time.Time) ([]tokenRow, error)
	Upsert(ctx context.Context, row tokenRow) (int64, error)
	UpdateTokens(ctx context.Context, id int64, accessSealed, refreshSealed []byte, expiry time.Time) error
	Delete(ctx context.Context, id int64) error
	DefaultAccount(ctx context.Context) (*tokenRow, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a postgres backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const accountColumns = `id, mailbox, display_name, connected_by, token_expiry, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM mail_accounts WHERE id = $1`, id,
	).Scan(&a.ID, &a.Mailbox, &a.DisplayName, &a.ConnectedBy, &a.TokenExpiry, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: mail account %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return &a, nil
}

func (r *repository) scanRow(row pgx.Row) (*tokenRow, error) {
	var t tokenRow
	err := row.Scan(&t.Account.ID, &t.Account.Mailbox, &t.Account.DisplayName, &t.Account.ConnectedBy,
		&t.Account.TokenExpiry, &t.Account.CreatedAt, &t.Account.UpdatedAt,
		&t.AccessSealed, &t.RefreshSealed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: mail account", shared.ErrNotFound)
		}
		return nil, err
	}
	return &t, nil
}

const tokenColumns = accountColumns + `, access_token, refresh_token`

func (r *repository) GetByMailbox(ctx context.Context, mailbox string) (*tokenRow, error) {
	return r.scanRow(r.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM mail_accounts WHERE mailbox = $1`, mailbox))
}

func (r *repository) DefaultAccount(ctx context.Context) (*tokenRow, error) {
	return r.scanRow(r.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM mail_accounts ORDER BY id LIMIT 1`))
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM mail_accounts ORDER BY mailbox`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Mailbox, &a.DisplayName, &a.ConnectedBy, &a.TokenExpiry,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) ExpiringBefore(ctx context.Context, cutoff time.Time) ([]tokenRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tokenColumns+` FROM mail_accounts WHERE token_expiry < $1 ORDER BY id`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tokenRow
	for rows.Next() {
		var t tokenRow
		if err := rows.Scan(&t.Account.ID, &t.Account.Mailbox, &t.Account.DisplayName, &t.Account.ConnectedBy,
			&t.Account.TokenExpiry, &t.Account.CreatedAt, &t.Account.UpdatedAt,
			&t.AccessSealed, &t.RefreshSealed); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) Upsert(ctx context.Context, row tokenRow) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO mail_accounts (mailbox, display_name, connected_by, access_token, refresh_token, token_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (mailbox) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			connected_by = EXCLUDED.connected_by,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry,
			updated_at = NOW()
		RETURNING id`,
		row.Account.Mailbox, row.Account.DisplayName, row.Account.ConnectedBy,
		row.AccessSealed, row.RefreshSealed, row.Account.TokenExpiry,
	).Scan(&id)
	return id, err
}

func (r *repository) UpdateTokens(ctx context.Context, id int64, accessSealed, refreshSealed []byte, expiry time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE mail_accounts
		SET access_token = $2, refresh_token = $3, token_expiry = $4, updated_at = NOW()
		WHERE id = $1`,
		id, accessSealed, refreshSealed, expiry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: mail account %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM mail_accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: mail account %d", shared.ErrNotFound, id)
	}
	return nil
}
