package mail

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

type auditStub struct{}

func (auditStub) Record(ctx context.Context, log shared.AuditLog) error { return nil }

type fakeRepository struct {
	rows []tokenRow

	updateCalls   int
	updatedAccess []byte
	updatedExpiry time.Time
}

func (f *fakeRepository) Get(ctx context.Context, id int64) (*Account, error) {
	for i := range f.rows {
		if f.rows[i].Account.ID == id {
			a := f.rows[i].Account
			return &a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeRepository) GetByMailbox(ctx context.Context, mailbox string) (*tokenRow, error) {
	for i := range f.rows {
		if f.rows[i].Account.Mailbox == mailbox {
			row := f.rows[i]
			return &row, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeRepository) List(ctx context.Context) ([]Account, error) {
	var out []Account
	for i := range f.rows {
		out = append(out, f.rows[i].Account)
	}
	return out, nil
}

func (f *fakeRepository) ExpiringBefore(ctx context.Context, cutoff time.Time) ([]tokenRow, error) {
	var out []tokenRow
	for i := range f.rows {
		if f.rows[i].Account.TokenExpiry.Before(cutoff) {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

func (f *fakeRepository) Upsert(ctx context.Context, row tokenRow) (int64, error) {
	row.Account.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, row)
	return row.Account.ID, nil
}

func (f *fakeRepository) UpdateTokens(ctx context.Context, id int64, accessSealed, refreshSealed []byte, expiry time.Time) error {
	f.updateCalls++
	f.updatedAccess = accessSealed
	f.updatedExpiry = expiry
	for i := range f.rows {
		if f.rows[i].Account.ID == id {
			f.rows[i].AccessSealed = accessSealed
			f.rows[i].RefreshSealed = refreshSealed
			f.rows[i].Account.TokenExpiry = expiry
		}
	}
	return nil
}

func (f *fakeRepository) Delete(ctx context.Context, id int64) error { return nil }

func (f *fakeRepository) DefaultAccount(ctx context.Context) (*tokenRow, error) {
	if len(f.rows) == 0 {
		return nil, shared.ErrNotFound
	}
	row := f.rows[0]
	return &row, nil
}

// newTokenFixture wires a service against a fake repository and an httptest
// token endpoint standing in for the identity provider.
func newTokenFixture(t *testing.T) (*Service, *fakeRepository, *TokenCipher, *int) {
	t.Helper()

	tokenCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"renewed-access","refresh_token":"renewed-refresh","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(server.Close)

	cipher, err := NewTokenCipher("test-token-key")
	require.NoError(t, err)

	repo := &fakeRepository{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(logger, repo, cipher, NewGraphClient(nil), nil, auditStub{},
		"client-id", "client-secret", "tenant-id", "https://erp.example/callback")
	svc.oauth.Endpoint = oauth2.Endpoint{TokenURL: server.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	now := time.Now()
	svc.now = func() time.Time { return now }
	return svc, repo, cipher, &tokenCalls
}

func seedAccount(t *testing.T, repo *fakeRepository, cipher *TokenCipher, expiry time.Time) {
	t.Helper()
	access, err := cipher.Seal([]byte("stored-access"))
	require.NoError(t, err)
	refresh, err := cipher.Seal([]byte("stored-refresh"))
	require.NoError(t, err)
	repo.rows = append(repo.rows, tokenRow{
		Account:       Account{ID: 1, Mailbox: "erp@workdesk.example", TokenExpiry: expiry},
		AccessSealed:  access,
		RefreshSealed: refresh,
	})
}

func TestRefreshExpiringExchangesValidTokens(t *testing.T) {
	svc, repo, cipher, tokenCalls := newTokenFixture(t)
	// expires in one hour: still valid for sending, but inside the window.
	seedAccount(t, repo, cipher, svc.now().Add(time.Hour))

	refreshed, err := svc.RefreshExpiring(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, refreshed)
	require.Equal(t, 1, *tokenCalls)
	require.Equal(t, 1, repo.updateCalls)

	access, err := cipher.Open(repo.updatedAccess)
	require.NoError(t, err)
	require.Equal(t, "renewed-access", string(access))
	require.True(t, repo.updatedExpiry.After(svc.now()))
}

func TestRefreshExpiringSkipsAccountsOutsideWindow(t *testing.T) {
	svc, repo, cipher, tokenCalls := newTokenFixture(t)
	seedAccount(t, repo, cipher, svc.now().Add(72*time.Hour))

	refreshed, err := svc.RefreshExpiring(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Zero(t, refreshed)
	require.Zero(t, *tokenCalls)
	require.Zero(t, repo.updateCalls)
}

func TestAccessTokenShortCircuitsWhileFresh(t *testing.T) {
	svc, repo, cipher, tokenCalls := newTokenFixture(t)
	seedAccount(t, repo, cipher, svc.now().Add(time.Hour))

	token, err := svc.accessToken(context.Background(), &repo.rows[0])
	require.NoError(t, err)
	require.Equal(t, "stored-access", token)
	require.Zero(t, *tokenCalls)
	require.Zero(t, repo.updateCalls)
}

func TestAccessTokenRefreshesStaleToken(t *testing.T) {
	svc, repo, cipher, tokenCalls := newTokenFixture(t)
	seedAccount(t, repo, cipher, svc.now().Add(30*time.Second))

	token, err := svc.accessToken(context.Background(), &repo.rows[0])
	require.NoError(t, err)
	require.Equal(t, "renewed-access", token)
	require.Equal(t, 1, *tokenCalls)
	require.Equal(t, 1, repo.updateCalls)
}
