package mail

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

var graphScopes = []string{
	"offline_access",
	"https://graph.microsoft.com/User.Read",
	"https://graph.microsoft.com/Mail.Send",
}

const (
	stateKeyPrefix = "mail:oauth:state:"
	stateTTL       = 10 * time.Minute
)

// Service runs the Microsoft OAuth connect flow and sends mail through
// Graph. OAuth state nonces live in redis; tokens are sealed at rest.
type Service struct {
	logger *slog.Logger
	repo   Repository
	cipher *TokenCipher
	graph  *GraphClient
	oauth  *oauth2.Config
	redis  *redis.Client
	audit  shared.AuditRecorder
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, repo Repository, cipher *TokenCipher, graph *GraphClient,
	rdb *redis.Client, audit shared.AuditRecorder,
	clientID, clientSecret, tenantID, redirectURL string) *Service {
	return &Service{
		logger: logger,
		repo:   repo,
		cipher: cipher,
		graph:  graph,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     microsoft.AzureADEndpoint(tenantID),
			RedirectURL:  redirectURL,
			Scopes:       graphScopes,
		},
		redis: rdb,
		audit: audit,
		now:   time.Now,
	}
}

// ConnectURL issues a state nonce and returns the consent URL to redirect
// the administrator to.
func (s *Service) ConnectURL(ctx context.Context, userID int64) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := hex.EncodeToString(buf)

	if err := s.redis.Set(ctx, stateKeyPrefix+state, userID, stateTTL).Err(); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// HandleCallback completes the consent flow: the state nonce must match a
// pending one, the code is exchanged, and the mailbox is stored with sealed
// tokens.
func (s *Service) HandleCallback(ctx context.Context, state, code string) (*Account, error) {
	userIDRaw, err := s.redis.GetDel(ctx, stateKeyPrefix+state).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: unknown or expired oauth state", shared.ErrForbidden)
	}
	userID, _ := strconv.ParseInt(userIDRaw, 10, 64)

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange oauth code: %w", err)
	}

	profile, err := s.graph.Me(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch mailbox profile: %w", err)
	}

	accessSealed, err := s.cipher.Seal([]byte(token.AccessToken))
	if err != nil {
		return nil, err
	}
	refreshSealed, err := s.cipher.Seal([]byte(token.RefreshToken))
	if err != nil {
		return nil, err
	}

	row := tokenRow{
		Account: Account{
			Mailbox:     profile.Mail,
			DisplayName: profile.DisplayName,
			ConnectedBy: userID,
			TokenExpiry: token.Expiry,
		},
		AccessSealed:  accessSealed,
		RefreshSealed: refreshSealed,
	}
	id, err := s.repo.Upsert(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("store mail account: %w", err)
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  userID,
		Action:   "mail.connect",
		Entity:   "mail_account",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"mailbox": profile.Mail},
	})
	return s.repo.Get(ctx, id)
}

// accessToken returns a live access token for the row, refreshing and
// re-sealing if the stored one is stale.
func (s *Service) accessToken(ctx context.Context, row *tokenRow) (string, error) {
	access, err := s.cipher.Open(row.AccessSealed)
	if err != nil {
		return "", fmt.Errorf("unseal access token: %w", err)
	}
	if s.now().Before(row.Account.TokenExpiry.Add(-2 * time.Minute)) {
		return string(access), nil
	}
	return s.refreshTokens(ctx, row)
}

// refreshTokens exchanges the stored refresh token, re-seals the result and
// persists it, regardless of how fresh the current access token is.
func (s *Service) refreshTokens(ctx context.Context, row *tokenRow) (string, error) {
	refresh, err := s.cipher.Open(row.RefreshSealed)
	if err != nil {
		return "", fmt.Errorf("unseal refresh token: %w", err)
	}

	src := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: string(refresh)})
	token, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("refresh mail token: %w", err)
	}

	accessSealed, err := s.cipher.Seal([]byte(token.AccessToken))
	if err != nil {
		return "", err
	}
	newRefresh := token.RefreshToken
	if newRefresh == "" {
		newRefresh = string(refresh)
	}
	refreshSealed, err := s.cipher.Seal([]byte(newRefresh))
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateTokens(ctx, row.Account.ID, accessSealed, refreshSealed, token.Expiry); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// Send delivers a message from the default connected mailbox.
func (s *Service) Send(ctx context.Context, msg Message) error {
	row, err := s.repo.DefaultAccount(ctx)
	if err != nil {
		return fmt.Errorf("no connected mailbox: %w", err)
	}
	token, err := s.accessToken(ctx, row)
	if err != nil {
		return err
	}
	if err := s.graph.SendMail(ctx, token, msg); err != nil {
		return fmt.Errorf("send via %s: %w", row.Account.Mailbox, err)
	}
	s.logger.Info("mail sent",
		slog.String("mailbox", row.Account.Mailbox),
		slog.String("subject", msg.Subject),
		slog.Int("recipients", len(msg.To)))
	return nil
}

// RefreshExpiring proactively refreshes tokens that expire within the
// window. Called from the scheduled token refresh job.
func (s *Service) RefreshExpiring(ctx context.Context, window time.Duration) (int, error) {
	rows, err := s.repo.ExpiringBefore(ctx, s.now().Add(window))
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for i := range rows {
		// force the exchange: the job exists to renew tokens that are still
		// valid but expiring soon, which accessToken would leave untouched.
		if _, err := s.refreshTokens(ctx, &rows[i]); err != nil {
			s.logger.Warn("token refresh failed",
				slog.String("mailbox", rows[i].Account.Mailbox),
				slog.Any("error", err))
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// Accounts lists connected mailboxes.
func (s *Service) Accounts(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// Disconnect removes a mailbox and its tokens.
func (s *Service) Disconnect(ctx context.Context, id int64, actorID int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "mail.disconnect",
		Entity:   "mail_account",
		EntityID: strconv.FormatInt(id, 10),
	})
	return nil
}
