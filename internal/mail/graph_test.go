package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestGraphClient(t *testing.T, handler http.Handler) *GraphClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := NewGraphClient(server.Client())
	c.baseURL = server.URL
	return c
}

func TestSendMail(t *testing.T) {
	var got graphSendRequest
	c := newTestGraphClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/sendMail", r.URL.Path)
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))

	err := c.SendMail(context.Background(), "token-1", Message{
		To:      []string{"customer@example.com"},
		Subject: "Quotation QT-2026-0001",
		Body:    "<p>hello</p>",
	})
	require.NoError(t, err)
	require.Equal(t, "Quotation QT-2026-0001", got.Message.Subject)
	require.Equal(t, "HTML", got.Message.Body.ContentType)
	require.Len(t, got.Message.ToRecipients, 1)
	require.Equal(t, "customer@example.com", got.Message.ToRecipients[0].EmailAddress.Address)
	require.True(t, got.SaveToSentItems)
}

func TestSendMailRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestGraphClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	err := c.SendMail(context.Background(), "token", Message{To: []string{"a@b.c"}, Subject: "s"})
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
}

func TestSendMailDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestGraphClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"code":"InvalidRecipients"}}`, http.StatusBadRequest)
	}))

	err := c.SendMail(context.Background(), "token", Message{To: []string{"a@b.c"}, Subject: "s"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 400")
	require.Equal(t, int32(1), calls.Load())
}

func TestSendMailRequiresRecipients(t *testing.T) {
	c := NewGraphClient(nil)
	err := c.SendMail(context.Background(), "token", Message{Subject: "s"})
	require.Error(t, err)
}

func TestMe(t *testing.T) {
	c := newTestGraphClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me", r.URL.Path)
		require.Equal(t, "Bearer token-2", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"displayName":       "Finance Desk",
			"userPrincipalName": "finance@workdesk.example",
		})
	}))

	p, err := c.Me(context.Background(), "token-2")
	require.NoError(t, err)
	require.Equal(t, "Finance Desk", p.DisplayName)
	// mail falls back to the principal name when unset.
	require.Equal(t, "finance@workdesk.example", p.Mail)
}

func TestMeUnauthorized(t *testing.T) {
	c := newTestGraphClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))

	_, err := c.Me(context.Background(), "stale")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 401")
}
