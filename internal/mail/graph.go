package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// GraphClient talks to the Microsoft Graph API. Transient failures (429 and
// 5xx) are retried with exponential backoff.
type GraphClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewGraphClient builds a client; a nil httpClient falls back to a default
// with a sane timeout.
func NewGraphClient(httpClient *http.Client) *GraphClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GraphClient{httpClient: httpClient, baseURL: graphBaseURL}
}

type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

func recipients(addrs []string) []graphRecipient {
	out := make([]graphRecipient, 0, len(addrs))
	for _, a := range addrs {
		var r graphRecipient
		r.EmailAddress.Address = a
		out = append(out, r)
	}
	return out
}

type graphSendRequest struct {
	Message struct {
		Subject string `json:"subject"`
		Body    struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
		ToRecipients []graphRecipient `json:"toRecipients"`
		CcRecipients []graphRecipient `json:"ccRecipients,omitempty"`
	} `json:"message"`
	SaveToSentItems bool `json:"saveToSentItems"`
}

// transientError marks a response worth retrying.
type transientError struct {
	status int
}

func (e *transientError) Error() string {
	return fmt.Sprintf("graph: transient status %d", e.status)
}

// SendMail delivers a message through POST /me/sendMail using the given
// access token.
func (c *GraphClient) SendMail(ctx context.Context, accessToken string, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("graph: message has no recipients")
	}

	var req graphSendRequest
	req.Message.Subject = msg.Subject
	req.Message.Body.ContentType = "HTML"
	req.Message.Body.Content = msg.Body
	req.Message.ToRecipients = recipients(msg.To)
	req.Message.CcRecipients = recipients(msg.Cc)
	req.SaveToSentItems = true

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/me/sendMail", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusAccepted:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return &transientError{status: resp.StatusCode}
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return backoff.Permanent(fmt.Errorf("graph: sendMail status %d: %s", resp.StatusCode, body))
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	return backoff.Retry(operation, policy)
}

// Profile is the subset of /me used when connecting a mailbox.
type Profile struct {
	Mail        string `json:"mail"`
	DisplayName string `json:"displayName"`
	Principal   string `json:"userPrincipalName"`
}

// Me fetches the signed-in user's profile.
func (c *GraphClient) Me(ctx context.Context, accessToken string) (*Profile, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/me", nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("graph: me status %d: %s", resp.StatusCode, body)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}
	if p.Mail == "" {
		p.Mail = p.Principal
	}
	return &p, nil
}
