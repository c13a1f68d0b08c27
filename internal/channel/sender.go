// Package channel delivers outbound replies through the chat channel
// gateway. The gateway itself (account linking, webhooks) is a separate
// service; this is only the send contract.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chatorder/platform/internal/store"
)

// ErrMissingCredentials marks a tenant that cannot send: a fatal
// configuration error for that conversation, not a transient failure.
var ErrMissingCredentials = errors.New("channel: tenant has no channel token")

// Sender delivers one outbound text to a channel recipient.
type Sender interface {
	Send(ctx context.Context, tenant *store.Tenant, recipientID, text string) error
}

// HTTPSender posts messages to the channel gateway, authenticating with the
// tenant's own channel token.
type HTTPSender struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPSender(baseURL string) *HTTPSender {
	return &HTTPSender{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type sendReq struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}

func (s *HTTPSender) Send(ctx context.Context, tenant *store.Tenant, recipientID, text string) error {
	if tenant.ChannelToken == "" {
		return fmt.Errorf("%w: tenant %s", ErrMissingCredentials, tenant.TenantID)
	}

	body, err := json.Marshal(sendReq{RecipientID: recipientID, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tenant.ChannelToken)

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("channel: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2*1024))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("channel: send: %s", msg)
	}
	return nil
}
