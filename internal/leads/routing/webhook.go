package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"realty_leads_backend/internal/leads/ports"
)

// clientTimeoutGrace keeps the client's own timeout behind the caller's deadline.
const clientTimeoutGrace = 250 * time.Millisecond

// WebhookRelay posts relay payloads as JSON to a fixed URL.
type WebhookRelay struct {
	url        string
	httpClient *http.Client
}

// NewWebhookRelay creates a relay client. The request deadline comes from the
// caller's context; the client timeout is only a backstop for callers without one.
func NewWebhookRelay(url string, timeout time.Duration) *WebhookRelay {
	if timeout <= 0 {
		timeout = defaultRelayTimeout
	}
	return &WebhookRelay{
		url:        url,
		httpClient: &http.Client{Timeout: timeout + clientTimeoutGrace},
	}
}

// Relay implements ports.Relayer.
func (w *WebhookRelay) Relay(ctx context.Context, payload ports.RelayPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal relay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Lead-ID", payload.LeadID.String())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("relay request: %w", ctxErr)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("relay request: %w: %w", context.DeadlineExceeded, err)
		}
		return fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("relay webhook returned status %d", resp.StatusCode)
	}
	return nil
}

var _ ports.Relayer = (*WebhookRelay)(nil)
