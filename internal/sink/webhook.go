package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/telemetryhub/event-buffer/internal/domain"
)

// WebhookSink delivers events by POSTing them to an HTTP collector endpoint.
// The base URL is injected from config so tests can point to a local mock.
type WebhookSink struct {
	baseURL    string
	httpClient *http.Client
}

func NewWebhookSink(baseURL string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Deliver posts the event to the configured collector URL and treats any 2xx
// response as accepted.
func (s *WebhookSink) Deliver(ctx context.Context, ev domain.QueuedEvent) error {
	body, err := json.Marshal(DeliverRequest{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		Payload:   ev.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected collector status: %d", resp.StatusCode)
	}
	return nil
}

// compile-time check that WebhookSink implements Sink
var _ Sink = (*WebhookSink)(nil)
