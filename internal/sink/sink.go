package sink

import (
	"context"
	"encoding/json"

	"github.com/telemetryhub/event-buffer/internal/domain"
)

// DeliverRequest is the JSON body posted to the downstream collector.
type DeliverRequest struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Sink abstracts delivery of a buffered event to the downstream telemetry
// collector. Mocking this interface in tests gives full control over delivery
// behaviour without making real HTTP calls.
type Sink interface {
	Deliver(ctx context.Context, ev domain.QueuedEvent) error
}
