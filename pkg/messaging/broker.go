package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Broker publishes serialized domain events to downstream consumers.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// Message is the envelope written to the broker channel.
type Message struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}
