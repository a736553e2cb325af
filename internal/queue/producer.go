package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every published payload.
type Envelope struct {
	ID          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Credential  string          `json:"credential,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

// Producer publishes envelopes to one queue
type Producer struct {
	conn  *Connection
	queue string
}

// NewProducer creates a producer for queue
func NewProducer(conn *Connection, queue string) *Producer {
	return &Producer{conn: conn, queue: queue}
}

// Publish wraps payload in an envelope and publishes it.
func (p *Producer) Publish(ctx context.Context, kind, credential string, payload any) (uuid.UUID, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal payload: %w", err)
	}

	env := Envelope{
		ID:          uuid.New(),
		Kind:        kind,
		Credential:  credential,
		Payload:     raw,
		PublishedAt: time.Now().UTC(),
	}

	if err := p.conn.PublishJSON(ctx, p.queue, env); err != nil {
		return uuid.Nil, fmt.Errorf("publish %s: %w", kind, err)
	}

	slog.Debug("published message", "queue", p.queue, "kind", kind, "id", env.ID)
	return env.ID, nil
}
