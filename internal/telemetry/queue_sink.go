package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/kata/internal/queue"
)

// RecordKind tags practice records on the queue.
const RecordKind = "practice_record"

// QueueSink publishes records to RabbitMQ for remote aggregation.
type QueueSink struct {
	producer *queue.Producer
}

// NewQueueSink creates a sink publishing to the record queue on conn.
func NewQueueSink(conn *queue.Connection) *QueueSink {
	return &QueueSink{producer: queue.NewProducer(conn, queue.RecordQueueName)}
}

func (s *QueueSink) Submit(ctx context.Context, credential string, rec Record) error {
	if credential == "" {
		return ErrNoCredential
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if _, err := s.producer.Publish(ctx, RecordKind, credential, rec); err != nil {
		return fmt.Errorf("queue sink: %w", err)
	}
	return nil
}

// Verifier checks a credential carried by a queued record and returns
// the learner it identifies.
type Verifier func(credential string) (subject string, err error)

// IngestHandler stores queued records into sink after verifying their
// credential. Messages of other kinds are acknowledged and skipped.
func IngestHandler(sink Sink, verify Verifier) queue.Handler {
	return func(ctx context.Context, env queue.Envelope) error {
		if env.Kind != RecordKind {
			return nil
		}

		subject, err := verify(env.Credential)
		if err != nil {
			// a bad credential will not get better on redelivery
			return nil
		}

		var rec Record
		if err := json.Unmarshal(env.Payload, &rec); err != nil {
			return nil
		}
		return sink.Submit(ctx, subject, rec)
	}
}
