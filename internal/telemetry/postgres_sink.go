package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

// PostgresSink writes records to a shared PostgreSQL table, typically on
// the aggregation side of the record queue.
type PostgresSink struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresSink connects to dsn and ensures table exists.
func NewPostgresSink(ctx context.Context, dsn, table string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresSink{pool: pool, table: pq.QuoteIdentifier(table)}
	if err := s.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) ensureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id              UUID PRIMARY KEY,
			subject         TEXT NOT NULL,
			question        TEXT NOT NULL,
			time_taken      TEXT NOT NULL,
			seconds         INTEGER NOT NULL,
			hints_used      INTEGER NOT NULL,
			solution_viewed BOOLEAN NOT NULL,
			language        TEXT NOT NULL,
			practiced_at    TIMESTAMPTZ NOT NULL,
			metadata        JSONB
		)`, s.table))
	if err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Submit stores rec under subject, the verified learner identity.
func (s *PostgresSink) Submit(ctx context.Context, subject string, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, subject, question, time_taken, seconds, hints_used,
			solution_viewed, language, practiced_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`, s.table),
		rec.ID, subject, rec.Question, rec.TimeTaken, rec.Seconds(), rec.HintsUsed,
		rec.SolutionViewed, rec.Language, rec.Date, metadata(rec),
	)
	if err != nil {
		return fmt.Errorf("postgres sink: %w", err)
	}
	return nil
}

// Close releases the pool
func (s *PostgresSink) Close() {
	s.pool.Close()
}

func metadata(rec Record) pqtype.NullRawMessage {
	if rec.Question == "" {
		return pqtype.NullRawMessage{}
	}
	data, err := json.Marshal(map[string]any{
		"question_length": len(rec.Question),
		"user_written":    false,
	})
	if err != nil {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}
}
