package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PracticeRecord is one finished practice question.
type PracticeRecord struct {
	ID             string
	Question       string
	TimeTaken      string
	Seconds        int
	HintsUsed      int
	SolutionViewed bool
	Language       string
	PracticedAt    time.Time
	Synced         bool
}

// LanguageStats aggregates records for one language.
type LanguageStats struct {
	Language       string
	Count          int
	AverageSeconds float64
	TotalHints     int
	SolutionsSeen  int
}

// RecordStore persists practice records.
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a new SQLite-backed record store.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// Insert stores rec, ignoring a duplicate ID.
func (s *RecordStore) Insert(ctx context.Context, rec PracticeRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO practice_records
		(id, question, time_taken, seconds, hints_used, solution_viewed, language, practiced_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Question, rec.TimeTaken, rec.Seconds, rec.HintsUsed,
		rec.SolutionViewed, rec.Language, rec.PracticedAt.UTC(), rec.Synced,
	)
	if err != nil {
		return fmt.Errorf("insert practice record: %w", err)
	}
	return nil
}

// MarkSynced flags a record as delivered to the remote sink.
func (s *RecordStore) MarkSynced(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE practice_records SET synced = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark synced %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *RecordStore) Recent(ctx context.Context, limit int) ([]PracticeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, question, time_taken, seconds, hints_used,
		solution_viewed, language, practiced_at, synced
		FROM practice_records ORDER BY practiced_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query practice records: %w", err)
	}
	defer rows.Close()

	var out []PracticeRecord
	for rows.Next() {
		var r PracticeRecord
		if err := rows.Scan(&r.ID, &r.Question, &r.TimeTaken, &r.Seconds, &r.HintsUsed,
			&r.SolutionViewed, &r.Language, &r.PracticedAt, &r.Synced); err != nil {
			return nil, fmt.Errorf("scan practice record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Unsynced returns records not yet delivered remotely, oldest first.
func (s *RecordStore) Unsynced(ctx context.Context) ([]PracticeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, question, time_taken, seconds, hints_used,
		solution_viewed, language, practiced_at, synced
		FROM practice_records WHERE synced = 0 ORDER BY practiced_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query unsynced records: %w", err)
	}
	defer rows.Close()

	var out []PracticeRecord
	for rows.Next() {
		var r PracticeRecord
		if err := rows.Scan(&r.ID, &r.Question, &r.TimeTaken, &r.Seconds, &r.HintsUsed,
			&r.SolutionViewed, &r.Language, &r.PracticedAt, &r.Synced); err != nil {
			return nil, fmt.Errorf("scan practice record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats aggregates records per language, most practiced first.
func (s *RecordStore) Stats(ctx context.Context) ([]LanguageStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT language, COUNT(*), AVG(seconds),
		SUM(hints_used), SUM(solution_viewed)
		FROM practice_records GROUP BY language ORDER BY COUNT(*) DESC, language ASC`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []LanguageStats
	for rows.Next() {
		var st LanguageStats
		if err := rows.Scan(&st.Language, &st.Count, &st.AverageSeconds, &st.TotalHints, &st.SolutionsSeen); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
