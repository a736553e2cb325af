package telemetry

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/kata/internal/storage/sqlite"
)

// SQLiteSink keeps records in the local statistics database.
type SQLiteSink struct {
	store *sqlite.RecordStore
}

// NewSQLiteSink creates a sink over store.
func NewSQLiteSink(store *sqlite.RecordStore) *SQLiteSink {
	return &SQLiteSink{store: store}
}

func (s *SQLiteSink) Submit(ctx context.Context, _ string, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := s.store.Insert(ctx, toRow(rec)); err != nil {
		return fmt.Errorf("sqlite sink: %w", err)
	}
	return nil
}

// Sync resubmits records not yet delivered to remote, marking each one
// once remote accepts it. It stops at the first failure and returns the
// number of records synced so far.
func (s *SQLiteSink) Sync(ctx context.Context, remote Sink, credential string) (int, error) {
	rows, err := s.store.Unsynced(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, r := range rows {
		if err := remote.Submit(ctx, credential, fromRow(r)); err != nil {
			return synced, fmt.Errorf("sync %s: %w", r.ID, err)
		}
		if err := s.store.MarkSynced(ctx, r.ID); err != nil {
			return synced, err
		}
		synced++
	}
	return synced, nil
}

// Summary aggregates local statistics.
type Summary struct {
	Total         int
	TotalSeconds  int
	HintsUsed     int
	SolutionsSeen int
	ByLanguage    []sqlite.LanguageStats
	RecentRecords []Record
}

// Summary reports totals, per-language stats and the last few records.
func (s *SQLiteSink) Summary(ctx context.Context, recent int) (*Summary, error) {
	langs, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Recent(ctx, recent)
	if err != nil {
		return nil, err
	}

	sum := &Summary{ByLanguage: langs}
	for _, l := range langs {
		sum.Total += l.Count
		sum.TotalSeconds += int(l.AverageSeconds*float64(l.Count) + 0.5)
		sum.HintsUsed += l.TotalHints
		sum.SolutionsSeen += l.SolutionsSeen
	}
	for _, r := range rows {
		sum.RecentRecords = append(sum.RecentRecords, fromRow(r))
	}
	return sum, nil
}

func toRow(rec Record) sqlite.PracticeRecord {
	return sqlite.PracticeRecord{
		ID:             rec.ID,
		Question:       rec.Question,
		TimeTaken:      rec.TimeTaken,
		Seconds:        rec.Seconds(),
		HintsUsed:      rec.HintsUsed,
		SolutionViewed: rec.SolutionViewed,
		Language:       rec.Language,
		PracticedAt:    rec.Date,
	}
}

func fromRow(r sqlite.PracticeRecord) Record {
	return Record{
		ID:             r.ID,
		Question:       r.Question,
		TimeTaken:      r.TimeTaken,
		HintsUsed:      r.HintsUsed,
		SolutionViewed: r.SolutionViewed,
		Language:       r.Language,
		Date:           r.PracticedAt,
	}
}
