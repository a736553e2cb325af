package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/kata/internal/queue"
	"github.com/felixgeelhaar/kata/internal/storage/sqlite"
)

type recordingSink struct {
	mu    sync.Mutex
	creds []string
	recs  []Record
	err   error
}

func (s *recordingSink) Submit(ctx context.Context, credential string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = append(s.creds, credential)
	s.recs = append(s.recs, rec)
	return s.err
}

func TestParseElapsed(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"01:05", 65, false},
		{"120:59", 7259, false},
		{"1:5", 0, true},
		{"00:60", 0, true},
		{"abc", 0, true},
		{"-1:00", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseElapsed(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseElapsed(%q) error = %v; wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseElapsed(%q) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestRecord_Validate(t *testing.T) {
	rec := NewRecord("Sort an array", "02:30", 1, false, "go")
	if err := rec.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if rec.Seconds() != 150 {
		t.Errorf("Seconds() = %d; want 150", rec.Seconds())
	}

	bad := rec
	bad.Language = ""
	if err := bad.Validate(); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Validate() error = %v; want ErrInvalidRecord", err)
	}

	bad = rec
	bad.TimeTaken = "soon"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Validate() error = %v; want ErrInvalidRecord", err)
	}
}

func TestRecord_JSONFields(t *testing.T) {
	data, err := json.Marshal(NewRecord("q", "00:10", 0, true, "python"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"question", "timeTaken", "hintsUsed", "solutionViewed", "language", "date"} {
		if _, ok := m[key]; !ok {
			t.Errorf("record JSON missing %q", key)
		}
	}
}

func TestMultiSink_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingSink{}
	failing := &recordingSink{err: boom}

	err := MultiSink{failing, ok}.Submit(context.Background(), "tok", NewRecord("q", "00:01", 0, false, "go"))
	if !errors.Is(err, boom) {
		t.Errorf("Submit() error = %v; want boom", err)
	}
	if len(ok.recs) != 1 {
		t.Errorf("second sink got %d records; want 1", len(ok.recs))
	}
}

func TestSQLiteSink_SubmitAndSummary(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "kata.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	sink := NewSQLiteSink(sqlite.NewRecordStore(db))
	ctx := context.Background()

	records := []Record{
		NewRecord("a", "01:00", 1, false, "go"),
		NewRecord("b", "03:00", 2, true, "go"),
		NewRecord("c", "00:30", 0, false, "python"),
	}
	for _, rec := range records {
		if err := sink.Submit(ctx, "", rec); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	// duplicate ids are ignored
	if err := sink.Submit(ctx, "", records[0]); err != nil {
		t.Fatalf("Submit(duplicate) error = %v", err)
	}

	sum, err := sink.Summary(ctx, 2)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.Total != 3 {
		t.Errorf("Total = %d; want 3", sum.Total)
	}
	if sum.TotalSeconds != 270 {
		t.Errorf("TotalSeconds = %d; want 270", sum.TotalSeconds)
	}
	if sum.HintsUsed != 3 {
		t.Errorf("HintsUsed = %d; want 3", sum.HintsUsed)
	}
	if sum.SolutionsSeen != 1 {
		t.Errorf("SolutionsSeen = %d; want 1", sum.SolutionsSeen)
	}
	if len(sum.RecentRecords) != 2 {
		t.Errorf("len(RecentRecords) = %d; want 2", len(sum.RecentRecords))
	}
}

func TestSQLiteSink_Sync(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "kata.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	sink := NewSQLiteSink(sqlite.NewRecordStore(db))
	ctx := context.Background()
	for _, rec := range []Record{
		NewRecord("a", "01:00", 0, false, "go"),
		NewRecord("b", "02:00", 1, false, "go"),
	} {
		if err := sink.Submit(ctx, "", rec); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	remote := &recordingSink{err: errors.New("offline")}
	n, err := sink.Sync(ctx, remote, "tok")
	if err == nil || n != 0 {
		t.Fatalf("Sync(offline) = %d, %v; want 0 and an error", n, err)
	}

	remote = &recordingSink{}
	n, err = sink.Sync(ctx, remote, "tok")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if n != 2 || len(remote.recs) != 2 {
		t.Errorf("Sync() = %d with %d delivered; want 2", n, len(remote.recs))
	}
	if remote.creds[0] != "tok" {
		t.Errorf("credential = %q; want %q", remote.creds[0], "tok")
	}

	// already synced records are not sent again
	n, err = sink.Sync(ctx, remote, "tok")
	if err != nil || n != 0 {
		t.Errorf("second Sync() = %d, %v; want 0, nil", n, err)
	}
}

func TestSQLiteSink_RejectsInvalid(t *testing.T) {
	sink := NewSQLiteSink(nil)
	err := sink.Submit(context.Background(), "", Record{})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Submit() error = %v; want ErrInvalidRecord", err)
	}
}

func TestQueueSink_RequiresCredential(t *testing.T) {
	sink := &QueueSink{}
	err := sink.Submit(context.Background(), "", NewRecord("q", "00:01", 0, false, "go"))
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("Submit() error = %v; want ErrNoCredential", err)
	}
}

func TestIngestHandler(t *testing.T) {
	sink := &recordingSink{}
	verify := func(credential string) (string, error) {
		if credential != "good" {
			return "", errors.New("invalid token")
		}
		return "learner-1", nil
	}
	handle := IngestHandler(sink, verify)

	rec := NewRecord("q", "00:42", 1, false, "go")
	payload, _ := json.Marshal(rec)
	ctx := context.Background()

	if err := handle(ctx, queue.Envelope{Kind: "other", Payload: payload}); err != nil {
		t.Errorf("other kind error = %v", err)
	}
	if err := handle(ctx, queue.Envelope{Kind: RecordKind, Credential: "bad", Payload: payload}); err != nil {
		t.Errorf("bad credential error = %v", err)
	}
	if err := handle(ctx, queue.Envelope{Kind: RecordKind, Credential: "good", Payload: payload}); err != nil {
		t.Fatalf("handle() error = %v", err)
	}

	if len(sink.recs) != 1 {
		t.Fatalf("stored %d records; want 1", len(sink.recs))
	}
	if sink.creds[0] != "learner-1" {
		t.Errorf("subject = %q; want %q", sink.creds[0], "learner-1")
	}
	if sink.recs[0].ID != rec.ID {
		t.Errorf("ID = %q; want %q", sink.recs[0].ID, rec.ID)
	}
}

func TestDispatch_DoesNotPropagateErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("offline")}
	done := Dispatch(sink, "tok", NewRecord("q", "00:01", 0, false, "go"), time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch did not finish")
	}
	if len(sink.recs) != 1 || sink.creds[0] != "tok" {
		t.Errorf("sink got %v / %v", sink.recs, sink.creds)
	}
}
