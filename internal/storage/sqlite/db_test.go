package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "kata.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestOpen_WAL(t *testing.T) {
	db := openTestDB(t)

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q; want wal", mode)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	version, err := db.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != 2 {
		t.Errorf("Version() = %d; want 2", version)
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("012_thing.sql"); err != nil || v != 12 {
		t.Errorf("parseVersion() = %d, %v; want 12, nil", v, err)
	}
	if _, err := parseVersion("readme.sql"); err == nil {
		t.Error("parseVersion(readme.sql) error = nil")
	}
	if _, err := parseVersion("abc_x.sql"); err == nil {
		t.Error("parseVersion(abc_x.sql) error = nil")
	}
}

func TestRecordStore(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(openTestDB(t))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []PracticeRecord{
		{ID: "a", Question: "Sort", TimeTaken: "02:00", Seconds: 120, HintsUsed: 1, Language: "go", PracticedAt: base},
		{ID: "b", Question: "Reverse", TimeTaken: "04:00", Seconds: 240, HintsUsed: 2, SolutionViewed: true, Language: "go", PracticedAt: base.Add(time.Hour)},
		{ID: "c", Question: "Sum", TimeTaken: "01:00", Seconds: 60, Language: "python", PracticedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range records {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert(%s) error = %v", r.ID, err)
		}
	}
	if err := store.Insert(ctx, records[0]); err != nil {
		t.Fatalf("duplicate Insert() error = %v", err)
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
		t.Errorf("Recent() = %+v; want c, b", recent)
	}
	if !recent[1].SolutionViewed {
		t.Error("SolutionViewed lost in round trip")
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("len(Stats()) = %d; want 2", len(stats))
	}
	if stats[0].Language != "go" || stats[0].Count != 2 || stats[0].AverageSeconds != 180 {
		t.Errorf("go stats = %+v", stats[0])
	}
	if stats[0].TotalHints != 3 || stats[0].SolutionsSeen != 1 {
		t.Errorf("go stats = %+v", stats[0])
	}

	if err := store.MarkSynced(ctx, "a"); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	if err := store.MarkSynced(ctx, "missing"); err == nil {
		t.Error("MarkSynced(missing) error = nil")
	}
	unsynced, err := store.Unsynced(ctx)
	if err != nil {
		t.Fatalf("Unsynced() error = %v", err)
	}
	if len(unsynced) != 2 || unsynced[0].ID != "b" {
		t.Errorf("Unsynced() = %+v; want b, c", unsynced)
	}
}
