package document

import (
	"context"
	"errors"
	"testing"
)

func TestBuffer_ApplySequential(t *testing.T) {
	b := NewBuffer("mem://a", "python", "line1\nline2\n")

	err := b.Apply(context.Background(),
		Edit{Offset: 6, Text: "inserted\n"},
		Edit{Offset: 0, Length: 5, Text: "first"},
	)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	want := "first\ninserted\nline2\n"
	if got := b.Text(); got != want {
		t.Errorf("Text() = %q; want %q", got, want)
	}
	if b.Version() != 1 {
		t.Errorf("Version() = %d; want 1", b.Version())
	}
}

func TestBuffer_ApplyInvalidRange(t *testing.T) {
	b := NewBuffer("mem://a", "go", "abc")

	err := b.Apply(context.Background(), Edit{Offset: 2, Length: 5})
	if !errors.Is(err, ErrInvalidEdit) {
		t.Fatalf("Apply() error = %v; want ErrInvalidEdit", err)
	}
	if b.Text() != "abc" {
		t.Errorf("Text() = %q; want unchanged", b.Text())
	}
}

func TestBuffer_SubscribeReceivesChanges(t *testing.T) {
	b := NewBuffer("mem://a", "go", "")

	var events []ChangeEvent
	unsubscribe := b.Subscribe(func(ev ChangeEvent) {
		events = append(events, ev)
	})

	if err := b.Insert(context.Background(), 0, "x"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	unsubscribe()
	if err := b.Insert(context.Background(), 1, "y"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("events = %d; want 1", len(events))
	}
	if events[0].URI != "mem://a" {
		t.Errorf("URI = %q; want mem://a", events[0].URI)
	}
	if len(events[0].Changes) != 1 || events[0].Changes[0].Text != "x" {
		t.Errorf("Changes = %+v; want single insertion of x", events[0].Changes)
	}
}

func TestBuffer_ListenerSeesUpdatedText(t *testing.T) {
	b := NewBuffer("mem://a", "go", "a")

	var seen string
	b.Subscribe(func(ChangeEvent) {
		seen = b.Text()
	})

	if err := b.Insert(context.Background(), 1, "b"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if seen != "ab" {
		t.Errorf("listener saw %q; want %q", seen, "ab")
	}
}

func TestBuffer_Closed(t *testing.T) {
	b := NewBuffer("mem://a", "go", "a")
	b.Close()

	if err := b.Insert(context.Background(), 0, "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Insert() error = %v; want ErrClosed", err)
	}
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		want     Change
	}{
		{"insert", "abc", "abXc", Change{RangeOffset: 2, RangeLength: 0, Text: "X"}},
		{"delete", "abc", "ac", Change{RangeOffset: 1, RangeLength: 1, Text: ""}},
		{"replace", "hello world", "hello there", Change{RangeOffset: 6, RangeLength: 5, Text: "there"}},
		{"append", "ab", "abcd", Change{RangeOffset: 2, RangeLength: 0, Text: "cd"}},
		{"repeated", "aaa", "aaaa", Change{RangeOffset: 3, RangeLength: 0, Text: "a"}},
		{"multibyte", "é", "è", Change{RangeOffset: 0, RangeLength: 2, Text: "è"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if got != tt.want {
				t.Errorf("Diff(%q, %q) = %+v; want %+v", tt.old, tt.new, got, tt.want)
			}
			applied := tt.old[:got.RangeOffset] + got.Text + tt.old[got.RangeOffset+got.RangeLength:]
			if applied != tt.new {
				t.Errorf("applying diff = %q; want %q", applied, tt.new)
			}
		})
	}
}

func TestIsGenuineTyping(t *testing.T) {
	tests := []struct {
		name    string
		changes []Change
		want    bool
	}{
		{"keystroke", []Change{{RangeLength: 0, Text: "a"}}, true},
		{"replacement", []Change{{RangeLength: 3, Text: "a"}}, false},
		{"deletion", []Change{{RangeLength: 1, Text: ""}}, false},
		{"empty", []Change{{RangeLength: 0, Text: ""}}, false},
		{"no changes", nil, false},
		{"mixed", []Change{{RangeLength: 2, Text: ""}, {RangeLength: 0, Text: "b"}}, true},
	}

	for _, tt := range tests {
		if got := IsGenuineTyping(ChangeEvent{Changes: tt.changes}); got != tt.want {
			t.Errorf("%s: IsGenuineTyping() = %v; want %v", tt.name, got, tt.want)
		}
	}
}

func TestGuard_ClearsOnError(t *testing.T) {
	var g Guard
	var during bool

	err := g.Do(func() error {
		during = g.Active()
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("Do() error = nil; want boom")
	}
	if !during {
		t.Error("Active() = false inside Do")
	}
	if g.Active() {
		t.Error("Active() = true after Do returned")
	}
}

func TestGuard_ClearsOnPanic(t *testing.T) {
	var g Guard

	func() {
		defer func() { _ = recover() }()
		_ = g.Do(func() error { panic("mutation failed") })
	}()

	if g.Active() {
		t.Error("Active() = true after panicking mutation")
	}
}

func TestGuard_ObserverSeesSyntheticEdit(t *testing.T) {
	var g Guard
	b := NewBuffer("mem://a", "go", "")

	var guarded []bool
	b.Subscribe(func(ChangeEvent) {
		guarded = append(guarded, g.Active())
	})

	_ = g.Do(func() error {
		return b.Insert(context.Background(), 0, "synthetic")
	})
	_ = b.Insert(context.Background(), 0, "human")

	if len(guarded) != 2 || !guarded[0] || guarded[1] {
		t.Errorf("guard states seen = %v; want [true false]", guarded)
	}
}

func TestLanguageFromPath(t *testing.T) {
	tests := map[string]string{
		"main.go":      "go",
		"solve.PY":     "python",
		"a/b/c.cpp":    "cpp",
		"script.sh":    "shellscript",
		"notes.txt":    "plaintext",
		"Program.java": "java",
	}
	for path, want := range tests {
		if got := LanguageFromPath(path); got != want {
			t.Errorf("LanguageFromPath(%q) = %q; want %q", path, got, want)
		}
	}
}

func TestBuffer_ApplyAtRejectsStaleVersion(t *testing.T) {
	b := NewBuffer("mem://a", "go", "abc")
	ctx := context.Background()

	text, version := b.Snapshot()
	if text != "abc" || version != 0 {
		t.Fatalf("Snapshot() = %q, %d; want abc, 0", text, version)
	}
	if err := b.Insert(ctx, 0, "x"); err != nil {
		t.Fatal(err)
	}

	err := b.ApplyAt(ctx, version, Edit{Offset: 3, Text: "!"})
	if !errors.Is(err, ErrStale) {
		t.Fatalf("ApplyAt() error = %v; want ErrStale", err)
	}
	if b.Text() != "xabc" {
		t.Errorf("Text() = %q; want unchanged", b.Text())
	}

	if err := b.ApplyAt(ctx, b.Version(), Edit{Offset: 4, Text: "!"}); err != nil {
		t.Fatalf("ApplyAt() error = %v", err)
	}
	if b.Text() != "xabc!" {
		t.Errorf("Text() = %q; want %q", b.Text(), "xabc!")
	}
}
