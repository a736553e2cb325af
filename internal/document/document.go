// Package document models the single text buffer a practice session lives
// in, the change events it emits, and the guard that separates synthetic
// edits from the learner's own.
package document

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidEdit = errors.New("edit range outside document")
	ErrClosed      = errors.New("document closed")
	ErrStale       = errors.New("document changed")
)

// Edit replaces Length bytes at Offset with Text.
type Edit struct {
	Offset int
	Length int
	Text   string
}

// Change describes one content change of an event, mirroring the editor
// notion of (range offset, replaced length, inserted text).
type Change struct {
	RangeOffset int    `json:"range_offset"`
	RangeLength int    `json:"range_length"`
	Text        string `json:"text"`
}

// ChangeEvent is delivered to subscribers once per mutation.
type ChangeEvent struct {
	URI     string   `json:"uri"`
	Changes []Change `json:"changes"`
}

// Document is the host-side view of the learner's file.
type Document interface {
	URI() string
	Path() string
	LanguageID() string
	Text() string

	// Apply performs the edits in order, each against the text produced by
	// the previous one, and emits a single ChangeEvent.
	Apply(ctx context.Context, edits ...Edit) error

	// Subscribe registers fn for change events and returns an unsubscribe func.
	Subscribe(fn func(ChangeEvent)) func()
}

// Versioned is implemented by documents that can refuse edits computed
// against an older text.
type Versioned interface {
	Snapshot() (text string, version int)

	// ApplyAt is Apply, failing with ErrStale unless the document is still
	// at version.
	ApplyAt(ctx context.Context, version int, edits ...Edit) error
}

// IsGenuineTyping reports whether an event contains at least one change that
// inserts text without replacing any. Cursor moves, saves, pure deletions and
// paste-over-selection do not qualify.
func IsGenuineTyping(ev ChangeEvent) bool {
	for _, c := range ev.Changes {
		if c.RangeLength == 0 && c.Text != "" {
			return true
		}
	}
	return false
}

var extLanguages = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".go":    "go",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".rs":    "rust",
	".rb":    "ruby",
	".sh":    "shellscript",
	".cs":    "csharp",
	".kt":    "kotlin",
	".swift": "swift",
	".php":   "php",
	".lua":   "lua",
	".sql":   "sql",
	".pl":    "perl",
	".r":     "r",
}

// LanguageFromPath maps a file extension to an editor language identifier.
func LanguageFromPath(path string) string {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "plaintext"
}
