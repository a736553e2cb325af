// Package blocks locates and rewrites the marked comment blocks a practice
// session keeps inside the learner's document. Every function is pure: it
// reads text and returns the edit to apply.
package blocks

import (
	"sort"
	"strings"

	"github.com/felixgeelhaar/kata/internal/document"
)

// Block markers, rendered after the document's comment prefix.
const (
	MarkerQuestion   = "Question ("
	MarkerHint       = "Hint:"
	MarkerSolution   = "Solution:"
	MarkerEvaluation = "Evaluation:"
	MarkerSuggestion = "Suggestion:"
)

var hashPrefixed = map[string]bool{
	"python":      true,
	"ruby":        true,
	"shellscript": true,
	"perl":        true,
	"r":           true,
	"yaml":        true,
	"elixir":      true,
	"julia":       true,
	"powershell":  true,
	"makefile":    true,
	"dockerfile":  true,
	"toml":        true,
}

var dashPrefixed = map[string]bool{
	"sql":     true,
	"lua":     true,
	"haskell": true,
}

// CommentPrefix returns the line-comment prefix, including the trailing
// space, used for blocks in a document of the given language.
func CommentPrefix(languageID string) string {
	switch {
	case hashPrefixed[languageID]:
		return "# "
	case dashPrefixed[languageID]:
		return "-- "
	default:
		return "// "
	}
}

// Range is a half-open range of line indexes [StartLine, EndLine).
type Range struct {
	StartLine int
	EndLine   int
}

// Len returns the number of lines in the range.
func (r Range) Len() int {
	return r.EndLine - r.StartLine
}

// Lines splits text on newlines. A trailing newline yields a final empty line.
func Lines(text string) []string {
	return strings.Split(text, "\n")
}

// LineOffset returns the byte offset at which line starts. Lines past the
// end map to len(text).
func LineOffset(text string, line int) int {
	if line <= 0 {
		return 0
	}
	offset := 0
	for i := 0; i < line; i++ {
		nl := strings.IndexByte(text[offset:], '\n')
		if nl < 0 {
			return len(text)
		}
		offset += nl + 1
	}
	return offset
}

type scanState int

const (
	seeking scanState = iota
	inside
	done
)

// Locate finds the block whose first line, once trimmed, starts with
// prefix+marker. The block extends over following comment lines; a blank
// line ends it and is included, a non-comment line ends it and is excluded.
func Locate(text, prefix, marker string) (Range, bool) {
	head := prefix + marker
	comment := strings.TrimSpace(prefix)

	var r Range
	state := seeking

	for i, line := range Lines(text) {
		trimmed := strings.TrimSpace(line)

		switch state {
		case seeking:
			if strings.HasPrefix(trimmed, head) {
				r = Range{StartLine: i, EndLine: i + 1}
				state = inside
			}
		case inside:
			switch {
			case trimmed == "":
				r.EndLine = i + 1
				state = done
			case strings.HasPrefix(trimmed, comment):
				r.EndLine = i + 1
			default:
				state = done
			}
		}

		if state == done {
			break
		}
	}

	if state == seeking {
		return Range{}, false
	}
	return r, true
}

// IsComment reports whether line is a comment under prefix.
func IsComment(line, prefix string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), strings.TrimSpace(prefix))
}

// InsertAt inserts text verbatim at offset.
func InsertAt(offset int, text string) document.Edit {
	return document.Edit{Offset: offset, Text: text}
}

// Remove deletes the lines of r.
func Remove(text string, r Range) document.Edit {
	start := LineOffset(text, r.StartLine)
	end := LineOffset(text, r.EndLine)
	return document.Edit{Offset: start, Length: end - start}
}

// WithLeadingBlank extends r upwards over a single blank line directly
// above it, if there is one.
func WithLeadingBlank(text string, r Range) Range {
	if r.StartLine == 0 {
		return r
	}
	lines := Lines(text)
	if strings.TrimSpace(lines[r.StartLine-1]) == "" {
		r.StartLine--
	}
	return r
}

// ReplaceExact replaces the first occurrence of needle with replacement,
// widened to whole lines so a line is never split mid-token. A trailing
// newline on needle or replacement stays outside the replaced range.
func ReplaceExact(text, needle, replacement string) (document.Edit, bool) {
	if needle == "" {
		return document.Edit{}, false
	}
	idx := strings.Index(text, needle)
	if idx < 0 {
		return document.Edit{}, false
	}

	start := strings.LastIndexByte(text[:idx], '\n') + 1

	end := idx + len(needle)
	if text[end-1] == '\n' {
		end--
	}
	if nl := strings.IndexByte(text[end:], '\n'); nl >= 0 {
		end += nl
	} else {
		end = len(text)
	}

	return document.Edit{
		Offset: start,
		Length: end - start,
		Text:   strings.TrimSuffix(replacement, "\n"),
	}, true
}

// Contains reports whether stored content is present verbatim. Empty
// content is never present.
func Contains(text, stored string) bool {
	return stored != "" && strings.Contains(text, stored)
}

// Revealed reports whether a block is already in the document, either by
// its marker or by its exact stored content.
func Revealed(text, prefix, marker, stored string) bool {
	if _, ok := Locate(text, prefix, marker); ok {
		return true
	}
	return Contains(text, stored)
}

// Annotation is an inline note anchored above a one-based line.
type Annotation struct {
	Line int
	Text string
}

// InsertAnnotations returns one insertion per annotation, ordered by
// descending line so that applying them in sequence never shifts a line
// still waiting for its note. Annotations outside the document are dropped.
func InsertAnnotations(text, prefix string, notes []Annotation) []document.Edit {
	lines := Lines(text)

	sorted := make([]Annotation, 0, len(notes))
	for _, n := range notes {
		if n.Line >= 1 && n.Line <= len(lines) {
			sorted = append(sorted, n)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Line > sorted[j].Line
	})

	edits := make([]document.Edit, 0, len(sorted))
	for _, n := range sorted {
		target := lines[n.Line-1]
		indent := target[:len(target)-len(strings.TrimLeft(target, " \t"))]
		edits = append(edits, InsertAt(LineOffset(text, n.Line-1), SuggestionLine(prefix, indent, n.Text)))
	}
	return edits
}

// RemoveMarkedLines deletes every single line starting with prefix+marker,
// last line first.
func RemoveMarkedLines(text, prefix, marker string) []document.Edit {
	head := prefix + marker
	lines := Lines(text)

	var edits []document.Edit
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), head) {
			edits = append(edits, Remove(text, Range{StartLine: i, EndLine: i + 1}))
		}
	}
	return edits
}
