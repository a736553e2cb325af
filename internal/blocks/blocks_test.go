package blocks

import (
	"context"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/felixgeelhaar/kata/internal/document"
)

type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

func apply(t fataler, text string, edits ...document.Edit) string {
	t.Helper()
	buf := document.NewBuffer("mem://test", "go", text)
	if err := buf.Apply(context.Background(), edits...); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	return buf.Text()
}

func TestCommentPrefix(t *testing.T) {
	tests := map[string]string{
		"python":     "# ",
		"ruby":       "# ",
		"yaml":       "# ",
		"sql":        "-- ",
		"lua":        "-- ",
		"go":         "// ",
		"typescript": "// ",
		"plaintext":  "// ",
	}
	for lang, want := range tests {
		if got := CommentPrefix(lang); got != want {
			t.Errorf("CommentPrefix(%q) = %q; want %q", lang, got, want)
		}
	}
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		marker string
		want   Range
		found  bool
	}{
		{
			name:   "blank line ends block inclusively",
			text:   "// Hint: a\n// more\n\ncode\n",
			marker: MarkerHint,
			want:   Range{0, 3},
			found:  true,
		},
		{
			name:   "code line ends block exclusively",
			text:   "// Hint: a\ncode\n",
			marker: MarkerHint,
			want:   Range{0, 1},
			found:  true,
		},
		{
			name:   "indented marker",
			text:   "func f() {\n    // Hint: a\n}\n",
			marker: MarkerHint,
			want:   Range{1, 2},
			found:  true,
		},
		{
			name:   "block at end of file",
			text:   "code\n// Evaluation:\n// fine",
			marker: MarkerEvaluation,
			want:   Range{1, 3},
			found:  true,
		},
		{
			name:   "missing",
			text:   "code\n// not a hint\n",
			marker: MarkerHint,
			found:  false,
		},
		{
			name:   "first block wins",
			text:   "// Hint: one\n\n// Hint: two\n",
			marker: MarkerHint,
			want:   Range{0, 2},
			found:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Locate(tt.text, "// ", tt.marker)
			if ok != tt.found {
				t.Fatalf("Locate() found = %v; want %v", ok, tt.found)
			}
			if ok && got != tt.want {
				t.Errorf("Locate() = %+v; want %+v", got, tt.want)
			}
		})
	}
}

func TestLocateHashPrefix(t *testing.T) {
	text := "# Question (Easy)\n# Reverse a string\n\ndef f():\n    pass\n"
	r, ok := Locate(text, CommentPrefix("python"), MarkerQuestion)
	if !ok {
		t.Fatal("Locate() found = false; want true")
	}
	if r != (Range{0, 3}) {
		t.Errorf("Locate() = %+v; want {0 3}", r)
	}
}

func TestRemoveHintRestoresText(t *testing.T) {
	header := QuestionHeader("// ", "Medium", "Sort an array")
	base := header + "func sort() {}\n"

	r, _ := Locate(base, "// ", MarkerQuestion)
	at := LineOffset(base, r.EndLine)
	withHint := apply(t, base, InsertAt(at, HintBlock("// ", "Use comparisons")))

	want := header + "// Hint: Use comparisons\n\nfunc sort() {}\n"
	if withHint != want {
		t.Fatalf("with hint = %q; want %q", withHint, want)
	}

	hint, ok := Locate(withHint, "// ", MarkerHint)
	if !ok {
		t.Fatal("hint not located")
	}
	if got := apply(t, withHint, Remove(withHint, hint)); got != base {
		t.Errorf("after remove = %q; want %q", got, base)
	}
}

func TestEvaluationRemoval(t *testing.T) {
	base := "func f() {}\n"
	with := apply(t, base, InsertAt(len(base), EvaluationBlock(base, "// ", "Looks good.\n\nMinor nits.")))

	if !strings.Contains(with, "// Evaluation:\n// Looks good.\n//\n// Minor nits.\n") {
		t.Fatalf("evaluation block = %q", with)
	}

	r, ok := Locate(with, "// ", MarkerEvaluation)
	if !ok {
		t.Fatal("evaluation not located")
	}
	got := apply(t, with, Remove(with, WithLeadingBlank(with, r)))
	if got != base {
		t.Errorf("after remove = %q; want %q", got, base)
	}
}

func TestReplaceExact(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		needle      string
		replacement string
		want        string
	}{
		{
			name:        "whole lines",
			text:        "a\nold line\nb\n",
			needle:      "old line",
			replacement: "new line",
			want:        "a\nnew line\nb\n",
		},
		{
			name:        "needle mid line snaps to line",
			text:        "a\nx = old()\nb\n",
			needle:      "old()",
			replacement: "y = new()",
			want:        "a\ny = new()\nb\n",
		},
		{
			name:        "trailing newline stays",
			text:        "a\nold\nb\n",
			needle:      "old\n",
			replacement: "new\n",
			want:        "a\nnew\nb\n",
		},
		{
			name:        "multi line at end without newline",
			text:        "a\nold1\nold2",
			needle:      "old1\nold2",
			replacement: "n",
			want:        "a\nn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edit, ok := ReplaceExact(tt.text, tt.needle, tt.replacement)
			if !ok {
				t.Fatal("ReplaceExact() ok = false")
			}
			if got := apply(t, tt.text, edit); got != tt.want {
				t.Errorf("ReplaceExact() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestReplaceExactMissing(t *testing.T) {
	if _, ok := ReplaceExact("abc", "zzz", "x"); ok {
		t.Error("ReplaceExact() ok = true for missing needle")
	}
	if _, ok := ReplaceExact("abc", "", "x"); ok {
		t.Error("ReplaceExact() ok = true for empty needle")
	}
}

func TestSolutionExplainRoundTrip(t *testing.T) {
	base := "// Question (Easy)\n// Add\n\nfunc add(a, b int) int {\n\treturn 0\n}"
	solution := "func add(a, b int) int {\n\treturn a + b\n}"
	explanation := "// Returns the sum.\nfunc add(a, b int) int {\n\treturn a + b // add\n}"

	withSolution := apply(t, base, InsertAt(len(base), SolutionBlock(base, "// ", solution)))
	if !Contains(withSolution, solution) {
		t.Fatal("solution not present after insert")
	}

	edit, ok := ReplaceExact(withSolution, solution, explanation)
	if !ok {
		t.Fatal("solution not found")
	}
	explained := apply(t, withSolution, edit)

	edit, ok = ReplaceExact(explained, explanation, solution)
	if !ok {
		t.Fatal("explanation not found")
	}
	if got := apply(t, explained, edit); got != withSolution {
		t.Errorf("round trip = %q; want %q", got, withSolution)
	}
}

func TestInsertAnnotations(t *testing.T) {
	text := "func f() {\n\tx := 1\n\treturn\n}\n"
	edits := InsertAnnotations(text, "// ", []Annotation{
		{Line: 2, Text: "name x better"},
		{Line: 3, Text: "return x"},
		{Line: 99, Text: "out of range"},
	})
	if len(edits) != 2 {
		t.Fatalf("len(edits) = %d; want 2", len(edits))
	}

	got := apply(t, text, edits...)
	want := "func f() {\n\t// Suggestion: name x better\n\tx := 1\n\t// Suggestion: return x\n\treturn\n}\n"
	if got != want {
		t.Errorf("annotated = %q; want %q", got, want)
	}

	cleared := apply(t, got, RemoveMarkedLines(got, "// ", MarkerSuggestion)...)
	if cleared != text {
		t.Errorf("cleared = %q; want %q", cleared, text)
	}
}

func TestRevealed(t *testing.T) {
	text := "// Hint: x\n\ncode\n"
	if !Revealed(text, "// ", MarkerHint, "") {
		t.Error("Revealed() by marker = false")
	}
	if !Revealed("code\nreturn a + b\n", "// ", MarkerSolution, "return a + b") {
		t.Error("Revealed() by content = false")
	}
	if Revealed("code\n", "// ", MarkerSolution, "") {
		t.Error("Revealed() on empty stored content = true")
	}
}

func TestLineOffset(t *testing.T) {
	text := "ab\ncd\n"
	tests := map[int]int{0: 0, 1: 3, 2: 6, 3: 6, 10: 6}
	for line, want := range tests {
		if got := LineOffset(text, line); got != want {
			t.Errorf("LineOffset(%d) = %d; want %d", line, got, want)
		}
	}
}

func TestHintInsertRemoveProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		code := rapid.StringMatching(`[a-z(){}=; \n]{0,60}`).Draw(rt, "code")
		hint := rapid.StringMatching(`[A-Za-z][A-Za-z ,.]{0,30}`).Draw(rt, "hint")

		base := QuestionHeader("// ", "Hard", "Do it") + code
		r, ok := Locate(base, "// ", MarkerQuestion)
		if !ok {
			rt.Fatal("question not located")
		}
		withHint := apply(rt, base, InsertAt(LineOffset(base, r.EndLine), HintBlock("// ", hint)))

		hr, ok := Locate(withHint, "// ", MarkerHint)
		if !ok {
			rt.Fatal("hint not located")
		}
		if got := apply(rt, withHint, Remove(withHint, hr)); got != base {
			rt.Fatalf("round trip = %q; want %q", got, base)
		}
	})
}
