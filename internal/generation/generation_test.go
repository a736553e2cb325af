package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/kata/internal/llm"
)

type mockCompleter struct {
	reply string
	err   error
	last  *llm.Request
}

func (m *mockCompleter) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Response{Content: m.reply}, nil
}

func TestParseContent(t *testing.T) {
	c, err := ParseContent("[QUESTION]Sort an array[HINT]Use comparisons[SOLUTION]function sort(a){...}", false)
	if err != nil {
		t.Fatalf("ParseContent() error = %v", err)
	}
	if c.Question != "Sort an array" {
		t.Errorf("Question = %q; want %q", c.Question, "Sort an array")
	}
	if c.Hint != "Use comparisons" {
		t.Errorf("Hint = %q; want %q", c.Hint, "Use comparisons")
	}
	if c.Solution != "function sort(a){...}" {
		t.Errorf("Solution = %q; want %q", c.Solution, "function sort(a){...}")
	}
}

func TestParseContent_StripsFencesAndWhitespace(t *testing.T) {
	reply := "[QUESTION]\nReverse a list.\n\n[HINT]\nTwo pointers.\n[SOLUTION]\n```python\ndef rev(xs):\n    return xs[::-1]\n```\n"
	c, err := ParseContent(reply, false)
	if err != nil {
		t.Fatalf("ParseContent() error = %v", err)
	}
	want := "def rev(xs):\n    return xs[::-1]"
	if c.Solution != want {
		t.Errorf("Solution = %q; want %q", c.Solution, want)
	}
}

func TestParseContent_UserQuestion(t *testing.T) {
	c, err := ParseContent("[HINT]h[SOLUTION]s", true)
	if err != nil {
		t.Fatalf("ParseContent() error = %v", err)
	}
	if c.Question != "" || c.Hint != "h" || c.Solution != "s" {
		t.Errorf("content = %+v", c)
	}
}

func TestParseContent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		text string
		user bool
	}{
		{"no tags", "just prose", false},
		{"missing solution", "[QUESTION]q[HINT]h", false},
		{"missing question", "[HINT]h[SOLUTION]s", false},
		{"empty hint", "[HINT]   [SOLUTION]s", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseContent(tt.text, tt.user); !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("ParseContent() error = %v; want ErrMalformedResponse", err)
			}
		})
	}
}

func TestParseEvaluation(t *testing.T) {
	reply := `Correctness: Works for sorted input.
**Edge Cases**: Empty array is not handled.
Time Complexity: O(n log n)
Code Quality:
Readable, but names are short.
Final Verdict: Mostly correct.

Suggestions:
LINE 3: Check for an empty slice first.
- Line 7: Rename x to count.
not a suggestion`

	eval, err := ParseEvaluation(reply)
	if err != nil {
		t.Fatalf("ParseEvaluation() error = %v", err)
	}

	if len(eval.Sections) != 5 {
		t.Fatalf("len(Sections) = %d; want 5", len(eval.Sections))
	}
	if eval.Sections[1].Title != "Edge Cases" {
		t.Errorf("Sections[1].Title = %q; want %q", eval.Sections[1].Title, "Edge Cases")
	}
	if eval.Sections[3].Body != "Readable, but names are short." {
		t.Errorf("Code Quality body = %q", eval.Sections[3].Body)
	}
	if eval.Verdict() != "Mostly correct." {
		t.Errorf("Verdict() = %q; want %q", eval.Verdict(), "Mostly correct.")
	}

	want := []Suggestion{
		{Line: 3, Text: "Check for an empty slice first."},
		{Line: 7, Text: "Rename x to count."},
	}
	if len(eval.Suggestions) != len(want) {
		t.Fatalf("Suggestions = %+v; want %+v", eval.Suggestions, want)
	}
	for i := range want {
		if eval.Suggestions[i] != want[i] {
			t.Errorf("Suggestions[%d] = %+v; want %+v", i, eval.Suggestions[i], want[i])
		}
	}

	if strings.Contains(eval.Summary, "LINE 3") || strings.Contains(eval.Summary, "Suggestions") {
		t.Errorf("Summary contains suggestions: %q", eval.Summary)
	}
	if !strings.HasPrefix(eval.Summary, "Correctness:") {
		t.Errorf("Summary = %q; want it to start with Correctness:", eval.Summary)
	}
}

func TestParseEvaluation_Empty(t *testing.T) {
	if _, err := ParseEvaluation("  \n"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("ParseEvaluation() error = %v; want ErrMalformedResponse", err)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```go\nfunc f() {}\n```", "func f() {}"},
		{"func f() {}", "func f() {}"},
		{"\n```\na\n\nb\n```\n", "a\n\nb"},
	}
	for _, tt := range tests {
		if got := StripFences(tt.in); got != tt.want {
			t.Errorf("StripFences(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestService_GenerateQuestion(t *testing.T) {
	m := &mockCompleter{reply: "[QUESTION]q[HINT]h[SOLUTION]s"}
	svc := NewService(m, WithTemperature(0.2))

	c, err := svc.Generate(context.Background(), GenerateRequest{Topic: "Sorting", Language: "go", Difficulty: "Medium"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if c.Question != "q" {
		t.Errorf("Question = %q; want %q", c.Question, "q")
	}
	if !strings.Contains(m.last.System, "[QUESTION]") {
		t.Error("system prompt does not ask for [QUESTION]")
	}
	if !strings.Contains(m.last.Messages[0].Content, "Sorting") {
		t.Error("user prompt does not mention the topic")
	}
	if m.last.Temperature != 0.2 {
		t.Errorf("Temperature = %v; want 0.2", m.last.Temperature)
	}
}

func TestService_GenerateForUserQuestion(t *testing.T) {
	m := &mockCompleter{reply: "[HINT]h[SOLUTION]s"}
	svc := NewService(m)

	c, err := svc.Generate(context.Background(), GenerateRequest{Question: "Write a function that adds", Language: "go"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if c.Hint != "h" || c.Solution != "s" {
		t.Errorf("content = %+v", c)
	}
	if !strings.Contains(m.last.Messages[0].Content, "Write a function that adds") {
		t.Error("user prompt does not carry the question")
	}
}

func TestService_ErrorsWrap(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&mockCompleter{err: boom})

	if _, err := svc.Explain(context.Background(), "go", "x"); !errors.Is(err, boom) {
		t.Errorf("Explain() error = %v; want wrapped boom", err)
	}

	svc = NewService(&mockCompleter{reply: "```\n```"})
	if _, err := svc.ExplainSelection(context.Background(), "go", "x"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("ExplainSelection() error = %v; want ErrMalformedResponse", err)
	}
}

func TestService_EvaluateNumbersLearnerLines(t *testing.T) {
	m := &mockCompleter{reply: "Correctness: ok"}
	svc := NewService(m)

	if _, err := svc.Evaluate(context.Background(), "go", "ref", "a\nb"); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !strings.Contains(m.last.Messages[0].Content, "   2 | b") {
		t.Errorf("prompt = %q; want numbered learner lines", m.last.Messages[0].Content)
	}
}
