package generation

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var ErrMalformedResponse = errors.New("malformed response")

// Content is a generated question with its hint and reference solution.
// Question is empty when the learner wrote the question.
type Content struct {
	Question string
	Hint     string
	Solution string
}

// Section is one headed part of an evaluation.
type Section struct {
	Title string
	Body  string
}

// Suggestion is an inline note for a one-based line of learner code.
type Suggestion struct {
	Line int
	Text string
}

// Evaluation is a parsed code review.
type Evaluation struct {
	Summary     string
	Sections    []Section
	Suggestions []Suggestion
}

// Verdict returns the Final Verdict section body, if any.
func (e *Evaluation) Verdict() string {
	for _, s := range e.Sections {
		if strings.EqualFold(s.Title, "Final Verdict") {
			return s.Body
		}
	}
	return ""
}

var (
	contentTags = []string{"[QUESTION]", "[HINT]", "[SOLUTION]"}

	sectionTitles = []string{"Correctness", "Edge Cases", "Time Complexity", "Code Quality", "Final Verdict"}

	headingPattern    = regexp.MustCompile(`^[#*\s]*([A-Za-z ]+?)[*\s]*:[*\s]*(.*)$`)
	suggestionsHeader = regexp.MustCompile(`(?i)^[#*\s]*suggestions[*\s]*:?[*\s]*$`)
	suggestionLine    = regexp.MustCompile(`(?i)^[-*\s]*line\s+(\d+)\s*[:.)-]\s*(.+)$`)
	fencePattern      = regexp.MustCompile("^```[A-Za-z0-9_+-]*\\s*$")
)

// ParseContent splits a [QUESTION]/[HINT]/[SOLUTION] reply. With
// userQuestion set, only hint and solution are required.
func ParseContent(text string, userQuestion bool) (*Content, error) {
	parts := make(map[string]string, len(contentTags))

	rest := text
	for i, tag := range contentTags {
		idx := strings.Index(rest, tag)
		if idx < 0 {
			continue
		}
		body := rest[idx+len(tag):]
		end := len(body)
		for _, next := range contentTags[i+1:] {
			if j := strings.Index(body, next); j >= 0 && j < end {
				end = j
			}
		}
		parts[tag] = strings.TrimSpace(body[:end])
		rest = body[end:]
	}

	c := &Content{
		Question: parts["[QUESTION]"],
		Hint:     parts["[HINT]"],
		Solution: StripFences(parts["[SOLUTION]"]),
	}

	if c.Hint == "" || c.Solution == "" || (!userQuestion && c.Question == "") {
		return nil, ErrMalformedResponse
	}
	if userQuestion {
		c.Question = ""
	}
	return c, nil
}

// StripFences removes markdown code fence lines and surrounding blank
// lines.
func StripFences(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if fencePattern.MatchString(strings.TrimSpace(line)) {
			continue
		}
		out = append(out, line)
	}
	return strings.Trim(strings.Join(out, "\n"), "\n")
}

// ParseEvaluation splits an evaluation into sections and inline
// suggestions. Summary is the reply minus the suggestions part.
func ParseEvaluation(text string) (*Evaluation, error) {
	text = StripFences(strings.TrimSpace(text))
	if text == "" {
		return nil, ErrMalformedResponse
	}

	eval := &Evaluation{}

	var (
		summary       []string
		current       *Section
		inSuggestions bool
	)

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if suggestionsHeader.MatchString(trimmed) {
			inSuggestions = true
			continue
		}
		if inSuggestions {
			if m := suggestionLine.FindStringSubmatch(trimmed); m != nil {
				n, err := strconv.Atoi(m[1])
				if err == nil && n > 0 {
					eval.Suggestions = append(eval.Suggestions, Suggestion{Line: n, Text: strings.TrimSpace(m[2])})
				}
			}
			continue
		}

		summary = append(summary, line)

		if m := headingPattern.FindStringSubmatch(trimmed); m != nil && isSectionTitle(m[1]) {
			eval.Sections = append(eval.Sections, Section{Title: canonicalTitle(m[1])})
			current = &eval.Sections[len(eval.Sections)-1]
			if body := strings.TrimSpace(m[2]); body != "" {
				current.Body = body
			}
			continue
		}
		if current != nil && trimmed != "" {
			if current.Body != "" {
				current.Body += "\n"
			}
			current.Body += trimmed
		}
	}

	eval.Summary = strings.TrimSpace(strings.Join(summary, "\n"))
	if eval.Summary == "" {
		return nil, ErrMalformedResponse
	}
	return eval, nil
}

func isSectionTitle(s string) bool {
	return canonicalTitle(s) != ""
}

func canonicalTitle(s string) string {
	s = strings.TrimSpace(s)
	for _, t := range sectionTitles {
		if strings.EqualFold(s, t) {
			return t
		}
	}
	return ""
}
