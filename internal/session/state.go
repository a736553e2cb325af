package session

import (
	"regexp"
	"strings"

	"github.com/felixgeelhaar/kata/internal/blocks"
)

// Context keys published through ContextSink.
const (
	KeyHasQuestion       = "kata.hasQuestion"
	KeySolutionVisible   = "kata.solutionVisible"
	KeyHintVisible       = "kata.hintVisible"
	KeyHasExplanation    = "kata.hasExplanation"
	KeyEvaluationVisible = "kata.evaluationVisible"
)

// Action is a user-facing command name.
type Action string

// Actions offered by the action picker.
const (
	ActionShowHint             Action = "Show Hint"
	ActionHideHint             Action = "Hide Hint"
	ActionShowSolution         Action = "Show Solution"
	ActionExplainCode          Action = "Explain Code"
	ActionRemoveExplanation    Action = "Remove Explanation"
	ActionEvaluate             Action = "Evaluate Code"
	ActionRemoveEvaluation     Action = "Remove Evaluation"
	ActionExplainSelection     Action = "Explain Selection"
	ActionRemoveSelExplanation Action = "Remove Selection Explanation"
)

// Commands available regardless of state.
const (
	ActionStart       Action = "Start Practice"
	ActionRun         Action = "Run Code"
	ActionStartTimer  Action = "Start Timer"
	ActionPauseTimer  Action = "Pause Timer"
	ActionResumeTimer Action = "Resume Timer"
	ActionResetTimer  Action = "Reset Timer"
	ActionStopTimer   Action = "Stop Timer"
)

// Commands lists the always-available commands in menu order.
var Commands = []Action{
	ActionStart, ActionRun,
	ActionStartTimer, ActionPauseTimer, ActionResumeTimer, ActionResetTimer, ActionStopTimer,
}

// Flags is the state that decides which actions are legal.
type Flags struct {
	HasQuestion       bool `json:"has_question"`
	SolutionVisible   bool `json:"solution_visible"`
	HintVisible       bool `json:"hint_visible"`
	HasExplanation    bool `json:"has_explanation"`
	EvaluationVisible bool `json:"evaluation_visible"`
}

type flagEntry struct {
	key   string
	value bool
}

func (f Flags) entries() []flagEntry {
	return []flagEntry{
		{KeyHasQuestion, f.HasQuestion},
		{KeySolutionVisible, f.SolutionVisible},
		{KeyHintVisible, f.HintVisible},
		{KeyHasExplanation, f.HasExplanation},
		{KeyEvaluationVisible, f.EvaluationVisible},
	}
}

// LegalActions returns the ordered list of actions offerable in state f.
// hasSelection reports a non-empty editor selection; explained counts
// outstanding selection explanations. The list may be empty.
func LegalActions(f Flags, hasSelection bool, explained int) []Action {
	var out []Action

	if f.HasQuestion && !f.SolutionVisible {
		if f.HintVisible {
			out = append(out, ActionHideHint)
		} else {
			out = append(out, ActionShowHint)
		}
		out = append(out, ActionShowSolution)
	}

	if f.SolutionVisible {
		if f.HasExplanation {
			out = append(out, ActionRemoveExplanation)
		} else {
			out = append(out, ActionExplainCode)
		}
		if f.EvaluationVisible {
			out = append(out, ActionRemoveEvaluation)
		} else {
			out = append(out, ActionEvaluate)
		}
	}

	if hasSelection {
		out = append(out, ActionExplainSelection)
	}
	if explained > 0 {
		out = append(out, ActionRemoveSelExplanation)
	}
	return out
}

// questionPhrases are typical openings of a learner-written exercise.
var questionPhrases = regexp.MustCompile(`(?i)\b(` + strings.Join([]string{
	`write a (function|program|method|class|script)`,
	`implement (a|an|the)\b`,
	`given (a|an|two|the) (array|list|string|integer|number|tree|graph|linked list|matrix|sorted)`,
	`create a function`,
	`design (a|an) `,
	`determine (whether|if)`,
	`find (the|all) (longest|shortest|maximum|minimum|number of|first|kth)`,
}, "|") + `)`)

// DetectQuestion scans the comment runs of text for an explicit question
// header or a phrase that reads like an exercise, and returns the
// question text.
func DetectQuestion(text, prefix string) (string, bool) {
	if r, ok := blocks.Locate(text, prefix, blocks.MarkerQuestion); ok {
		lines := blocks.Lines(text)[r.StartLine+1 : r.EndLine]
		return uncomment(lines, prefix), true
	}

	var run []string
	flush := func() (string, bool) {
		if len(run) == 0 {
			return "", false
		}
		q := uncomment(run, prefix)
		run = run[:0]
		if questionPhrases.MatchString(q) {
			return q, true
		}
		return "", false
	}

	inBlock := false
	for _, line := range blocks.Lines(text) {
		if blocks.IsComment(line, prefix) && strings.TrimSpace(line) != "" {
			// a marked block ends the run and owns its comment lines
			if isMarked(line, prefix) {
				if q, ok := flush(); ok {
					return q, true
				}
				inBlock = true
			}
			if !inBlock {
				run = append(run, line)
			}
			continue
		}
		inBlock = false
		if q, ok := flush(); ok {
			return q, true
		}
	}
	return flush()
}

var blockMarkers = []string{
	blocks.MarkerQuestion, blocks.MarkerHint, blocks.MarkerSolution,
	blocks.MarkerEvaluation, blocks.MarkerSuggestion,
}

func isMarked(line, prefix string) bool {
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), strings.TrimSpace(prefix)))
	for _, m := range blockMarkers {
		if strings.HasPrefix(body, m) {
			return true
		}
	}
	return false
}

func uncomment(lines []string, prefix string) string {
	comment := strings.TrimSpace(prefix)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		out = append(out, strings.TrimSpace(strings.TrimPrefix(trimmed, comment)))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
