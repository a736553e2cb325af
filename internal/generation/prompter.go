package generation

import (
	"fmt"
	"strings"
)

// Prompter builds prompts for the completion backend
type Prompter struct{}

// NewPrompter creates a new prompter
func NewPrompter() *Prompter {
	return &Prompter{}
}

// Kind identifies what a prompt asks the backend to produce.
type Kind int

const (
	KindQuestion Kind = iota
	KindHintSolution
	KindEvaluation
	KindExplanation
	KindSelection
)

func (k Kind) String() string {
	switch k {
	case KindQuestion:
		return "question"
	case KindHintSolution:
		return "hint_solution"
	case KindEvaluation:
		return "evaluation"
	case KindExplanation:
		return "explanation"
	case KindSelection:
		return "selection"
	default:
		return "unknown"
	}
}

// SystemPrompt returns the system prompt for a given kind
func (p *Prompter) SystemPrompt(kind Kind) string {
	base := `You are a coding practice coach. The learner works inside a single source file.
Everything you return is inserted into that file verbatim.

HARD RULES:
- Never wrap code in markdown fences
- Never add prose before or after the requested output`

	switch kind {
	case KindQuestion:
		return base + `
- Reply with exactly three sections, in order: [QUESTION], [HINT], [SOLUTION]
- The question is a self-contained exercise, a few sentences long
- The hint nudges toward the approach without giving code
- The solution is complete, runnable code only`

	case KindHintSolution:
		return base + `
- The learner wrote the question themselves
- Reply with exactly two sections, in order: [HINT], [SOLUTION]
- The hint nudges toward the approach without giving code
- The solution is complete, runnable code only`

	case KindEvaluation:
		return base + `
- Compare the learner's code with the reference solution
- Use these headings, each on its own line followed by a colon:
  Correctness, Edge Cases, Time Complexity, Code Quality, Final Verdict
- Optionally end with a "Suggestions:" heading followed by lines of the form
  LINE <n>: <suggestion>
  where <n> is the 1-based line number in the learner's file
- Plain text only, no code`

	case KindExplanation, KindSelection:
		return base + `
- Return the exact code you were given, line for line
- Add short explanatory comments using the language's own comment syntax
- Do not change, reorder, or remove any code`

	default:
		return base
	}
}

// QuestionPrompt asks for a new question on topic.
func (p *Prompter) QuestionPrompt(topic, language, difficulty string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Topic: %s\n", topic))
	sb.WriteString(fmt.Sprintf("## Language: %s\n", language))
	sb.WriteString(fmt.Sprintf("## Difficulty: %s\n\n", difficulty))
	sb.WriteString("Write one practice question with a hint and a reference solution.\n")
	return sb.String()
}

// HintSolutionPrompt asks for a hint and solution to a learner's question.
func (p *Prompter) HintSolutionPrompt(question, language string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Language: %s\n\n", language))
	sb.WriteString("## Question\n\n")
	sb.WriteString(question)
	sb.WriteString("\n\nProvide a hint and a reference solution.\n")
	return sb.String()
}

// EvaluationPrompt asks for a review of learner code.
func (p *Prompter) EvaluationPrompt(language, reference, learner string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Language: %s\n\n", language))
	sb.WriteString("## Reference Solution\n\n")
	sb.WriteString(reference)
	sb.WriteString("\n\n## Learner Code\n\n")
	sb.WriteString(numbered(learner))
	sb.WriteString("\nEvaluate the learner code.\n")
	return sb.String()
}

// ExplainPrompt asks for an annotated copy of code.
func (p *Prompter) ExplainPrompt(language, code string) string {
	return fmt.Sprintf("## Language: %s\n\n## Code\n\n%s\n", language, code)
}

// SelectionPrompt asks for an annotated copy of a fragment.
func (p *Prompter) SelectionPrompt(language, fragment string) string {
	return fmt.Sprintf("## Language: %s\n\n## Fragment (part of a larger file)\n\n%s\n", language, fragment)
}

func numbered(code string) string {
	var sb strings.Builder
	for i, line := range strings.Split(code, "\n") {
		sb.WriteString(fmt.Sprintf("%4d | %s\n", i+1, line))
	}
	return sb.String()
}
