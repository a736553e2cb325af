package blocks

import "strings"

// Comment prefixes every line of text. Empty lines keep a bare comment
// marker so the block does not end early.
func Comment(prefix, text string) string {
	bare := strings.TrimRight(prefix, " ")
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = bare
			continue
		}
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

// QuestionHeader renders the question block placed at the top of the
// document, terminated by a blank line.
func QuestionHeader(prefix, difficulty, question string) string {
	return prefix + MarkerQuestion + difficulty + ")\n" + Comment(prefix, question) + "\n\n"
}

// HintBlock renders a hint, terminated by a blank line.
func HintBlock(prefix, hint string) string {
	first, rest, _ := strings.Cut(strings.TrimSpace(hint), "\n")
	out := prefix + MarkerHint + " " + first + "\n"
	if rest != "" {
		out += Comment(prefix, rest) + "\n"
	}
	return out + "\n"
}

// SolutionBlock renders the reference solution appended after text. The
// solution itself occupies whole lines and is left uncommented.
func SolutionBlock(text, prefix, solution string) string {
	return separator(text) + "\n" + prefix + MarkerSolution + "\n" + strings.TrimRight(solution, "\n") + "\n"
}

// EvaluationBlock renders the evaluation summary appended after text.
func EvaluationBlock(text, prefix, summary string) string {
	return separator(text) + "\n" + prefix + MarkerEvaluation + "\n" + Comment(prefix, summary) + "\n"
}

// SuggestionLine renders one inline suggestion with the indentation of the
// line it annotates.
func SuggestionLine(prefix, indent, text string) string {
	return indent + prefix + MarkerSuggestion + " " + strings.TrimSpace(text) + "\n"
}

func separator(text string) string {
	if text != "" && !strings.HasSuffix(text, "\n") {
		return "\n"
	}
	return ""
}
