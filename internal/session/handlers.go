package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/felixgeelhaar/kata/internal/blocks"
	"github.com/felixgeelhaar/kata/internal/document"
	"github.com/felixgeelhaar/kata/internal/generation"
	"github.com/felixgeelhaar/kata/internal/telemetry"
)

const customTopic = "Custom topic..."

// Do runs the named action.
func (s *Session) Do(ctx context.Context, action Action, sel Selection) error {
	switch action {
	case ActionStart:
		return s.Start(ctx)
	case ActionShowHint:
		return s.ShowHint(ctx)
	case ActionHideHint:
		return s.HideHint(ctx)
	case ActionShowSolution:
		return s.ShowSolution(ctx)
	case ActionExplainCode:
		return s.ExplainCode(ctx)
	case ActionRemoveExplanation:
		return s.RemoveExplanation(ctx)
	case ActionEvaluate:
		return s.Evaluate(ctx)
	case ActionRemoveEvaluation:
		return s.RemoveEvaluation(ctx)
	case ActionExplainSelection:
		return s.ExplainSelection(ctx, sel)
	case ActionRemoveSelExplanation:
		return s.RemoveSelectionExplanation(ctx)
	case ActionRun:
		return s.Run(ctx)
	case ActionStartTimer, ActionPauseTimer, ActionResumeTimer, ActionResetTimer, ActionStopTimer:
		s.Timer(action)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// Choose presents the legal actions through the prompter and runs the
// chosen one.
func (s *Session) Choose(ctx context.Context, sel Selection) error {
	actions := s.Actions(sel)
	if len(actions) == 0 {
		s.notify.Info("Nothing more to do for this question.")
		return nil
	}

	if s.cfg.Prompter == nil {
		return s.fail(fmt.Errorf("%w: no prompter", ErrPrecondition))
	}

	options := make([]string, len(actions))
	for i, a := range actions {
		options[i] = string(a)
	}
	picked, ok := s.cfg.Prompter.Pick(ctx, "Choose an action", options)
	if !ok {
		return ErrCancelled
	}
	return s.Do(ctx, Action(picked), sel)
}

// Start asks for a topic and difficulty, then behaves like StartWith.
func (s *Session) Start(ctx context.Context) error {
	if _, err := s.document(); err != nil {
		return s.fail(err)
	}
	if s.cfg.Prompter == nil {
		return s.fail(fmt.Errorf("%w: start needs a prompter", ErrPrecondition))
	}

	topic, ok := s.pickTopic(ctx)
	if !ok {
		return ErrCancelled
	}
	difficulty, ok := s.cfg.Prompter.Pick(ctx, "Select difficulty", s.cfg.Difficulties)
	if !ok {
		return ErrCancelled
	}
	return s.StartWith(ctx, topic, difficulty)
}

// StartWith generates a question for topic and difficulty and writes its
// header at the top of the document, replacing any previous question.
func (s *Session) StartWith(ctx context.Context, topic, difficulty string) error {
	doc, err := s.document()
	if err != nil {
		return s.fail(err)
	}
	if s.cfg.Generator == nil {
		return s.fail(errNoGenerator)
	}
	topic = strings.TrimSpace(topic)
	if topic == "" || difficulty == "" {
		return s.fail(fmt.Errorf("%w: topic and difficulty are required", ErrPrecondition))
	}

	lang := doc.LanguageID()
	content, err := s.cfg.Generator.Generate(ctx, generation.GenerateRequest{
		Topic:      topic,
		Language:   lang,
		Difficulty: difficulty,
	})
	if err != nil {
		return s.fail(fmt.Errorf("%w: question: %w", ErrGeneration, err))
	}

	prefix := blocks.CommentPrefix(lang)
	err = s.mutate(ctx, doc, func(text string) ([]document.Edit, error) {
		var edits []document.Edit
		if r, ok := blocks.Locate(text, prefix, blocks.MarkerQuestion); ok {
			edits = append(edits, blocks.Remove(text, r))
		}
		return append(edits, blocks.InsertAt(0, blocks.QuestionHeader(prefix, difficulty, content.Question))), nil
	})
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.clearLocked()
	s.clearSelectionLocked()
	s.question = content.Question
	s.storedHint = content.Hint
	s.storedSolution = content.Solution
	s.publishLocked(Flags{HasQuestion: true}, false)
	s.mu.Unlock()

	s.tracker.Reset()
	slog.Info("question started", "session", s.id, "topic", topic, "difficulty", difficulty, "language", lang)
	return nil
}

func (s *Session) pickTopic(ctx context.Context) (string, bool) {
	if len(s.cfg.Topics) == 0 {
		return s.cfg.Prompter.Input(ctx, "Enter a topic", "e.g. Sorting")
	}

	options := append(append([]string{}, s.cfg.Topics...), customTopic)
	topic, ok := s.cfg.Prompter.Pick(ctx, "Select a topic", options)
	if !ok {
		return "", false
	}
	if topic == customTopic {
		topic, ok = s.cfg.Prompter.Input(ctx, "Enter a topic", "e.g. Sorting")
		if !ok || strings.TrimSpace(topic) == "" {
			return "", false
		}
	}
	return strings.TrimSpace(topic), true
}

// ShowHint inserts the hint block below the question.
func (s *Session) ShowHint(ctx context.Context) error {
	doc, err := s.document()
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	f, hint := s.flags, s.storedHint
	s.mu.Unlock()

	if !f.HasQuestion || f.SolutionVisible {
		return s.fail(fmt.Errorf("%w: show hint", ErrPrecondition))
	}

	var lazy *generation.Content
	if hint == "" {
		if lazy, err = s.generateForUserQuestion(ctx, doc); err != nil {
			return s.fail(err)
		}
		hint = lazy.Hint
	}

	prefix := blocks.CommentPrefix(doc.LanguageID())
	err = s.mutate(ctx, doc, func(text string) ([]document.Edit, error) {
		if blocks.Revealed(text, prefix, blocks.MarkerHint, hint) {
			return nil, fmt.Errorf("%w: hint", ErrAlreadyRevealed)
		}
		offset := questionEnd(text, prefix)
		block := blocks.HintBlock(prefix, hint)
		if offset == len(text) && text != "" && !strings.HasSuffix(text, "\n") {
			block = "\n" + block
		}
		return []document.Edit{blocks.InsertAt(offset, block)}, nil
	})

	if err != nil && !errors.Is(err, ErrAlreadyRevealed) {
		return s.fail(err)
	}

	s.mu.Lock()
	if lazy != nil {
		s.storeLazyLocked(lazy)
	}
	if err == nil {
		s.hintsUsed++
	}
	s.setLocked(func(f *Flags) { f.HintVisible = true })
	s.mu.Unlock()

	if err != nil {
		return s.fail(err)
	}
	return nil
}

// HideHint removes the hint block. The hint stays stored.
func (s *Session) HideHint(ctx context.Context) error {
	doc, err := s.document()
	if err != nil {
		return s.fail(err)
	}
	if !s.Flags().HintVisible {
		return s.fail(fmt.Errorf("%w: hide hint", ErrPrecondition))
	}

	prefix := blocks.CommentPrefix(doc.LanguageID())
	err = s.mutate(ctx, doc, func(text string) ([]document.Edit, error) {
		r, ok := blocks.Locate(text, prefix, blocks.MarkerHint)
		if !ok {
			return nil, fmt.Errorf("%w: hint", ErrBlockNotFound)
		}
		return []document.Edit{blocks.Remove(text, r)}, nil
	})
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.setLocked(func(f *Flags) { f.HintVisible = false })
	s.mu.Unlock()
	return nil
}

// ShowSolution appends the reference solution. It cannot be hidden again.
func (s *Session) ShowSolution(ctx context.Context) error {
	doc, err := s.document()
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	f, solution := s.flags, s.storedSolution
	s.mu.Unlock()

	if !f.HasQuestion {
		return s.fail(fmt.Errorf("%w: show solution", ErrPrecondition))
	}
	if f.SolutionVisible {
		return s.fail(fmt.Errorf("%w: solution", ErrAlreadyRevealed))
	}

	var lazy *generation.Content
	if solution == "" {
		if lazy, err = s.generateForUserQuestion(ctx, doc); err != nil {
			return s.fail(err)
		}
		solution = lazy.Solution
	}

	prefix := blocks.CommentPrefix(doc.LanguageID())
	err = s.mutate(ctx, doc, func(text string) ([]document.Edit, error) {
		if blocks.Revealed(text, prefix, blocks.MarkerSolution, solution) {
			return nil, fmt.Errorf("%w: solution", ErrAlreadyRevealed)
		}
		return []document.Edit{blocks.InsertAt(len(text), blocks.SolutionBlock(text, prefix, solution))}, nil
	})

	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if lazy != nil {
		s.storeLazyLocked(lazy)
	}
	s.solutionViewed = true
	s.setLocked(func(f *Flags) { f.SolutionVisible = true })
	s.mu.Unlock()
	return nil
}

// ExplainCode replaces the revealed solution with an annotated copy.
func (s *Session) ExplainCode(ctx context.Context) error {
	doc, err := s.document()
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	f, solution := s.flags, s.storedSolution
	s.mu.Unlock()

	if !f.SolutionVisible || solution == "" {
		return s.fail(fmt.Errorf("%w: explain code", ErrPrecondition))
	}
	if f.HasExplanation {
		return s.fail(fmt.Errorf("%w: explanation", ErrAlreadyRevealed))
	}
	if !blocks.Contains(doc.Text(), solution) {
		return s.fail(fmt.Errorf("%w: solution", ErrBlockNotFound))
	}
	if s.cfg.Generator == nil {
		return s.fail(errNoGenerator)
	}

	explained, err := s.cfg.Generator.Explain(ctx, doc.LanguageID(), solution)
	if err != nil {
		return s.fail(fmt.Errorf("%w: explanation: %w", ErrGeneration, err))
	}
	explained = strings.TrimRight(explained, "\n")

	err = s.mutate(ctx, doc, func(text string) ([]document.Edit, error) {
		edit, ok := blocks.ReplaceExact(text, solution, explained)
		if !ok {
			return nil, fmt.Errorf("%w: solution", ErrBlockNotFound)
		}
		return []document.Edit{edit}, nil
	})
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.storedExplanation = explained
	s.setLocked(func(f *Flags) { f.HasExplanation = true })
	s.mu.Unlock()
	return nil
}

// RemoveExplanation swaps the annotated solution back for the original.
func (s *Session) RemoveExplanation(ctx context.Context) error {
	doc, err := s.document()
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	f, solution, explanation := s.flags, s.storedSolution, s.storedExplanation
	s.mu.Unlock()

	if !f.HasExplanation || explanation == "" {
		return s.fail(fmt.Errorf("%w: remove explanation", ErrPrecondition))
	}

	err = s.mutate(ctx, doc, func(text string) ([]document.Edit, error) {
		edit, ok := blocks.ReplaceExact(text, explanation, solution)
		if !ok {
			return nil, fmt.Errorf("%w: explanation", ErrBlockNotFound)
		}
		return []document.Edit{edit}, nil
	})
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.storedExplanation = ""
	s.setLocked(func(f *Flags) { f.HasExplanation = false })
	s.mu.Unlock()
	return nil
}

// Evaluate reviews the document against the reference solution, appends
// the summary and inserts inline suggestions above the lines they name.
func (s *Session) Evaluate(ctx context.Context) error {
	doc, err := s.document()
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	f, solution := s.flags, s.storedSolution
	s.mu.Unlock()

	if !f.SolutionVisible {
		return s.fail(fmt.Errorf("%w: evaluate", ErrPrecondition))
	}

	lang := doc.LanguageID()
	prefix := blocks.CommentPrefix(lang)
	before := doc.Text()
	if _, ok := blocks.Locate(before, prefix, blocks.MarkerEvaluation); ok || f.EvaluationVisible {
		return s.fail(fmt.Errorf("%w: evaluation", ErrAlreadyRevealed))
	}
	if s.cfg.Generator == nil {
		return s.fail(errNoGenerator)
	}

	eval, err := s.cfg.Generator.Evaluate(ctx, lang, solution, before)
	if err != nil {
		return s.fail(fmt.Errorf("%w: evaluation: %w", ErrGeneration, err))
	}

	notes := make([]blocks.Annotation, 0, len(eval.Suggestions))
	for _, sg := range eval.Suggestions {
		notes = append(notes, blocks.Annotation{Line: sg.Line, Text: sg.Text})
	}

	err = s.mutate(ctx, doc, func(text string) ([]document.Edit, error) {
		if _, ok := blocks.Locate(text, prefix, blocks.MarkerEvaluation); ok {
			return nil, fmt.Errorf("%w: evaluation", ErrAlreadyRevealed)
		}
		// The summary goes at the end first; suggestions follow in
		// descending line order so every offset stays valid.
		edits := []document.Edit{blocks.InsertAt(len(text), blocks.EvaluationBlock(text, prefix, eval.Summary))}
		return append(edits, blocks.InsertAnnotations(text, prefix, notes)...), nil
	})
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.setLocked(func(f *Flags) { f.EvaluationVisible = true })
	s.mu.Unlock()

	if v := eval.Verdict(); v != "" {
		s.notify.Info("Verdict: " + firstLine(v))
	}
	return nil
}

// RemoveEvaluation deletes the evaluation block and every inline
// suggestion in one mutation.
func (s *Session) RemoveEvaluation(ctx context.Context) error {
	doc, err := s.document()
	if err != nil {
		return s.fail(err)
	}
	if !s.Flags().EvaluationVisible {
		return s.fail(fmt.Errorf("%w: remove evaluation", ErrPrecondition))
	}

	prefix := blocks.CommentPrefix(doc.LanguageID())
	err = s.mutate(ctx, doc, func(text string) ([]document.Edit, error) {
		r, ok := blocks.Locate(text, prefix, blocks.MarkerEvaluation)
		if !ok {
			return nil, fmt.Errorf("%w: evaluation", ErrBlockNotFound)
		}
		block := blocks.Remove(text, blocks.WithLeadingBlank(text, r))

		edits := []document.Edit{block}
		for _, e := range blocks.RemoveMarkedLines(text, prefix, blocks.MarkerSuggestion) {
			if e.Offset >= block.Offset && e.Offset < block.Offset+block.Length {
				continue
			}
			edits = append(edits, e)
		}
		sort.SliceStable(edits, func(i, j int) bool {
			return edits[i].Offset > edits[j].Offset
		})
		return edits, nil
	})
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.setLocked(func(f *Flags) { f.EvaluationVisible = false })
	s.mu.Unlock()
	return nil
}

// ExplainSelection replaces the selected fragment with an annotated copy.
// The document is snapshotted before the first such explanation.
func (s *Session) ExplainSelection(ctx context.Context, sel Selection) error {
	doc, err := s.document()
	if err != nil {
		return s.fail(err)
	}
	if sel.Empty() {
		return s.fail(fmt.Errorf("%w: empty selection", ErrPrecondition))
	}

	before := doc.Text()
	if sel.Offset < 0 || sel.Offset+sel.Length > len(before) {
		return s.fail(fmt.Errorf("%w: selection outside document", ErrPrecondition))
	}
	fragment := before[sel.Offset : sel.Offset+sel.Length]
	if s.cfg.Generator == nil {
		return s.fail(errNoGenerator)
	}

	explained, err := s.cfg.Generator.ExplainSelection(ctx, doc.LanguageID(), fragment)
	if err != nil {
		return s.fail(fmt.Errorf("%w: selection: %w", ErrGeneration, err))
	}
	explained = strings.TrimRight(explained, "\n")
	if strings.TrimSpace(explained) == "" {
		return s.fail(fmt.Errorf("%w: selection: empty explanation", ErrGeneration))
	}
	replacement := explained
	if strings.HasSuffix(fragment, "\n") {
		replacement += "\n"
	}

	var snapshot string
	err = s.mutate(ctx, doc, func(text string) ([]document.Edit, error) {
		if sel.Offset+sel.Length > len(text) || text[sel.Offset:sel.Offset+sel.Length] != fragment {
			return nil, fmt.Errorf("%w: selection changed", ErrBlockNotFound)
		}
		snapshot = text
		return []document.Edit{{Offset: sel.Offset, Length: sel.Length, Text: replacement}}, nil
	})
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if len(s.selectionBlocks) == 0 {
		s.selectionSnapshot = snapshot
	}
	s.selectionBlocks = append(s.selectionBlocks, explained)
	s.mu.Unlock()
	return nil
}

// RemoveSelectionExplanation restores the document as it was before the
// first selection explanation.
func (s *Session) RemoveSelectionExplanation(ctx context.Context) error {
	doc, err := s.document()
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	snapshot, n := s.selectionSnapshot, len(s.selectionBlocks)
	s.mu.Unlock()
	if n == 0 {
		return s.fail(fmt.Errorf("%w: no selection explanation", ErrPrecondition))
	}

	err = s.mutate(ctx, doc, func(text string) ([]document.Edit, error) {
		return []document.Edit{{Offset: 0, Length: len(text), Text: snapshot}}, nil
	})
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.clearSelectionLocked()
	s.mu.Unlock()

	// the snapshot may predate other reveals
	s.Resync()
	return nil
}

// Run executes the active file. A successful run stops a running tracker
// and submits a practice record in the background.
func (s *Session) Run(ctx context.Context) error {
	doc, err := s.document()
	if err != nil {
		return s.fail(err)
	}
	if s.cfg.Runner == nil || s.cfg.Terminal == nil {
		return s.fail(fmt.Errorf("%w: no runner configured", ErrRunFailed))
	}

	lang := doc.LanguageID()
	cmd, err := s.cfg.Runner.Command(doc.Path(), lang)
	if err != nil {
		return s.fail(err)
	}

	slog.Debug("running file", "session", s.id, "path", doc.Path(), "language", lang)
	if err := s.cfg.Terminal.Run(ctx, cmd); err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrRunFailed, err))
	}

	if !s.tracker.IsActive() {
		return nil
	}
	elapsed := s.tracker.Stop()
	s.notify.Info("Completed in " + elapsed)

	s.mu.Lock()
	rec := telemetry.NewRecord(s.question, elapsed, s.hintsUsed, s.solutionViewed, lang)
	s.mu.Unlock()
	s.submit(rec)
	return nil
}

func (s *Session) submit(rec telemetry.Record) {
	if s.cfg.Telemetry == nil {
		return
	}

	var credential string
	if c := s.cfg.Credentials; c != nil && c.HasCredential() {
		cred, err := c.Credential()
		if err != nil {
			slog.Warn("read credential", "error", err)
		}
		credential = cred
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		slog.Debug("session closed, dropping practice record", "session", s.id)
		return
	}
	s.pending.Add(1)
	s.mu.Unlock()

	done := telemetry.Dispatch(s.cfg.Telemetry, credential, rec, s.cfg.TelemetryTimeout)
	go func() {
		<-done
		s.pending.Done()
	}()
}

// Timer applies a timer command.
func (s *Session) Timer(action Action) {
	switch action {
	case ActionStartTimer:
		s.tracker.Start()
	case ActionPauseTimer:
		s.tracker.Pause()
	case ActionResumeTimer:
		s.tracker.Resume()
	case ActionResetTimer:
		s.tracker.Reset()
	case ActionStopTimer:
		elapsed := s.tracker.Stop()
		s.notify.Info("Timer stopped at " + elapsed)
	}
}

// generateForUserQuestion produces hint and solution for a question the
// learner wrote themselves.
func (s *Session) generateForUserQuestion(ctx context.Context, doc document.Document) (*generation.Content, error) {
	s.mu.Lock()
	question, userWritten := s.question, s.userWritten
	s.mu.Unlock()

	if !userWritten || question == "" {
		return nil, fmt.Errorf("%w: nothing generated for this question", ErrPrecondition)
	}
	if s.cfg.Generator == nil {
		return nil, errNoGenerator
	}
	content, err := s.cfg.Generator.Generate(ctx, generation.GenerateRequest{
		Question: question,
		Language: doc.LanguageID(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: hint and solution: %w", ErrGeneration, err)
	}
	return content, nil
}

func (s *Session) storeLazyLocked(c *generation.Content) {
	if s.storedHint == "" {
		s.storedHint = c.Hint
	}
	if s.storedSolution == "" {
		s.storedSolution = c.Solution
	}
}

// maxMutateAttempts bounds rebuilds when the document keeps changing
// between snapshot and apply.
const maxMutateAttempts = 3

// mutate applies the edits built from the current text under the guard.
// Documents that support versioned edits reject a build made against a
// text that has since changed, and the edits are rebuilt.
func (s *Session) mutate(ctx context.Context, doc document.Document, build func(text string) ([]document.Edit, error)) error {
	return s.guard.Do(func() error {
		vdoc, versioned := doc.(document.Versioned)
		for attempt := 1; ; attempt++ {
			text, version := doc.Text(), -1
			if versioned {
				text, version = vdoc.Snapshot()
			}

			edits, err := build(text)
			if err != nil {
				return err
			}
			if len(edits) == 0 {
				return nil
			}

			if versioned {
				err = vdoc.ApplyAt(ctx, version, edits...)
			} else {
				err = doc.Apply(ctx, edits...)
			}
			if errors.Is(err, document.ErrStale) && attempt < maxMutateAttempts {
				slog.Debug("document changed during edit, rebuilding", "session", s.id, "attempt", attempt)
				continue
			}
			if err != nil {
				return fmt.Errorf("apply edit: %w", err)
			}
			return nil
		}
	})
}

func (s *Session) document() (document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, ErrNoActiveDocument
	}
	return s.doc, nil
}

func (s *Session) setLocked(update func(*Flags)) {
	f := s.flags
	update(&f)
	s.publishLocked(f, false)
}

// fail reports err through the notifier and returns it.
func (s *Session) fail(err error) error {
	switch {
	case errors.Is(err, ErrCancelled):
	case errors.Is(err, ErrPrecondition), errors.Is(err, ErrAlreadyRevealed):
		s.notify.Info(message(err))
	case errors.Is(err, ErrNoActiveDocument):
		s.notify.Warn(message(err))
	default:
		s.notify.Error(message(err))
	}
	if !errors.Is(err, ErrCancelled) {
		slog.Debug("action aborted", "session", s.id, "error", err)
	}
	return err
}

func message(err error) string {
	switch {
	case errors.Is(err, ErrNoActiveDocument):
		return "Open a file to practice in first."
	case errors.Is(err, ErrAlreadyRevealed):
		return "Already revealed."
	case errors.Is(err, ErrBlockNotFound):
		return "Could not find the block in the document; it may have been edited."
	case errors.Is(err, ErrGeneration):
		return "Generation failed. Please try again."
	case errors.Is(err, ErrUnsupportedLanguage):
		return "Running this language is not supported."
	case errors.Is(err, ErrRunFailed):
		return "Run failed: " + err.Error()
	}
	return err.Error()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

// questionEnd returns the offset just past the question block, or past
// the document's leading comment when the learner wrote the question
// without a header.
func questionEnd(text, prefix string) int {
	if r, ok := blocks.Locate(text, prefix, blocks.MarkerQuestion); ok {
		return blocks.LineOffset(text, r.EndLine)
	}

	lines := blocks.Lines(text)
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	start := i
	for i < len(lines) && strings.TrimSpace(lines[i]) != "" && blocks.IsComment(lines[i], prefix) {
		i++
	}
	if i == start {
		return 0
	}
	if i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	return blocks.LineOffset(text, i)
}
