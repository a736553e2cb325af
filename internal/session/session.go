// Package session drives a practice session embedded in one document: it
// tracks which blocks are revealed, decides which actions are legal, and
// reacts to the learner's own edits.
package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/kata/internal/blocks"
	"github.com/felixgeelhaar/kata/internal/document"
	"github.com/felixgeelhaar/kata/internal/timer"
)

// Config wires a Session to its document and collaborators. Document may
// be nil until SetDocument is called; Telemetry, Credentials, Notifier,
// Context, Guard and Tracker are optional.
type Config struct {
	Document    document.Document
	Guard       *document.Guard
	Generator   Generator
	Runner      Runner
	Terminal    Terminal
	Telemetry   TelemetrySink
	Credentials Credentials
	Prompter    Prompter
	Notifier    Notifier
	Context     ContextSink
	Tracker     *timer.Tracker

	Topics       []string
	Difficulties []string

	// TelemetryTimeout bounds one background submission.
	TelemetryTimeout time.Duration
}

// Selection is a byte range of the document.
type Selection struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return s.Length <= 0
}

// Session is the process-lifetime state of one practice document.
type Session struct {
	id  string
	cfg Config

	guard   *document.Guard
	tracker *timer.Tracker
	notify  Notifier
	ctxSink ContextSink

	mu          sync.Mutex
	doc         document.Document
	unsubscribe func()
	flags       Flags

	question          string
	userWritten       bool
	storedHint        string
	storedSolution    string
	storedExplanation string

	hintsUsed      int
	solutionViewed bool

	selectionSnapshot string
	selectionBlocks   []string

	pending sync.WaitGroup
	closed  bool
}

// New creates a session and subscribes to cfg.Document.
func New(cfg Config) *Session {
	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		guard:   cfg.Guard,
		tracker: cfg.Tracker,
		notify:  cfg.Notifier,
		ctxSink: cfg.Context,
	}
	if s.guard == nil {
		s.guard = &document.Guard{}
	}
	if s.tracker == nil {
		s.tracker = timer.NewTracker(nil)
	}
	if s.notify == nil {
		s.notify = nopNotifier{}
	}
	if s.ctxSink == nil {
		s.ctxSink = nopContext{}
	}
	if len(s.cfg.Difficulties) == 0 {
		s.cfg.Difficulties = []string{"Easy", "Medium", "Hard"}
	}

	s.mu.Lock()
	s.publishLocked(Flags{}, true)
	s.mu.Unlock()

	if cfg.Document != nil {
		s.SetDocument(cfg.Document)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Tracker returns the elapsed-time tracker.
func (s *Session) Tracker() *timer.Tracker { return s.tracker }

// SetDocument makes doc the active document, resetting all question
// state. A nil doc detaches the session.
func (s *Session) SetDocument(doc document.Document) {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.doc = doc
	s.resetLocked()
	s.clearSelectionLocked()
	if doc != nil {
		s.unsubscribe = doc.Subscribe(s.OnChange)
	}
	s.mu.Unlock()

	s.tracker.Reset()
	if doc != nil {
		slog.Debug("session attached", "session", s.id, "uri", doc.URI(), "language", doc.LanguageID())
	}
}

// Close detaches from the document, stops the tracker and waits for
// in-flight telemetry.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Unlock()

	s.tracker.Close()
	s.pending.Wait()
	return nil
}

// Flags returns the current flags.
func (s *Session) Flags() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

// Actions resyncs against the document and returns the legal actions.
func (s *Session) Actions(sel Selection) []Action {
	s.Resync()

	s.mu.Lock()
	defer s.mu.Unlock()
	return LegalActions(s.flags, !sel.Empty(), len(s.selectionBlocks))
}

// Status is a snapshot for surfaces.
type Status struct {
	ID                    string `json:"id"`
	URI                   string `json:"uri,omitempty"`
	Language              string `json:"language,omitempty"`
	Flags                 Flags  `json:"flags"`
	Question              string `json:"question,omitempty"`
	UserWrittenQuestion   bool   `json:"user_written_question"`
	HintsUsed             int    `json:"hints_used"`
	SolutionViewed        bool   `json:"solution_viewed"`
	SelectionExplanations int    `json:"selection_explanations"`
	Elapsed               string `json:"elapsed"`
	TimerRunning          bool   `json:"timer_running"`
}

// Status returns the current session snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		ID:                    s.id,
		Flags:                 s.flags,
		Question:              s.question,
		UserWrittenQuestion:   s.userWritten,
		HintsUsed:             s.hintsUsed,
		SolutionViewed:        s.solutionViewed,
		SelectionExplanations: len(s.selectionBlocks),
	}
	if s.doc != nil {
		st.URI = s.doc.URI()
		st.Language = s.doc.LanguageID()
	}
	s.mu.Unlock()

	st.Elapsed = s.tracker.Formatted()
	st.TimerRunning = s.tracker.IsActive()
	return st
}

// Resync reconciles the flags with the document text, repairing drift
// caused by manual edits, undo or redo.
func (s *Session) Resync() {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return
	}

	text := doc.Text()
	prefix := blocks.CommentPrefix(doc.LanguageID())

	s.mu.Lock()
	if s.doc != doc {
		s.mu.Unlock()
		return
	}

	_, hasHeader := blocks.Locate(text, prefix, blocks.MarkerQuestion)
	lost := s.flags.HasQuestion && !hasHeader && !s.userQuestionPresentLocked(text, prefix)
	if lost {
		slog.Debug("question removed, resetting session", "session", s.id)
		s.resetLocked()
	}
	if !s.flags.HasQuestion {
		s.detectLocked(text, prefix)
	}

	f := s.flags
	if f.HasQuestion {
		_, f.HintVisible = blocks.Locate(text, prefix, blocks.MarkerHint)
		_, f.EvaluationVisible = blocks.Locate(text, prefix, blocks.MarkerEvaluation)
		f.HasExplanation = blocks.Contains(text, s.storedExplanation)
		f.SolutionVisible = blocks.Contains(text, s.storedSolution) || f.HasExplanation
	}
	s.publishLocked(f, false)
	s.pruneSelectionLocked(text)
	s.mu.Unlock()

	if lost {
		s.tracker.Reset()
	}
}

// OnChange is the document change observer.
func (s *Session) OnChange(ev document.ChangeEvent) {
	if s.guard.Active() {
		return
	}

	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil || ev.URI != doc.URI() {
		return
	}

	text := doc.Text()
	prefix := blocks.CommentPrefix(doc.LanguageID())

	s.mu.Lock()
	if s.storedExplanation != "" {
		f := s.flags
		f.HasExplanation = blocks.Contains(text, s.storedExplanation)
		s.publishLocked(f, false)
	}
	s.pruneSelectionLocked(text)
	if !s.flags.HasQuestion {
		s.detectLocked(text, prefix)
	}
	hasQuestion := s.flags.HasQuestion
	s.mu.Unlock()

	if s.tracker.IsActive() || !hasQuestion {
		return
	}
	if document.IsGenuineTyping(ev) {
		s.tracker.Start()
		slog.Debug("timer started on first keystroke", "session", s.id)
	}
}

// userQuestionPresentLocked reports whether the learner-written question
// is still detected in text. The stored question has its comment prefixes
// stripped, so it is compared against a fresh detection.
func (s *Session) userQuestionPresentLocked(text, prefix string) bool {
	if !s.userWritten {
		return false
	}
	q, ok := DetectQuestion(text, prefix)
	return ok && q == s.question
}

func (s *Session) detectLocked(text, prefix string) {
	q, ok := DetectQuestion(text, prefix)
	if !ok {
		return
	}
	s.clearLocked()
	s.question = q
	s.userWritten = true

	f := s.flags
	f.HasQuestion = true
	s.publishLocked(f, false)
	slog.Debug("learner question detected", "session", s.id)
}

// pruneSelectionLocked drops selection state once every explained block
// has been removed from the text.
func (s *Session) pruneSelectionLocked(text string) {
	if len(s.selectionBlocks) == 0 {
		return
	}
	for _, b := range s.selectionBlocks {
		if strings.Contains(text, b) {
			return
		}
	}
	s.clearSelectionLocked()
}

func (s *Session) clearSelectionLocked() {
	s.selectionSnapshot = ""
	s.selectionBlocks = nil
}

// resetLocked returns to the pre-question state.
func (s *Session) resetLocked() {
	s.clearLocked()
	s.publishLocked(Flags{}, false)
}

func (s *Session) clearLocked() {
	s.question = ""
	s.userWritten = false
	s.storedHint = ""
	s.storedSolution = ""
	s.storedExplanation = ""
	s.hintsUsed = 0
	s.solutionViewed = false
}

// publishLocked stores f and pushes changed keys to the context sink.
func (s *Session) publishLocked(f Flags, all bool) {
	prev := s.flags.entries()
	for i, e := range f.entries() {
		if all || prev[i].value != e.value {
			s.ctxSink.SetContext(e.key, e.value)
		}
	}
	s.flags = f
}
