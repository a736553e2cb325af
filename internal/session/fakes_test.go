package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/kata/internal/document"
	"github.com/felixgeelhaar/kata/internal/generation"
	"github.com/felixgeelhaar/kata/internal/runner"
	"github.com/felixgeelhaar/kata/internal/telemetry"
	"github.com/felixgeelhaar/kata/internal/timer"
)

type fakeGenerator struct {
	content     *generation.Content
	userContent *generation.Content
	eval        *generation.Evaluation
	explain     func(code string) string
	err         error

	mu       sync.Mutex
	requests []generation.GenerateRequest
	learner  string
}

func (g *fakeGenerator) Generate(ctx context.Context, req generation.GenerateRequest) (*generation.Content, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	if req.Question != "" {
		return g.userContent, nil
	}
	return g.content, nil
}

func (g *fakeGenerator) Evaluate(ctx context.Context, language, reference, learner string) (*generation.Evaluation, error) {
	g.mu.Lock()
	g.learner = learner
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.eval, nil
}

func (g *fakeGenerator) Explain(ctx context.Context, language, code string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.explain(code), nil
}

func (g *fakeGenerator) ExplainSelection(ctx context.Context, language, fragment string) (string, error) {
	return g.Explain(ctx, language, fragment)
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type scriptedPrompter struct {
	picks  []string
	inputs []string
}

func (p *scriptedPrompter) Pick(ctx context.Context, title string, options []string) (string, bool) {
	if len(p.picks) == 0 {
		return "", false
	}
	v := p.picks[0]
	p.picks = p.picks[1:]
	return v, true
}

func (p *scriptedPrompter) Input(ctx context.Context, title, placeholder string) (string, bool) {
	if len(p.inputs) == 0 {
		return "", false
	}
	v := p.inputs[0]
	p.inputs = p.inputs[1:]
	return v, true
}

type recordingNotifier struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (n *recordingNotifier) Info(msg string) {
	n.mu.Lock()
	n.infos = append(n.infos, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) Warn(msg string) {
	n.mu.Lock()
	n.warns = append(n.warns, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	n.errors = append(n.errors, msg)
	n.mu.Unlock()
}

type mapContext struct {
	mu     sync.Mutex
	values map[string]bool
}

func (c *mapContext) SetContext(key string, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]bool)
	}
	c.values[key] = value
}

func (c *mapContext) get(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key]
}

type fakeRunner struct {
	err error
}

func (r *fakeRunner) Command(path, languageID string) (runner.Command, error) {
	if r.err != nil {
		return runner.Command{}, r.err
	}
	return runner.Command{Language: languageID, Path: path, Line: "run " + path}, nil
}

type fakeTerminal struct {
	mu   sync.Mutex
	err  error
	runs []runner.Command
}

func (t *fakeTerminal) Run(ctx context.Context, cmd runner.Command) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs = append(t.runs, cmd)
	return t.err
}

type recordingSink struct {
	mu    sync.Mutex
	creds []string
	recs  []telemetry.Record
}

func (s *recordingSink) Submit(ctx context.Context, credential string, rec telemetry.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = append(s.creds, credential)
	s.recs = append(s.recs, rec)
	return nil
}

type staticCredentials string

func (c staticCredentials) HasCredential() bool         { return c != "" }
func (c staticCredentials) Credential() (string, error) { return string(c), nil }

// recordingDoc captures the edits of every Apply. beforeApply, when set,
// runs once ahead of the next versioned apply.
type recordingDoc struct {
	*document.Buffer
	mu          sync.Mutex
	edits       [][]document.Edit
	beforeApply func()
}

func (d *recordingDoc) Apply(ctx context.Context, edits ...document.Edit) error {
	d.record(edits)
	return d.Buffer.Apply(ctx, edits...)
}

func (d *recordingDoc) ApplyAt(ctx context.Context, version int, edits ...document.Edit) error {
	d.mu.Lock()
	hook := d.beforeApply
	d.beforeApply = nil
	d.mu.Unlock()
	if hook != nil {
		hook()
	}

	err := d.Buffer.ApplyAt(ctx, version, edits...)
	if err == nil {
		d.record(edits)
	}
	return err
}

func (d *recordingDoc) record(edits []document.Edit) {
	d.mu.Lock()
	d.edits = append(d.edits, append([]document.Edit(nil), edits...))
	d.mu.Unlock()
}

func (d *recordingDoc) lastEdits() []document.Edit {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.edits) == 0 {
		return nil
	}
	return d.edits[len(d.edits)-1]
}

// manualTicker hands out unbuffered tick channels.
type manualTicker struct {
	mu sync.Mutex
	ch chan time.Time
}

func (m *manualTicker) source(time.Duration) (<-chan time.Time, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ch = make(chan time.Time)
	return m.ch, func() {}
}

func (m *manualTicker) send(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	ch := m.ch
	m.mu.Unlock()
	select {
	case ch <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("tick not received")
	}
}

func waitElapsed(t *testing.T, tr *timer.Tracker, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if tr.Elapsed() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Elapsed() = %d; want %d", tr.Elapsed(), want)
}

type harness struct {
	s      *Session
	doc    *recordingDoc
	gen    *fakeGenerator
	prompt *scriptedPrompter
	notify *recordingNotifier
	ctx    *mapContext
	ticker *manualTicker
	term   *fakeTerminal
	sink   *recordingSink
	runner *fakeRunner
}

const (
	testQuestion = "Sort an array"
	testHint     = "Use comparisons"
	testSolution = "function sort(a){...}"
)

func newHarness(t *testing.T, lang, text string) *harness {
	t.Helper()
	h := &harness{
		doc: &recordingDoc{Buffer: document.NewBuffer("mem://practice", lang, text)},
		gen: &fakeGenerator{
			content: &generation.Content{Question: testQuestion, Hint: testHint, Solution: testSolution},
			explain: func(code string) string { return "// explained\n" + code },
		},
		prompt: &scriptedPrompter{},
		notify: &recordingNotifier{},
		ctx:    &mapContext{},
		ticker: &manualTicker{},
		term:   &fakeTerminal{},
		sink:   &recordingSink{},
		runner: &fakeRunner{},
	}

	tracker := timer.NewTracker(nil, timer.WithTicker(h.ticker.source))
	h.s = New(Config{
		Document:     h.doc,
		Generator:    h.gen,
		Runner:       h.runner,
		Terminal:     h.term,
		Telemetry:    h.sink,
		Credentials:  staticCredentials("tok"),
		Prompter:     h.prompt,
		Notifier:     h.notify,
		Context:      h.ctx,
		Tracker:      tracker,
		Topics:       []string{"Sorting", "Graphs"},
		Difficulties: []string{"Easy", "Medium", "Hard"},
	})
	t.Cleanup(func() { h.s.Close() })
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	h.prompt.picks = append(h.prompt.picks, "Sorting", "Medium")
	if err := h.s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

// typeText simulates a keystroke from the learner.
func (h *harness) typeText(t *testing.T, offset int, text string) {
	t.Helper()
	if err := h.doc.Buffer.Insert(context.Background(), offset, text); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
}

func (h *harness) actions() []string {
	var out []string
	for _, a := range h.s.Actions(Selection{}) {
		out = append(out, string(a))
	}
	return out
}
