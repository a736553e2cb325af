// Package mcp exposes a practice session as MCP tools so an assistant
// host can drive it alongside the learner's editor.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/kata/internal/notify"
	"github.com/felixgeelhaar/kata/internal/session"
)

// Server wraps the MCP server around one session.
type Server struct {
	mcpServer *server.Server
	session   *session.Session
	journal   *notify.Journal

	mu sync.Mutex
}

// Config contains configuration for the MCP server. Journal must be the
// session's notifier.
type Config struct {
	Session *session.Session
	Journal *notify.Journal
	Version string
}

// NewServer creates the kata MCP server.
func NewServer(cfg Config) *Server {
	if cfg.Journal == nil {
		cfg.Journal = notify.NewJournal(0)
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{session: cfg.Session, journal: cfg.Journal}

	s.mcpServer = server.New(server.Info{
		Name:    "kata",
		Version: cfg.Version,
	}, server.WithInstructions(`
kata runs a coding practice session inside one source file.

Tools:
- kata_start: generate a question for a topic and difficulty
- kata_actions: list the actions available right now
- kata_do: run one of the listed actions
- kata_timer: start, pause, resume, reset or stop the timer
- kata_run: run the file; a successful timed run records the attempt
- kata_status: flags, counters and elapsed time

Reveal hints before the solution. Explanations and evaluations only
become available once the solution is shown.
`))

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("kata_start").
		Description("Generate a practice question and write it at the top of the file.").
		Handler(s.handleStart)

	s.mcpServer.Tool("kata_actions").
		Description("List the actions that are legal in the current state.").
		Handler(s.handleActions)

	s.mcpServer.Tool("kata_do").
		Description("Run one action returned by kata_actions.").
		Handler(s.handleDo)

	s.mcpServer.Tool("kata_timer").
		Description("Control the elapsed-time tracker.").
		Handler(s.handleTimer)

	s.mcpServer.Tool("kata_run").
		Description("Run the practice file in the configured executor.").
		Handler(s.handleRun)

	s.mcpServer.Tool("kata_status").
		Description("Get the session status.").
		Handler(s.handleStatus)
}

type StartInput struct {
	Topic      string `json:"topic" jsonschema:"description=Practice topic, e.g. Sorting"`
	Difficulty string `json:"difficulty,omitempty" jsonschema:"description=Easy, Medium or Hard,enum=Easy,enum=Medium,enum=Hard"`
}

type SelectionInput struct {
	Offset int `json:"offset" jsonschema:"description=Byte offset of the selection"`
	Length int `json:"length" jsonschema:"description=Byte length of the selection"`
}

type ActionsInput struct {
	Selection *SelectionInput `json:"selection,omitempty" jsonschema:"description=Current editor selection"`
}

type ActionsOutput struct {
	Actions  []string `json:"actions"`
	Commands []string `json:"commands"`
}

type DoInput struct {
	Action    string          `json:"action" jsonschema:"description=Action name from kata_actions"`
	Selection *SelectionInput `json:"selection,omitempty" jsonschema:"description=Selection for Explain Selection"`
}

type TimerInput struct {
	Op string `json:"op" jsonschema:"description=Timer operation,enum=start,enum=pause,enum=resume,enum=reset,enum=stop"`
}

type TimerOutput struct {
	Elapsed  string   `json:"elapsed"`
	Running  bool     `json:"running"`
	Messages []string `json:"messages,omitempty"`
}

type RunInput struct{}

type StatusInput struct{}

// Result is returned by every mutating tool.
type Result struct {
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Flags    session.Flags `json:"flags"`
	Messages []string      `json:"messages,omitempty"`
}

func (s *Server) handleStart(ctx context.Context, input StartInput) (Result, error) {
	difficulty := input.Difficulty
	if difficulty == "" {
		difficulty = "Medium"
	}
	return s.run(func() error {
		return s.session.StartWith(ctx, input.Topic, difficulty)
	}), nil
}

func (s *Server) handleActions(ctx context.Context, input ActionsInput) (ActionsOutput, error) {
	out := ActionsOutput{Actions: []string{}, Commands: make([]string, 0, len(session.Commands))}
	for _, a := range s.session.Actions(selection(input.Selection)) {
		out.Actions = append(out.Actions, string(a))
	}
	for _, c := range session.Commands {
		out.Commands = append(out.Commands, string(c))
	}
	return out, nil
}

func (s *Server) handleDo(ctx context.Context, input DoInput) (Result, error) {
	action := session.Action(input.Action)
	if action == session.ActionStart {
		return Result{}, fmt.Errorf("use kata_start to begin a question")
	}
	return s.run(func() error {
		return s.session.Do(ctx, action, selection(input.Selection))
	}), nil
}

var timerOps = map[string]session.Action{
	"start":  session.ActionStartTimer,
	"pause":  session.ActionPauseTimer,
	"resume": session.ActionResumeTimer,
	"reset":  session.ActionResetTimer,
	"stop":   session.ActionStopTimer,
}

func (s *Server) handleTimer(ctx context.Context, input TimerInput) (TimerOutput, error) {
	action, ok := timerOps[strings.ToLower(input.Op)]
	if !ok {
		return TimerOutput{}, fmt.Errorf("unknown timer operation %q", input.Op)
	}

	s.mu.Lock()
	mark := s.journal.Mark()
	s.session.Timer(action)
	msgs := texts(s.journal.Since(mark))
	s.mu.Unlock()

	tracker := s.session.Tracker()
	return TimerOutput{
		Elapsed:  tracker.Formatted(),
		Running:  tracker.IsActive(),
		Messages: msgs,
	}, nil
}

func (s *Server) handleRun(ctx context.Context, input RunInput) (Result, error) {
	return s.run(func() error {
		return s.session.Run(ctx)
	}), nil
}

func (s *Server) handleStatus(ctx context.Context, input StatusInput) (session.Status, error) {
	return s.session.Status(), nil
}

// run executes fn and reports session errors in the result rather than as
// tool failures, so the host sees the learner-facing message.
func (s *Server) run(fn func() error) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	mark := s.journal.Mark()
	err := fn()
	res := Result{
		OK:       err == nil,
		Flags:    s.session.Flags(),
		Messages: texts(s.journal.Since(mark)),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func selection(in *SelectionInput) session.Selection {
	if in == nil {
		return session.Selection{}
	}
	return session.Selection{Offset: in.Offset, Length: in.Length}
}

func texts(msgs []notify.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

// ServeStdio serves the tools on stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP serves the tools over HTTP on addr.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.Server {
	return s.mcpServer
}
