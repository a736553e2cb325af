package session

import (
	"context"

	"github.com/felixgeelhaar/kata/internal/generation"
	"github.com/felixgeelhaar/kata/internal/runner"
	"github.com/felixgeelhaar/kata/internal/telemetry"
)

// Generator produces practice content. *generation.Service implements it.
type Generator interface {
	Generate(ctx context.Context, req generation.GenerateRequest) (*generation.Content, error)
	Evaluate(ctx context.Context, language, reference, learner string) (*generation.Evaluation, error)
	Explain(ctx context.Context, language, code string) (string, error)
	ExplainSelection(ctx context.Context, language, fragment string) (string, error)
}

// Runner builds the command line that runs a file.
type Runner interface {
	Command(path, languageID string) (runner.Command, error)
}

// Terminal executes a run command.
type Terminal interface {
	Run(ctx context.Context, cmd runner.Command) error
}

// TelemetrySink receives a record after a timed, successful run.
type TelemetrySink interface {
	Submit(ctx context.Context, credential string, rec telemetry.Record) error
}

// Credentials exposes the persisted sync credential.
type Credentials interface {
	HasCredential() bool
	Credential() (string, error)
}

// Prompter asks the learner to choose or type a value. A false result
// means the prompt was dismissed.
type Prompter interface {
	Pick(ctx context.Context, title string, options []string) (string, bool)
	Input(ctx context.Context, title, placeholder string) (string, bool)
}

// Notifier shows user-visible messages.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// ContextSink publishes flags to the host, e.g. for menu visibility.
// Implementations must not call back into the Session.
type ContextSink interface {
	SetContext(key string, value bool)
}

type nopNotifier struct{}

func (nopNotifier) Info(string)  {}
func (nopNotifier) Warn(string)  {}
func (nopNotifier) Error(string) {}

type nopContext struct{}

func (nopContext) SetContext(string, bool) {}
