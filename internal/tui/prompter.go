package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Prompter runs a short-lived Bubble Tea program per question. It
// implements session.Prompter.
type Prompter struct {
	in  io.Reader
	out io.Writer
}

// Option configures a Prompter.
type Option func(*Prompter)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(p *Prompter) {
		p.in = in
		p.out = out
	}
}

// NewPrompter creates a terminal prompter.
func NewPrompter(opts ...Option) *Prompter {
	p := &Prompter{in: os.Stdin, out: os.Stdout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pick shows options and returns the chosen one; false when dismissed.
func (p *Prompter) Pick(ctx context.Context, title string, options []string) (string, bool) {
	if len(options) == 0 {
		return "", false
	}
	final, err := p.run(ctx, newPicker(title, options))
	if err != nil {
		slog.Debug("picker aborted", "error", err)
		return "", false
	}
	m := final.(pickerModel)
	return m.chosen, m.chosen != ""
}

// Input reads one line of text; false when dismissed or empty.
func (p *Prompter) Input(ctx context.Context, title, placeholder string) (string, bool) {
	final, err := p.run(ctx, newInput(title, placeholder))
	if err != nil {
		slog.Debug("input aborted", "error", err)
		return "", false
	}
	m := final.(inputModel)
	return m.value, m.submitted
}

func (p *Prompter) run(ctx context.Context, model tea.Model) (tea.Model, error) {
	prog := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	final, err := prog.Run()
	if err != nil {
		return nil, fmt.Errorf("run prompt: %w", err)
	}
	return final, nil
}

// Notifier prints styled notices. It implements session.Notifier.
type Notifier struct {
	out io.Writer
	now func() time.Time
}

// NewNotifier writes to out, stderr when nil.
func NewNotifier(out io.Writer) *Notifier {
	if out == nil {
		out = os.Stderr
	}
	return &Notifier{out: out, now: time.Now}
}

func (n *Notifier) Info(msg string)  { n.print(infoStyle.Render("•"), msg) }
func (n *Notifier) Warn(msg string)  { n.print(warnStyle.Render("!"), msg) }
func (n *Notifier) Error(msg string) { n.print(errorStyle.Render("✗"), msg) }

func (n *Notifier) print(mark, msg string) {
	fmt.Fprintf(n.out, "%s %s %s\n", helpStyle.Render(n.now().Format("15:04:05")), mark, msg)
}
