package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// ShellTerminal runs commands through a local shell, one at a time,
// streaming output to the configured writers.
type ShellTerminal struct {
	mu     sync.Mutex
	shell  string
	stdout io.Writer
	stderr io.Writer
}

// NewShellTerminal creates a terminal writing to stdout and stderr. Nil
// writers default to the process streams.
func NewShellTerminal(stdout, stderr io.Writer) *ShellTerminal {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return &ShellTerminal{shell: shell, stdout: stdout, stderr: stderr}
}

// Run executes cmd and returns ErrCommandFailed on a non-zero exit.
func (t *ShellTerminal) Run(ctx context.Context, cmd Command) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := exec.CommandContext(ctx, t.shell, "-c", cmd.Line)
	c.Dir = cmd.Dir
	c.Stdout = t.stdout
	c.Stderr = t.stderr

	slog.Debug("running command", "language", cmd.Language, "line", cmd.Line)

	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: exit code %d", ErrCommandFailed, exitErr.ExitCode())
		}
		return fmt.Errorf("start %s: %w", t.shell, err)
	}
	return nil
}
