package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/kata/internal/blocks"
	"github.com/felixgeelhaar/kata/internal/session"
	"github.com/felixgeelhaar/kata/internal/tui"
)

const (
	optionExplainLines = "Explain Lines..."
	optionQuit         = "Quit"
)

var practiceCmd = &cobra.Command{
	Use:   "practice <file>",
	Short: "Practice interactively on a file open in your editor",
	Long: `Opens an action menu for <file>. Edit the file in any editor; kata
watches it and inserts questions, hints, solutions and reviews as
comments.`,
	Args: cobra.ExactArgs(1),
	RunE: runPractice,
}

func init() {
	rootCmd.AddCommand(practiceCmd)
}

func runPractice(cmd *cobra.Command, args []string) error {
	logs, err := setupLogging("kata", cfg.Daemon.LogLevel, nil)
	if err != nil {
		return err
	}
	defer logs.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := openDocument(args[0])
	if err != nil {
		return err
	}
	go doc.Watch(ctx)

	out := cmd.OutOrStdout()
	env, err := newEnvironment(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer env.Close()

	prompter := tui.NewPrompter(tui.WithIO(cmd.InOrStdin(), out))
	notifier := tui.NewNotifier(out)
	sess := env.newSession(doc, session.Config{
		Prompter: prompter,
		Notifier: notifier,
	})
	defer sess.Close()

	name := filepath.Base(args[0])
	for ctx.Err() == nil {
		title := fmt.Sprintf("kata · %s · %s", name, sess.Tracker().Formatted())
		choice, ok := prompter.Pick(ctx, title, menu(sess.Actions(session.Selection{})))
		if !ok || choice == optionQuit {
			return nil
		}

		if choice == optionExplainLines {
			err = explainLines(ctx, sess, prompter, notifier, doc.Text())
		} else {
			err = sess.Do(ctx, session.Action(choice), session.Selection{})
		}
		// failures have already been shown through the notifier
		if err != nil {
			slog.Debug("action failed", "action", choice, "error", err)
		}
	}
	return nil
}

// menu lists the legal actions, the explain-lines prompt, the commands
// and Quit.
func menu(actions []session.Action) []string {
	options := make([]string, 0, len(actions)+len(session.Commands)+2)
	for _, a := range actions {
		options = append(options, string(a))
	}
	options = append(options, optionExplainLines)
	for _, c := range session.Commands {
		options = append(options, string(c))
	}
	return append(options, optionQuit)
}

func explainLines(ctx context.Context, sess *session.Session, prompter *tui.Prompter, notifier *tui.Notifier, text string) error {
	spec, ok := prompter.Input(ctx, "Lines to explain", "e.g. 12-18")
	if !ok {
		return session.ErrCancelled
	}
	sel, err := parseLineRange(text, spec)
	if err != nil {
		notifier.Warn(err.Error())
		return err
	}
	return sess.Do(ctx, session.ActionExplainSelection, sel)
}

// parseLineRange turns "N" or "N-M" (1-based, inclusive) into a byte
// selection of text that excludes the final newline.
func parseLineRange(text, spec string) (session.Selection, error) {
	from, to, found := strings.Cut(strings.TrimSpace(spec), "-")
	if !found {
		to = from
	}
	first, err1 := strconv.Atoi(strings.TrimSpace(from))
	last, err2 := strconv.Atoi(strings.TrimSpace(to))
	total := len(blocks.Lines(text))
	if err1 != nil || err2 != nil || first < 1 || last < first || last > total {
		return session.Selection{}, fmt.Errorf("invalid line range %q (file has %d lines)", spec, total)
	}

	start := blocks.LineOffset(text, first-1)
	end := blocks.LineOffset(text, last)
	if end > start && text[end-1] == '\n' {
		end--
	}
	return session.Selection{Offset: start, Length: end - start}, nil
}
