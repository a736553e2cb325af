package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/felixgeelhaar/kata/internal/mcp"
	"github.com/felixgeelhaar/kata/internal/notify"
	"github.com/felixgeelhaar/kata/internal/session"
)

var mcpAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp <file>",
	Short: "Serve a practice session on <file> as MCP tools",
	Long: `Serves kata_start, kata_actions, kata_do, kata_timer, kata_run and
kata_status over stdio (the default) or HTTP with --addr.`,
	Args: cobra.ExactArgs(1),
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpAddr, "addr", "", "serve over HTTP on this address instead of stdio")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	logs, err := setupLogging("mcp", cfg.Daemon.LogLevel, nil)
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

	// stdout carries the protocol, so run output goes to stderr
	env, err := newEnvironment(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	journal := notify.NewJournal(0)
	sess := env.newSession(doc, session.Config{Notifier: journal})
	defer sess.Close()

	srv := mcpserver.NewServer(mcpserver.Config{
		Session: sess,
		Journal: journal,
		Version: Version,
	})

	if mcpAddr != "" {
		fmt.Fprintf(os.Stderr, "kata MCP server listening on %s\n", mcpAddr)
		return srv.ServeHTTP(ctx, mcpAddr)
	}
	return srv.ServeStdio(ctx)
}
