package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/kata/internal/config"
	"github.com/felixgeelhaar/kata/internal/daemon"
	"github.com/felixgeelhaar/kata/internal/notify"
	"github.com/felixgeelhaar/kata/internal/session"
)

const pidFileName = "kata.pid"

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve <file>",
	Short: "Serve a practice session on <file> over HTTP in the foreground",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	dir, err := config.EnsureKataDir()
	if err != nil {
		return fmt.Errorf("ensure kata dir: %w", err)
	}
	logs, err := setupLogging("daemon", cfg.Daemon.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	defer logs.Close()

	pidPath := filepath.Join(dir, pidFileName)
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := openDocument(args[0])
	if err != nil {
		return err
	}
	go doc.Watch(ctx)

	env, err := newEnvironment(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	journal := notify.NewJournal(0)
	flags := notify.NewContextMap()
	sess := env.newSession(doc, session.Config{Notifier: journal, Context: flags})
	defer sess.Close()

	port := cfg.Daemon.Port
	if servePort != 0 {
		port = servePort
	}
	server := daemon.NewServer(daemon.Config{
		Session:        sess,
		Document:       doc,
		Journal:        journal,
		Context:        flags,
		Bind:           cfg.Daemon.Bind,
		Port:           port,
		AllowedOrigins: cfg.Daemon.AllowedOrigins,
		Providers:      env.registry.List(),
		Version:        Version,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		stop()
		<-done
		return err
	}
	<-done
	slog.Info("daemon stopped")
	return nil
}
