package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/kata/internal/auth"
	"github.com/felixgeelhaar/kata/internal/config"
	"github.com/felixgeelhaar/kata/internal/document"
	"github.com/felixgeelhaar/kata/internal/generation"
	"github.com/felixgeelhaar/kata/internal/llm"
	"github.com/felixgeelhaar/kata/internal/queue"
	"github.com/felixgeelhaar/kata/internal/runner"
	"github.com/felixgeelhaar/kata/internal/session"
	"github.com/felixgeelhaar/kata/internal/storage/sqlite"
	"github.com/felixgeelhaar/kata/internal/telemetry"
)

// environment holds the collaborators every surface shares.
type environment struct {
	cfg       *config.LocalConfig
	registry  *llm.Registry
	generator *generation.Service
	runner    *runner.Runner
	terminal  session.Terminal
	records   *telemetry.SQLiteSink
	remote    *telemetry.QueueSink
	sink      telemetry.Sink
	creds     *auth.SecretsStore

	closers []func() error
}

// newEnvironment wires providers, the run terminal and telemetry from cfg.
// Run output is written to out. Failures of optional parts (Docker,
// RabbitMQ, a single provider) are logged and skipped.
func newEnvironment(ctx context.Context, cfg *config.LocalConfig, out io.Writer) (*environment, error) {
	env := &environment{cfg: cfg, runner: runner.NewRunner(nil)}

	env.registry = env.buildRegistry(ctx)
	env.generator = generation.NewService(env.registry,
		generation.WithTemperature(cfg.LLM.Temperature),
		generation.WithMaxTokens(cfg.LLM.MaxTokens),
	)

	env.terminal = env.buildTerminal(ctx, out)

	if cfg.Telemetry.Enabled {
		if err := env.buildTelemetry(); err != nil {
			env.Close()
			return nil, err
		}
	}

	secrets, err := config.SecretsPath()
	if err != nil {
		env.Close()
		return nil, err
	}
	env.creds = auth.NewSecretsStore(secrets)
	return env, nil
}

func (e *environment) buildRegistry(ctx context.Context) *llm.Registry {
	registry := llm.NewRegistry()

	for name, pc := range e.cfg.LLM.Providers {
		if !pc.Enabled || (pc.APIKey == "" && name != "ollama") {
			continue
		}

		var provider llm.Provider
		switch name {
		case "claude":
			provider = llm.NewClaudeProvider(llm.ClaudeConfig{APIKey: pc.APIKey, BaseURL: pc.URL, Model: pc.Model})
		case "openai":
			provider = llm.NewOpenAIProvider(llm.OpenAIConfig{APIKey: pc.APIKey, BaseURL: pc.URL, Model: pc.Model})
		case "gemini":
			gp, err := llm.NewGeminiProvider(ctx, llm.GeminiConfig{APIKey: pc.APIKey, BaseURL: pc.URL, Model: pc.Model})
			if err != nil {
				slog.Warn("skipping provider", "provider", name, "error", err)
				continue
			}
			provider = gp
		case "ollama":
			provider = llm.NewOllamaProvider(llm.OllamaConfig{BaseURL: pc.URL, Model: pc.Model})
		default:
			slog.Warn("unknown provider in config", "provider", name)
			continue
		}

		if rc := e.cfg.LLM.Resilience; rc.Enabled {
			opts := llm.DefaultResilientConfig()
			if rc.MaxAttempts > 0 {
				opts.MaxAttempts = rc.MaxAttempts
			}
			if rc.MaxConcurrent > 0 {
				opts.MaxConcurrent = rc.MaxConcurrent
			}
			if rc.RatePerMinute > 0 {
				opts.RatePerMinute = rc.RatePerMinute
			}
			opts.Logger = slog.Default().With("provider", name)
			rp := llm.NewResilientProvider(provider, opts)
			e.closers = append(e.closers, rp.Close)
			provider = rp
		}
		registry.Register(name, provider)
	}

	if len(registry.List()) == 0 {
		slog.Warn("no LLM providers configured; generation will fail until a key is set")
	}
	if err := registry.SetDefault(e.cfg.LLM.DefaultProvider); err != nil {
		slog.Warn("default provider unavailable, picking automatically", "error", err)
		_ = registry.SetDefault("auto")
	}
	return registry
}

func (e *environment) buildTerminal(ctx context.Context, out io.Writer) session.Terminal {
	if e.cfg.Runner.Executor != "docker" {
		return runner.NewShellTerminal(out, out)
	}

	dc := e.cfg.Runner.Docker
	dt, err := runner.NewDockerTerminal(ctx, e.runner, runner.DockerConfig{
		MemoryMB:   dc.MemoryMB,
		CPULimit:   dc.CPULimit,
		NetworkOff: dc.NetworkOff,
		Timeout:    time.Duration(dc.TimeoutSeconds) * time.Second,
	}, out)
	if err != nil {
		slog.Warn("docker unavailable, running code in the local shell", "error", err)
		return runner.NewShellTerminal(out, out)
	}
	e.closers = append(e.closers, dt.Close)
	return dt
}

func (e *environment) buildTelemetry() error {
	db, err := sqlite.Open(e.cfg.Telemetry.SQLitePath)
	if err != nil {
		return fmt.Errorf("open statistics: %w", err)
	}
	e.closers = append(e.closers, db.Close)
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate statistics: %w", err)
	}
	e.records = telemetry.NewSQLiteSink(sqlite.NewRecordStore(db))

	sinks := telemetry.MultiSink{e.records}
	if url := e.cfg.Telemetry.AMQPURL; url != "" {
		conn, err := queue.NewConnection(url)
		if err != nil {
			slog.Warn("record queue unavailable, keeping records locally", "error", err)
		} else {
			e.closers = append(e.closers, conn.Close)
			e.remote = telemetry.NewQueueSink(conn)
			sinks = append(sinks, e.remote)
		}
	}
	e.sink = sinks
	return nil
}

// newSession builds a session over doc with the shared collaborators.
// base supplies the surface-specific ones (Prompter, Notifier, Context).
func (e *environment) newSession(doc document.Document, base session.Config) *session.Session {
	base.Document = doc
	base.Generator = e.generator
	base.Runner = e.runner
	base.Terminal = e.terminal
	base.Credentials = e.creds
	base.Topics = e.cfg.Practice.Topics
	base.Difficulties = e.cfg.Practice.Difficulties
	if e.sink != nil {
		base.Telemetry = e.sink
	}
	return session.New(base)
}

// Close releases everything newEnvironment opened, newest first.
func (e *environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// openDocument opens the practice file named on the command line.
func openDocument(path string) (*document.FileDocument, error) {
	doc, err := document.OpenFile(path, language)
	if err != nil {
		return nil, err
	}
	if doc.LanguageID() == "plaintext" {
		slog.Warn("unknown file extension; pass --language for runnable code", "path", path)
	}
	return doc, nil
}
