package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/felixgeelhaar/kata/internal/document"
	"github.com/felixgeelhaar/kata/internal/generation"
	"github.com/felixgeelhaar/kata/internal/notify"
	"github.com/felixgeelhaar/kata/internal/session"
)

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, req generation.GenerateRequest) (*generation.Content, error) {
	return &generation.Content{Question: "Sum a list", Hint: "Keep a running total", Solution: "func sum(xs []int) int { return 0 }"}, nil
}

func (stubGenerator) Evaluate(ctx context.Context, language, reference, learner string) (*generation.Evaluation, error) {
	return &generation.Evaluation{Summary: "ok"}, nil
}

func (stubGenerator) Explain(ctx context.Context, language, code string) (string, error) {
	return code, nil
}

func (stubGenerator) ExplainSelection(ctx context.Context, language, fragment string) (string, error) {
	return fragment, nil
}

func setupTestServer(t *testing.T) (*Server, *document.Buffer) {
	t.Helper()
	doc := document.NewBuffer("mem://sum.go", "go", "package main\n")
	journal := notify.NewJournal(0)
	s := session.New(session.Config{
		Document:  doc,
		Generator: stubGenerator{},
		Notifier:  journal,
	})
	t.Cleanup(func() { s.Close() })
	return NewServer(Config{Session: s, Journal: journal, Version: "test"}), doc
}

func TestNewServer(t *testing.T) {
	srv, _ := setupTestServer(t)
	if srv.MCPServer() == nil {
		t.Fatal("MCPServer() = nil")
	}
}

func TestStartThenActions(t *testing.T) {
	srv, doc := setupTestServer(t)
	ctx := context.Background()

	res, err := srv.handleStart(ctx, StartInput{Topic: "Arrays"})
	if err != nil {
		t.Fatalf("handleStart() error = %v", err)
	}
	if !res.OK || !res.Flags.HasQuestion {
		t.Errorf("res = %+v", res)
	}
	if !strings.HasPrefix(doc.Text(), "// Question (Medium)\n// Sum a list\n") {
		t.Errorf("Text() = %q", doc.Text())
	}

	out, err := srv.handleActions(ctx, ActionsInput{})
	if err != nil {
		t.Fatalf("handleActions() error = %v", err)
	}
	if strings.Join(out.Actions, ",") != "Show Hint,Show Solution" {
		t.Errorf("Actions = %v", out.Actions)
	}
	if len(out.Commands) != len(session.Commands) {
		t.Errorf("Commands = %v", out.Commands)
	}
}

func TestDo_ReportsSessionErrors(t *testing.T) {
	srv, _ := setupTestServer(t)
	ctx := context.Background()

	res, err := srv.handleDo(ctx, DoInput{Action: "Show Hint"})
	if err != nil {
		t.Fatalf("handleDo() error = %v", err)
	}
	if res.OK || res.Error == "" {
		t.Errorf("res = %+v; want failure", res)
	}
	if len(res.Messages) != 1 {
		t.Errorf("Messages = %v; want one", res.Messages)
	}

	if _, err := srv.handleDo(ctx, DoInput{Action: "Start Practice"}); err == nil {
		t.Error("handleDo(Start Practice) error = nil")
	}
}

func TestTimer(t *testing.T) {
	srv, _ := setupTestServer(t)
	ctx := context.Background()

	out, err := srv.handleTimer(ctx, TimerInput{Op: "start"})
	if err != nil || !out.Running {
		t.Fatalf("start = %+v, %v", out, err)
	}
	out, err = srv.handleTimer(ctx, TimerInput{Op: "Stop"})
	if err != nil || out.Running || out.Elapsed != "00:00" {
		t.Errorf("stop = %+v, %v", out, err)
	}
	if _, err := srv.handleTimer(ctx, TimerInput{Op: "lap"}); err == nil {
		t.Error("handleTimer(lap) error = nil")
	}
}

func TestStatus(t *testing.T) {
	srv, _ := setupTestServer(t)
	st, err := srv.handleStatus(context.Background(), StatusInput{})
	if err != nil {
		t.Fatalf("handleStatus() error = %v", err)
	}
	if st.URI != "mem://sum.go" || st.Language != "go" {
		t.Errorf("Status = %+v", st)
	}
}
