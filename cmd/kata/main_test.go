package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/kata/internal/auth"
	"github.com/felixgeelhaar/kata/internal/config"
	"github.com/felixgeelhaar/kata/internal/runner"
	"github.com/felixgeelhaar/kata/internal/session"
	"github.com/felixgeelhaar/kata/internal/storage/sqlite"
	"github.com/felixgeelhaar/kata/internal/telemetry"
)

// executeCommand runs the root command with args and stdin and captures
// combined output.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	return buf.String(), err
}

// kataHome points the configuration directory at a fresh temp dir.
func kataHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("KATA_HOME", dir)
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if out != "kata dev\n" {
		t.Errorf("output = %q; want %q", out, "kata dev\n")
	}
}

func TestConfigCommand(t *testing.T) {
	kataHome(t)
	out, err := executeCommand(t, "", "config")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	for _, want := range []string{"default_provider: auto", "executor: shell", "ollama: model=codellama key=✓"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProviderSetKey(t *testing.T) {
	home := kataHome(t)

	out, err := executeCommand(t, "sk-abc\n", "provider", "set-key", "openai")
	if err != nil {
		t.Fatalf("set-key error = %v", err)
	}
	if !strings.Contains(out, "API key saved for openai") {
		t.Errorf("output = %q", out)
	}
	data, err := os.ReadFile(filepath.Join(home, "secrets.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "sk-abc") {
		t.Errorf("secrets.yaml = %q; want the key", data)
	}

	if _, err := executeCommand(t, "x\n", "provider", "set-key", "nope"); err == nil {
		t.Error("set-key for an unknown provider succeeded")
	}
	if _, err := executeCommand(t, "\n", "provider", "set-key", "claude"); err == nil {
		t.Error("set-key with an empty key succeeded")
	}
}

func TestLoginLogout(t *testing.T) {
	kataHome(t)
	token, err := auth.NewSigner("k").Issue("alice", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := executeCommand(t, "", "login", token); err != nil {
		t.Fatalf("login error = %v", err)
	}
	store, err := secretsStore()
	if err != nil {
		t.Fatal(err)
	}
	if got, err := store.Credential(); err != nil || got != token {
		t.Errorf("Credential() = %q, %v; want the token", got, err)
	}

	if _, err := executeCommand(t, "", "logout"); err != nil {
		t.Fatalf("logout error = %v", err)
	}
	if store.HasCredential() {
		t.Error("HasCredential() = true after logout")
	}
}

func TestLogin_RejectsExpiredToken(t *testing.T) {
	kataHome(t)
	token, err := auth.NewSigner("k").Issue("alice", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := executeCommand(t, "", "login", token); !errors.Is(err, auth.ErrTokenExpired) {
		t.Errorf("login error = %v; want ErrTokenExpired", err)
	}
}

func TestTokenCommand(t *testing.T) {
	home := kataHome(t)

	if _, err := executeCommand(t, "", "token", "alice"); err == nil {
		t.Fatal("token without a signing key succeeded")
	}

	secrets := []byte("sync:\n  signing_key: hmac-secret\n")
	if err := os.WriteFile(filepath.Join(home, "secrets.yaml"), secrets, 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := executeCommand(t, "", "token", "alice", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token error = %v", err)
	}
	subject, err := auth.NewSigner("hmac-secret").Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if subject != "alice" {
		t.Errorf("subject = %q; want %q", subject, "alice")
	}
}

func TestSyncCommand_RequiresQueue(t *testing.T) {
	kataHome(t)
	if _, err := executeCommand(t, "", "sync"); err == nil || !strings.Contains(err.Error(), "amqp_url") {
		t.Errorf("sync error = %v; want missing amqp_url", err)
	}
}

func TestStatsCommand(t *testing.T) {
	home := kataHome(t)

	out, err := executeCommand(t, "", "stats")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	if !strings.Contains(out, "No questions finished yet") {
		t.Errorf("empty stats output = %q", out)
	}

	db, err := sqlite.Open(filepath.Join(home, "data", "kata.db"))
	if err != nil {
		t.Fatal(err)
	}
	sink := telemetry.NewSQLiteSink(sqlite.NewRecordStore(db))
	if err := sink.Submit(t.Context(), "", telemetry.NewRecord("Reverse a linked list", "04:10", 2, true, "go")); err != nil {
		t.Fatal(err)
	}
	db.Close()

	out, err = executeCommand(t, "", "stats")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	for _, want := range []string{"Questions finished: 1", "Time practiced:     04:10", "Reverse a linked list", "(solution viewed)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestParseLineRange(t *testing.T) {
	text := "a\nbb\nccc\n"
	tests := []struct {
		spec    string
		want    session.Selection
		wantErr bool
	}{
		{"1", session.Selection{Offset: 0, Length: 1}, false},
		{"2-3", session.Selection{Offset: 2, Length: 6}, false},
		{" 1 - 2 ", session.Selection{Offset: 0, Length: 4}, false},
		{"3-2", session.Selection{}, true},
		{"0", session.Selection{}, true},
		{"9", session.Selection{}, true},
		{"x", session.Selection{}, true},
	}
	for _, tt := range tests {
		got, err := parseLineRange(text, tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLineRange(%q) error = %v; wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLineRange(%q) = %+v; want %+v", tt.spec, got, tt.want)
		}
	}
}

func TestMenu(t *testing.T) {
	got := menu([]session.Action{session.ActionShowHint})
	if got[0] != string(session.ActionShowHint) {
		t.Errorf("menu()[0] = %q; want the legal action first", got[0])
	}
	if got[1] != optionExplainLines {
		t.Errorf("menu()[1] = %q; want %q", got[1], optionExplainLines)
	}
	if last := got[len(got)-1]; last != optionQuit {
		t.Errorf("last option = %q; want %q", last, optionQuit)
	}
	if len(got) != 1+1+len(session.Commands)+1 {
		t.Errorf("len(menu()) = %d", len(got))
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "[░░░░]"},
		{0.5, "[██░░]"},
		{1, "[████]"},
		{2, "[████]"},
		{-1, "[░░░░]"},
	}
	for _, tt := range tests {
		if got := renderProgressBar(tt.value, 4); got != tt.want {
			t.Errorf("renderProgressBar(%v) = %q; want %q", tt.value, got, tt.want)
		}
	}
}

func TestNewEnvironment(t *testing.T) {
	kataHome(t)
	c, err := config.LoadLocalConfig()
	if err != nil {
		t.Fatal(err)
	}
	c.LLM.Providers["openai"].Enabled = true
	c.LLM.Providers["openai"].APIKey = "sk-test"
	c.LLM.DefaultProvider = "gemini" // disabled, falls back to auto

	env, err := newEnvironment(t.Context(), c, io.Discard)
	if err != nil {
		t.Fatalf("newEnvironment() error = %v", err)
	}
	defer env.Close()

	if got := strings.Join(env.registry.List(), ","); got != "ollama,openai" {
		t.Errorf("providers = %q; want %q", got, "ollama,openai")
	}
	if _, ok := env.terminal.(*runner.ShellTerminal); !ok {
		t.Errorf("terminal = %T; want *runner.ShellTerminal", env.terminal)
	}
	if env.records == nil || env.sink == nil {
		t.Error("telemetry enabled but no local sink")
	}
	if env.remote != nil {
		t.Error("remote sink built without an AMQP URL")
	}

	sess := env.newSession(nil, session.Config{})
	defer sess.Close()
	if got := sess.Status().Flags; got != (session.Flags{}) {
		t.Errorf("fresh session flags = %+v", got)
	}
}
