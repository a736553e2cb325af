package runner

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrCommandFailed       = errors.New("command failed")
)

// LanguageConfig describes how to run a single source file. Templates may
// use {file}, {dir}, {base} (file name without extension) and {out}
// (build output path). Compile is optional.
type LanguageConfig struct {
	Compile string
	Run     string
	Image   string // container image for DockerTerminal
}

// DefaultLanguageConfigs returns run configurations keyed by editor
// language id.
func DefaultLanguageConfigs() map[string]LanguageConfig {
	return map[string]LanguageConfig{
		"go": {
			Run:   "go run {file}",
			Image: "golang:1.25-alpine",
		},
		"python": {
			Run:   "python3 {file}",
			Image: "python:3.12-alpine",
		},
		"javascript": {
			Run:   "node {file}",
			Image: "node:22-alpine",
		},
		"typescript": {
			Run:   "npx --yes tsx {file}",
			Image: "node:22-alpine",
		},
		"rust": {
			Compile: "rustc {file} -o {out}",
			Run:     "{out}",
			Image:   "rust:1-alpine",
		},
		"c": {
			Compile: "gcc -Wall {file} -o {out}",
			Run:     "{out}",
			Image:   "gcc:14",
		},
		"cpp": {
			Compile: "g++ -std=c++17 -Wall {file} -o {out}",
			Run:     "{out}",
			Image:   "gcc:14",
		},
		"java": {
			Compile: "javac -d {dir} {file}",
			Run:     "java -cp {dir} {base}",
			Image:   "eclipse-temurin:21",
		},
		"kotlin": {
			Compile: "kotlinc {file} -include-runtime -d {out}.jar",
			Run:     "java -jar {out}.jar",
		},
		"csharp": {
			Run: "dotnet script {file}",
		},
		"ruby": {
			Run:   "ruby {file}",
			Image: "ruby:3.3-alpine",
		},
		"php": {
			Run:   "php {file}",
			Image: "php:8.3-cli-alpine",
		},
		"shellscript": {
			Run:   "bash {file}",
			Image: "bash:5",
		},
		"perl": {
			Run:   "perl {file}",
			Image: "perl:5",
		},
		"lua": {
			Run: "lua {file}",
		},
		"r": {
			Run:   "Rscript {file}",
			Image: "r-base:4.4.1",
		},
		"haskell": {
			Run:   "runghc {file}",
			Image: "haskell:9",
		},
		"elixir": {
			Run:   "elixir {file}",
			Image: "elixir:1.17-alpine",
		},
		"julia": {
			Run:   "julia {file}",
			Image: "julia:1",
		},
		"swift": {
			Run:   "swift {file}",
			Image: "swift:6.0",
		},
		"dart": {
			Run:   "dart run {file}",
			Image: "dart:stable",
		},
		"scala": {
			Run: "scala {file}",
		},
	}
}

// Command is a shell command line that runs one file.
type Command struct {
	Language string
	Path     string
	Dir      string
	Line     string
}

// Runner turns a file path and language id into a Command.
type Runner struct {
	configs map[string]LanguageConfig
}

// NewRunner creates a runner. A nil map uses DefaultLanguageConfigs.
func NewRunner(configs map[string]LanguageConfig) *Runner {
	if configs == nil {
		configs = DefaultLanguageConfigs()
	}
	return &Runner{configs: configs}
}

// Languages returns the supported language ids, sorted.
func (r *Runner) Languages() []string {
	out := make([]string, 0, len(r.configs))
	for id := range r.configs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Config returns the configuration for a language id.
func (r *Runner) Config(languageID string) (LanguageConfig, bool) {
	cfg, ok := r.configs[languageID]
	return cfg, ok
}

// Command builds the command line for path. The compile step, when
// present, is joined before the run step with &&.
func (r *Runner) Command(path, languageID string) (Command, error) {
	cfg, ok := r.configs[languageID]
	if !ok || cfg.Run == "" {
		return Command{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, languageID)
	}

	dir := filepath.Dir(path)
	line := expand(cfg.Run, path)
	if cfg.Compile != "" {
		line = expand(cfg.Compile, path) + " && " + line
	}

	return Command{
		Language: languageID,
		Path:     path,
		Dir:      dir,
		Line:     line,
	}, nil
}

func expand(tmpl, path string) string {
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	out := filepath.Join(dir, base)

	return strings.NewReplacer(
		"{file}", Quote(path),
		"{dir}", Quote(dir),
		"{base}", Quote(base),
		"{out}", Quote(out),
	).Replace(tmpl)
}

// Quote single-quotes s for POSIX shells.
func Quote(s string) string {
	if s != "" && strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("-_./:+=@%,", r):
		return false
	}
	return true
}
