// Package config loads the kata configuration from ~/.kata.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for a practice workstation
type LocalConfig struct {
	Daemon    DaemonConfig    `yaml:"daemon"`
	LLM       LLMConfig       `yaml:"llm"`
	Practice  PracticeConfig  `yaml:"practice"`
	Runner    RunnerConfig    `yaml:"runner"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DaemonConfig holds HTTP surface settings
type DaemonConfig struct {
	Port           int      `yaml:"port"`
	Bind           string   `yaml:"bind"`
	LogLevel       string   `yaml:"log_level"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LLMConfig holds LLM provider settings
type LLMConfig struct {
	DefaultProvider string                     `yaml:"default_provider"`
	Providers       map[string]*ProviderConfig `yaml:"providers"`
	Resilience      ResilienceConfig           `yaml:"resilience"`
	Temperature     float64                    `yaml:"temperature"`
	MaxTokens       int                        `yaml:"max_tokens"`
}

// ProviderConfig holds settings for a single LLM provider
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	URL     string `yaml:"url,omitempty"`
	APIKey  string `yaml:"-"` // loaded from secrets.yaml
}

// ResilienceConfig controls the wrappers around every provider
type ResilienceConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxAttempts   int  `yaml:"max_attempts"`
	MaxConcurrent int  `yaml:"max_concurrent"`
	RatePerMinute int  `yaml:"rate_per_minute"`
}

// PracticeConfig holds the defaults offered when starting a question
type PracticeConfig struct {
	Language     string   `yaml:"language"`
	Difficulty   string   `yaml:"difficulty"`
	Difficulties []string `yaml:"difficulties"`
	Topics       []string `yaml:"topics"`
}

// RunnerConfig holds code execution settings
type RunnerConfig struct {
	Executor string             `yaml:"executor"` // shell or docker
	Docker   DockerRunnerConfig `yaml:"docker"`
}

// DockerRunnerConfig holds Docker executor settings
type DockerRunnerConfig struct {
	MemoryMB       int     `yaml:"memory_mb"`
	CPULimit       float64 `yaml:"cpu_limit"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	NetworkOff     bool    `yaml:"network_off"`
}

// TelemetryConfig selects where practice records go
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SQLitePath    string `yaml:"sqlite_path"`
	AMQPURL       string `yaml:"amqp_url,omitempty"`
	PostgresDSN   string `yaml:"postgres_dsn,omitempty"`
	PostgresTable string `yaml:"postgres_table"`
	SigningKey    string `yaml:"-"` // loaded from secrets.yaml
}

// SecretsConfig holds keys loaded from secrets.yaml
type SecretsConfig struct {
	Providers map[string]ProviderSecret `yaml:"providers,omitempty"`
	Sync      SyncSecret                `yaml:"sync,omitempty"`
}

// ProviderSecret is one provider API key
type ProviderSecret struct {
	APIKey string `yaml:"api_key"`
}

// SyncSecret holds the learner's sync token and, on the aggregation
// side, the key used to verify tokens.
type SyncSecret struct {
	Token      string `yaml:"token,omitempty"`
	SigningKey string `yaml:"signing_key,omitempty"`
}

// KataDir returns the configuration directory, ~/.kata unless KATA_HOME
// is set.
func KataDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".kata"), nil
}

// EnsureKataDir creates the configuration directory and its subdirectories
func EnsureKataDir() (string, error) {
	dir, err := KataDir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "data"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}
	return dir, nil
}

// SecretsPath returns the location of secrets.yaml.
func SecretsPath() (string, error) {
	dir, err := KataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "secrets.yaml"), nil
}

// DefaultLocalConfig returns sensible defaults
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:           7433,
			Bind:           "127.0.0.1",
			LogLevel:       "info",
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*", "vscode-webview://*"},
		},
		LLM: LLMConfig{
			DefaultProvider: "auto",
			Providers: map[string]*ProviderConfig{
				"claude": {
					Enabled: true,
					Model:   "claude-sonnet-4-20250514",
				},
				"openai": {
					Enabled: false,
					Model:   "gpt-4o",
				},
				"gemini": {
					Enabled: false,
					Model:   "gemini-2.5-flash",
				},
				"ollama": {
					Enabled: true,
					URL:     "http://localhost:11434",
					Model:   "codellama",
				},
			},
			Resilience: ResilienceConfig{
				Enabled:       true,
				MaxAttempts:   3,
				MaxConcurrent: 4,
				RatePerMinute: 30,
			},
			Temperature: 0.4,
			MaxTokens:   4096,
		},
		Practice: PracticeConfig{
			Language:     "python",
			Difficulty:   "Medium",
			Difficulties: []string{"Easy", "Medium", "Hard"},
			Topics: []string{
				"Arrays", "Strings", "Hash Maps", "Two Pointers", "Sliding Window",
				"Sorting", "Binary Search", "Linked Lists", "Stacks and Queues",
				"Trees", "Graphs", "Dynamic Programming", "Recursion",
			},
		},
		Runner: RunnerConfig{
			Executor: "shell",
			Docker: DockerRunnerConfig{
				MemoryMB:       384,
				CPULimit:       0.5,
				TimeoutSeconds: 30,
				NetworkOff:     true,
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:       true,
			SQLitePath:    "data/kata.db",
			PostgresTable: "practice_records",
		},
	}
}

// LoadLocalConfig loads config.yaml and secrets.yaml from the kata
// directory, falling back to defaults, then applies env overrides.
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := KataDir()
	if err != nil {
		return nil, err
	}
	return loadFrom(dir)
}

func loadFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	if !filepath.IsAbs(cfg.Telemetry.SQLitePath) && cfg.Telemetry.SQLitePath != ":memory:" {
		cfg.Telemetry.SQLitePath = filepath.Join(dir, cfg.Telemetry.SQLitePath)
	}

	applyEnv(cfg)
	return cfg, nil
}

func loadSecrets(dir string, cfg *LocalConfig) error {
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	for name, secret := range secrets.Providers {
		if provider, ok := cfg.LLM.Providers[name]; ok {
			provider.APIKey = secret.APIKey
		}
	}
	cfg.Telemetry.SigningKey = secrets.Sync.SigningKey
	return nil
}

// SaveLocalConfig writes cfg to config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureKataDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveProviderKey stores one provider API key in secrets.yaml, keeping
// the other entries.
func SaveProviderKey(provider, key string) error {
	dir, err := EnsureKataDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "secrets.yaml")

	var secrets SecretsConfig
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read secrets: %w", err)
	default:
		if err := yaml.Unmarshal(data, &secrets); err != nil {
			return fmt.Errorf("parse secrets: %w", err)
		}
	}

	if secrets.Providers == nil {
		secrets.Providers = make(map[string]ProviderSecret)
	}
	secrets.Providers[provider] = ProviderSecret{APIKey: key}

	out, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}
	// owner read/write only
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}
