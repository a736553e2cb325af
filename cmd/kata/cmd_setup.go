package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/kata/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create ~/.kata and store a provider key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		reader := bufio.NewReader(cmd.InOrStdin())

		fmt.Fprintln(out, "kata - First-Time Setup")
		fmt.Fprintln(out, "=======================")

		fmt.Fprint(out, "Creating ~/.kata directory structure... ")
		dir, err := config.EnsureKataDir()
		if err != nil {
			return fmt.Errorf("create directories: %w", err)
		}
		fmt.Fprintln(out, "✓")

		configPath := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			fmt.Fprint(out, "Creating default configuration... ")
			if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintln(out, "✓")
		} else {
			fmt.Fprintln(out, "Configuration already exists ✓")
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "LLM Provider Setup")
		fmt.Fprintln(out, "------------------")
		fmt.Fprintln(out, "kata supports Claude, OpenAI, Gemini and Ollama (local).")

		if p := cfg.LLM.Providers["claude"]; p != nil && p.APIKey != "" {
			fmt.Fprintln(out, "Claude API key: already configured ✓")
		} else {
			fmt.Fprint(out, "Enter Claude API key (or press Enter to skip): ")
			key, _ := reader.ReadString('\n')
			if key = strings.TrimSpace(key); key != "" {
				if err := config.SaveProviderKey("claude", key); err != nil {
					fmt.Fprintf(out, "  ⚠ Failed to save: %v\n", err)
				} else {
					fmt.Fprintln(out, "  ✓ Saved")
				}
			}
		}

		fmt.Fprintln(out)
		fmt.Fprint(out, "Checking Docker... ")
		if err := checkDocker(); err != nil {
			fmt.Fprintln(out, "⚠ Not available (code will run in the local shell)")
		} else {
			fmt.Fprintln(out, "✓")
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "Next steps:")
		fmt.Fprintln(out, "  kata doctor              # Verify configuration")
		fmt.Fprintln(out, "  kata practice two_sum.py # Practice in the terminal")
		fmt.Fprintln(out, "  kata start two_sum.py    # Serve an editor plugin")
		fmt.Fprintln(out, "  kata mcp two_sum.py      # Serve an MCP host")
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check Docker, providers and configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Checking system requirements...")
		allGood := true

		fmt.Fprint(out, "Docker:    ")
		if err := checkDocker(); err != nil {
			fmt.Fprintf(out, "✗ %v\n", err)
			if cfg.Runner.Executor == "docker" {
				allGood = false
			}
		} else {
			fmt.Fprintln(out, "✓ available")
		}

		fmt.Fprint(out, "Directory: ")
		dir, err := config.KataDir()
		switch {
		case err != nil:
			fmt.Fprintf(out, "✗ %v\n", err)
			allGood = false
		case !exists(dir):
			fmt.Fprintln(out, "✗ not created (run 'kata init')")
			allGood = false
		default:
			fmt.Fprintf(out, "✓ %s\n", dir)
		}

		fmt.Fprintln(out, "\nLLM Providers:")
		ready := 0
		for _, name := range providerNames(cfg) {
			provider := cfg.LLM.Providers[name]
			if !provider.Enabled {
				continue
			}
			fmt.Fprintf(out, "  %s: ", name)
			switch {
			case name == "ollama":
				if err := checkOllama(provider.URL); err != nil {
					fmt.Fprintf(out, "✗ %v\n", err)
					continue
				}
				fmt.Fprintf(out, "✓ available (model: %s)\n", provider.Model)
			case provider.APIKey != "":
				fmt.Fprintf(out, "✓ configured (model: %s)\n", provider.Model)
			default:
				fmt.Fprintf(out, "✗ no API key (run 'kata provider set-key %s')\n", name)
				continue
			}
			ready++
		}
		if ready == 0 {
			allGood = false
		}

		fmt.Fprint(out, "\nDaemon:    ")
		if isRunning() {
			fmt.Fprintln(out, "✓ running")
		} else {
			fmt.Fprintln(out, "- not running")
		}

		fmt.Fprintln(out)
		if allGood {
			fmt.Fprintln(out, "All checks passed! ✓")
		} else {
			fmt.Fprintln(out, "Some checks failed. Please fix the issues above.")
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage LLM providers",
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Configured LLM Providers:")
		for _, name := range providerNames(cfg) {
			provider := cfg.LLM.Providers[name]
			status := "disabled"
			if provider.Enabled {
				status = "needs API key"
				if provider.APIKey != "" || name == "ollama" {
					status = "ready"
				}
			}
			isDefault := ""
			if name == cfg.LLM.DefaultProvider {
				isDefault = " (default)"
			}

			fmt.Fprintf(out, "  %s%s\n", name, isDefault)
			fmt.Fprintf(out, "    status: %s\n", status)
			fmt.Fprintf(out, "    model:  %s\n", provider.Model)
			if provider.URL != "" {
				fmt.Fprintf(out, "    url:    %s\n", provider.URL)
			}
		}
		return nil
	},
}

var providerSetKeyCmd = &cobra.Command{
	Use:   "set-key <provider>",
	Short: "Store an API key for a provider in secrets.yaml",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		out := cmd.OutOrStdout()
		if _, ok := cfg.LLM.Providers[name]; !ok {
			return fmt.Errorf("unknown provider: %s (valid: %s)", name, strings.Join(providerNames(cfg), ", "))
		}
		if name == "ollama" {
			fmt.Fprintln(out, "Ollama doesn't require an API key.")
			return nil
		}

		fmt.Fprintf(out, "Enter %s API key: ", name)
		key, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("read input: %w", err)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("API key cannot be empty")
		}

		if err := config.SaveProviderKey(name, key); err != nil {
			return fmt.Errorf("save secrets: %w", err)
		}
		fmt.Fprintf(out, "✓ API key saved for %s\n", name)
		return nil
	},
}

func init() {
	providerCmd.AddCommand(providerListCmd, providerSetKeyCmd)
	rootCmd.AddCommand(initCmd, doctorCmd, configCmd, providerCmd)
}

func printConfig(out io.Writer, c *config.LocalConfig) {
	fmt.Fprintln(out, "kata Configuration")

	fmt.Fprintln(out, "\nDaemon:")
	fmt.Fprintf(out, "  bind: %s:%d\n", c.Daemon.Bind, c.Daemon.Port)
	fmt.Fprintf(out, "  log_level: %s\n", c.Daemon.LogLevel)

	fmt.Fprintln(out, "\nLLM:")
	fmt.Fprintf(out, "  default_provider: %s\n", c.LLM.DefaultProvider)
	for _, name := range providerNames(c) {
		provider := c.LLM.Providers[name]
		if !provider.Enabled {
			continue
		}
		keyStatus := "✗"
		if provider.APIKey != "" || name == "ollama" {
			keyStatus = "✓"
		}
		fmt.Fprintf(out, "  %s: model=%s key=%s\n", name, provider.Model, keyStatus)
	}
	fmt.Fprintf(out, "  resilience: %t\n", c.LLM.Resilience.Enabled)

	fmt.Fprintln(out, "\nPractice:")
	fmt.Fprintf(out, "  difficulties: %s\n", strings.Join(c.Practice.Difficulties, ", "))
	fmt.Fprintf(out, "  topics: %d\n", len(c.Practice.Topics))

	fmt.Fprintln(out, "\nRunner:")
	fmt.Fprintf(out, "  executor: %s\n", c.Runner.Executor)
	if c.Runner.Executor == "docker" {
		fmt.Fprintf(out, "  memory: %dMB\n", c.Runner.Docker.MemoryMB)
		fmt.Fprintf(out, "  timeout: %ds\n", c.Runner.Docker.TimeoutSeconds)
	}

	fmt.Fprintln(out, "\nTelemetry:")
	fmt.Fprintf(out, "  enabled: %t\n", c.Telemetry.Enabled)
	fmt.Fprintf(out, "  sqlite: %s\n", c.Telemetry.SQLitePath)
	if c.Telemetry.AMQPURL != "" {
		fmt.Fprintln(out, "  queue: configured")
	}
}

func providerNames(c *config.LocalConfig) []string {
	names := make([]string, 0, len(c.LLM.Providers))
	for name := range c.LLM.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func checkDocker() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker not found in PATH")
	}
	cmd := exec.Command("docker", "info")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker daemon not running")
	}
	return nil
}

func checkOllama(url string) error {
	if url == "" {
		url = "http://localhost:11434"
	}
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(strings.TrimSuffix(url, "/") + "/api/tags")
	if err != nil {
		return fmt.Errorf("not reachable at %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
