// Command kata runs document-embedded coding practice sessions from the
// terminal, as an MCP server, or as an HTTP daemon for editor plugins.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/kata/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// cfg is loaded in PersistentPreRunE.
	cfg *config.LocalConfig

	logLevel string
	language string
)

var rootCmd = &cobra.Command{
	Use:           "kata",
	Short:         "Practice coding questions inside the file you are editing",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadLocalConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			loaded.Daemon.LogLevel = logLevel
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&language, "language", "", "language id of the practice file (default: from extension)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
