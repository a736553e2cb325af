package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/kata/internal/config"
	"github.com/felixgeelhaar/kata/internal/session"
)

var startCmd = &cobra.Command{
	Use:   "start <file>",
	Short: "Start the HTTP daemon for <file> in the background",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if isRunning() {
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Daemon is already running")
			return nil
		}

		dir, err := config.EnsureKataDir()
		if err != nil {
			return fmt.Errorf("setup kata directory: %w", err)
		}
		file, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("find kata binary: %w", err)
		}

		child := exec.Command(self, "serve", file)
		if language != "" {
			child.Args = append(child.Args, "--language", language)
		}
		child.Dir = dir
		configureDaemonProcess(child)
		if err := child.Start(); err != nil {
			return fmt.Errorf("start daemon: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, "Starting daemon...")
		for i := 0; i < 30; i++ {
			time.Sleep(100 * time.Millisecond)
			if isRunning() {
				fmt.Fprintln(out, " ✓")
				fmt.Fprintf(out, "Daemon running at %s\n", daemonAddr())
				return nil
			}
			fmt.Fprint(out, ".")
		}
		fmt.Fprintln(out, " ✗")
		return fmt.Errorf("daemon failed to start (check logs with 'kata logs')")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if !isRunning() {
			fmt.Fprintln(out, "Daemon is not running")
			return nil
		}

		dir, err := config.KataDir()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(dir, pidFileName))
		if err != nil {
			return fmt.Errorf("read PID file: %w", err)
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			return fmt.Errorf("parse PID: %w", err)
		}
		process, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("find process: %w", err)
		}

		fmt.Fprint(out, "Stopping daemon...")
		if err := process.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("send signal: %w", err)
		}
		for i := 0; i < 50; i++ {
			time.Sleep(100 * time.Millisecond)
			if !isRunning() {
				fmt.Fprintln(out, " ✓")
				return nil
			}
			fmt.Fprint(out, ".")
		}
		fmt.Fprintln(out, " ✗")
		return fmt.Errorf("daemon did not stop gracefully")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the background daemon's session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if !isRunning() {
			fmt.Fprintln(out, "Status: stopped")
			return nil
		}

		resp, err := http.Get(daemonAddr() + "/v1/status")
		if err != nil {
			return fmt.Errorf("get status: %w", err)
		}
		defer resp.Body.Close()

		var status struct {
			Version   string         `json:"version"`
			Providers []string       `json:"providers"`
			Session   session.Status `json:"session"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return fmt.Errorf("parse status: %w", err)
		}

		st := status.Session
		fmt.Fprintf(out, "Status:    running (%s)\n", status.Version)
		fmt.Fprintf(out, "Address:   %s\n", daemonAddr())
		fmt.Fprintf(out, "Providers: %s\n", strings.Join(status.Providers, ", "))
		fmt.Fprintf(out, "Document:  %s (%s)\n", st.URI, st.Language)
		if st.Question != "" {
			fmt.Fprintf(out, "Question:  %s\n", st.Question)
		}
		fmt.Fprintf(out, "Timer:     %s (running: %t)\n", st.Elapsed, st.TimerRunning)
		fmt.Fprintf(out, "Hints:     %d  Solution viewed: %t\n", st.HintsUsed, st.SolutionViewed)
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the end of the daemon log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.KataDir()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		file, err := os.Open(filepath.Join(dir, "logs", "daemon.log"))
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "No log file found. Start the daemon first.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer file.Close()

		// last ~4KB
		info, err := file.Stat()
		if err != nil {
			return err
		}
		offset := max(info.Size()-4096, 0)
		if _, err := file.Seek(offset, 0); err != nil {
			return err
		}

		scanner := bufio.NewScanner(file)
		if offset > 0 {
			scanner.Scan() // partial line
		}
		for scanner.Scan() {
			fmt.Fprintln(out, scanner.Text())
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, logsCmd)
}

func daemonAddr() string {
	return fmt.Sprintf("http://%s:%d", cfg.Daemon.Bind, cfg.Daemon.Port)
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning() bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(daemonAddr() + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
