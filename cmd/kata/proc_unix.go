//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonProcess starts the daemon in a new session so closing
// the terminal that ran 'kata start' does not stop it.
func configureDaemonProcess(cmd *exec.Cmd) {
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
