//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// DETACHED_PROCESS, missing from package syscall.
const detachedProcess = 0x00000008

// configureDaemonProcess starts the daemon without a console of its own.
func configureDaemonProcess(cmd *exec.Cmd) {
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}
