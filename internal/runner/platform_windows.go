//go:build windows

package runner

import (
	"os/exec"
	"syscall"
)

// setupProcessGroup hides the spawned console window, the CREATE_NO_WINDOW
// equivalent used by the original implementation's project runner.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
}

// killProcessGroup kills the direct child; Windows has no POSIX process
// groups, so dev-server children are reaped individually if they outlive it.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
