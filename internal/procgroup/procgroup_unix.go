//go:build unix

// Package procgroup makes command cancellation reach grandchildren.
package procgroup

import (
	"os/exec"
	"syscall"
)

// Set starts cmd in its own process group and makes context cancellation
// SIGKILL the whole group, so a shell wrapper cannot leave its children
// running after a timeout.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
