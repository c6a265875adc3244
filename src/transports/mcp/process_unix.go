//go:build unix

package mcp

import (
	"os/exec"
	"syscall"
)

// Servers started through npx or uvx run as grandchildren; a process group
// lets kill reach them too.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcess(cmd *exec.Cmd) error {
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
