//go:build windows

package command

import (
	"os"
	"os/exec"
)

// killProcessGroup makes context cancellation kill the command. Windows has
// no Unix-style process groups, so children may outlive it.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Kill)
	}
}
