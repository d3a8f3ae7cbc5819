//go:build unix

package ingest

import (
	"os/exec"
	"syscall"
	"time"
)

// configureProcessGroup puts cmd in its own process group and makes
// cancellation SIGTERM the whole group, escalating to SIGKILL after grace.
func configureProcessGroup(cmd *exec.Cmd, grace time.Duration) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		group := -cmd.Process.Pid
		if err := syscall.Kill(group, syscall.SIGTERM); err != nil {
			return syscall.Kill(group, syscall.SIGKILL)
		}
		go func() {
			time.Sleep(grace)
			// The group may already be gone.
			_ = syscall.Kill(group, syscall.SIGKILL)
		}()
		return nil
	}
}
