//go:build unix

package invoker

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// prepareCommand starts the child in its own process group so the tools the
// pipeline spawns can be signalled together. Cancellation sends SIGTERM to
// the group; WaitDelay later escalates to SIGKILL on the leader.
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return signalGroup(cmd.Process, syscall.SIGTERM)
	}
}

// killGroup sends SIGKILL to whatever is left of the child's process group.
func killGroup(p *os.Process) {
	_ = signalGroup(p, syscall.SIGKILL) //nolint:errcheck // best effort after Wait
}

// signalGroup signals the process group led by p. A negative PID addresses
// the group.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return nil
	}
	err := syscall.Kill(-p.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	if err != nil {
		// Fall back to the leader alone.
		return p.Signal(sig)
	}
	return nil
}
