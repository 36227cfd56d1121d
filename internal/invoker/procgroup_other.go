//go:build !unix

package invoker

import (
	"os"
	"os/exec"
)

// prepareCommand kills the child on cancellation. Process groups are not
// available here, so tools started by the pipeline may outlive it.
func prepareCommand(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}
}

func killGroup(p *os.Process) {
	if p != nil {
		_ = p.Kill() //nolint:errcheck // best effort after Wait
	}
}
