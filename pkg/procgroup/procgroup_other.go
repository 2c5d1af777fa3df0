//go:build !unix

package procgroup

import (
	"os"
	osexec "os/exec"
	"syscall"
)

const (
	syscallTerm = syscall.SIGTERM
	syscallKill = syscall.SIGKILL
)

func setProcessGroup(c *osexec.Cmd) {}

// signalGroup kills p; process groups are not available on this platform.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}
