//go:build unix

package procgroup

import (
	"errors"
	"os"
	osexec "os/exec"
	"syscall"
)

const (
	syscallTerm = syscall.SIGTERM
	syscallKill = syscall.SIGKILL
)

func setProcessGroup(c *osexec.Cmd) {
	if c.SysProcAttr == nil {
		c.SysProcAttr = &syscall.SysProcAttr{}
	}
	c.SysProcAttr.Setpgid = true
}

// signalGroup signals every process in the group led by p.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return nil
	}
	err := syscall.Kill(-p.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
