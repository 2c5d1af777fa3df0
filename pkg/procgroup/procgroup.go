// Package procgroup implements k8s.io/utils/exec.Interface with commands that
// run in their own process group, so that cancellation reaches every
// descendant of the command rather than only the direct child.
package procgroup

import (
	"context"
	"errors"
	"io"
	"os"
	osexec "os/exec"
	"sync"
	"time"

	utilexec "k8s.io/utils/exec"
)

const (
	// DefaultGracePeriod is the time between SIGTERM and SIGKILL on cancellation.
	DefaultGracePeriod = 10 * time.Second
	// DefaultWaitDelay bounds how long Wait keeps draining output pipes
	// after the process exits or the context is done.
	DefaultWaitDelay = DefaultGracePeriod + 5*time.Second
)

type executor struct {
	grace     time.Duration
	waitDelay time.Duration
}

// New returns an executor with default grace period and wait delay.
func New() utilexec.Interface {
	return NewWithGracePeriod(DefaultGracePeriod, DefaultWaitDelay)
}

// NewWithGracePeriod returns an executor that waits grace between SIGTERM and
// SIGKILL, and stops draining output pipes waitDelay after cancellation.
func NewWithGracePeriod(grace, waitDelay time.Duration) utilexec.Interface {
	return &executor{grace: grace, waitDelay: waitDelay}
}

func (e *executor) Command(cmd string, args ...string) utilexec.Cmd {
	return e.newCmd(osexec.Command(cmd, args...))
}

func (e *executor) CommandContext(ctx context.Context, cmd string, args ...string) utilexec.Cmd {
	return e.newCmd(osexec.CommandContext(ctx, cmd, args...))
}

func (e *executor) LookPath(file string) (string, error) {
	p, err := osexec.LookPath(file)
	return p, wrapError(err)
}

func (e *executor) newCmd(c *osexec.Cmd) *Cmd {
	setProcessGroup(c)
	cmd := &Cmd{Cmd: c, grace: e.grace}
	if c.Cancel != nil {
		c.Cancel = cmd.terminate
	}
	c.WaitDelay = e.waitDelay
	return cmd
}

// Cmd is a process-group command. It implements k8s.io/utils/exec.Cmd.
type Cmd struct {
	*osexec.Cmd

	grace time.Duration

	mu         sync.Mutex
	terminated bool
	killTimer  *time.Timer
}

var _ utilexec.Cmd = &Cmd{}

func (c *Cmd) Run() error {
	if err := c.Start(); err != nil {
		return err
	}
	return c.Wait()
}

func (c *Cmd) Start() error {
	return wrapError(c.Cmd.Start())
}

// Wait waits for the process and, if it was terminated, kills whatever is
// left of its process group.
func (c *Cmd) Wait() error {
	err := c.Cmd.Wait()

	c.mu.Lock()
	if c.terminated {
		if c.killTimer != nil {
			c.killTimer.Stop()
		}
		_ = signalGroup(c.Process, syscallKill)
	}
	c.mu.Unlock()

	return wrapError(err)
}

func (c *Cmd) Output() ([]byte, error) {
	out, err := c.Cmd.Output()
	return out, wrapError(err)
}

func (c *Cmd) CombinedOutput() ([]byte, error) {
	out, err := c.Cmd.CombinedOutput()
	return out, wrapError(err)
}

func (c *Cmd) SetDir(dir string)       { c.Dir = dir }
func (c *Cmd) SetStdin(in io.Reader)   { c.Stdin = in }
func (c *Cmd) SetStdout(out io.Writer) { c.Stdout = out }
func (c *Cmd) SetStderr(out io.Writer) { c.Stderr = out }
func (c *Cmd) SetEnv(env []string)     { c.Env = env }

// Stop sends SIGTERM to the process group, then SIGKILL after the grace period.
func (c *Cmd) Stop() {
	_ = c.terminate()
}

func (c *Cmd) terminate() error {
	if c.Process == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return nil
	}
	c.terminated = true

	if err := signalGroup(c.Process, syscallTerm); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return os.ErrProcessDone
		}
		return err
	}
	p := c.Process
	c.killTimer = time.AfterFunc(c.grace, func() {
		_ = signalGroup(p, syscallKill)
	})
	return nil
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var ee *osexec.ExitError
	if errors.As(err, &ee) {
		return &utilexec.ExitErrorWrapper{ExitError: ee}
	}
	if errors.Is(err, osexec.ErrNotFound) {
		return utilexec.ErrExecutableNotFound
	}
	return err
}
