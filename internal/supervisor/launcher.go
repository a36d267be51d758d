package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
)

// Handle tracks one launched player process.
type Handle interface {
	// PID identifies the process for logs.
	PID() int
	// Exited reports process death without blocking.
	Exited() bool
	// Signal delivers a termination signal.
	Signal(sig os.Signal) error
	// Kill force-terminates the process.
	Kill() error
}

// Launcher starts player processes. The default implementation shells out to
// the configured binary; tests inject fakes.
type Launcher interface {
	Launch(ctx context.Context, binary string, args []string) (Handle, error)
}

type execLauncher struct{}

// NewExecLauncher returns the production launcher backed by os/exec.
func NewExecLauncher() Launcher {
	return execLauncher{}
}

func (execLauncher) Launch(ctx context.Context, binary string, args []string) (Handle, error) {
	cmd := exec.Command(binary, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}

	h := &procHandle{cmd: cmd}
	go func() {
		_ = cmd.Wait()
		h.exited.Store(true)
	}()
	return h, nil
}

type procHandle struct {
	cmd    *exec.Cmd
	exited atomic.Bool
}

func (h *procHandle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

func (h *procHandle) Exited() bool {
	return h.exited.Load()
}

func (h *procHandle) Signal(sig os.Signal) error {
	if h.exited.Load() || h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Signal(sig)
}

func (h *procHandle) Kill() error {
	if h.exited.Load() || h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}
