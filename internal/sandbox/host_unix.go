//go:build !windows
// +build !windows

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"
)

// Agent-issued commands run whole builds and test suites, so the default
// ceiling is generous.
const defaultCmdTimeout = 5 * time.Minute

// HostRunner runs commands directly on the host machine without isolation.
// Only used when Docker is unavailable or explicitly requested.
type HostRunner struct {
	config Config
}

// RunCmd runs a command in the given project directory with a timeout.
func (r *HostRunner) RunCmd(ctx context.Context, projectDir, name string, args []string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = r.config.CmdTimeout
		if timeout <= 0 {
			timeout = defaultCmdTimeout
		}
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(name, args...)
	cmd.Dir = projectDir
	// New process group so the whole tree can be killed on timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return Result{}, err
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-cctx.Done():
			if cmd.Process != nil {
				syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	res := Result{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}
	if errors.Is(cctx.Err(), context.DeadlineExceeded) || errors.Is(cctx.Err(), context.Canceled) {
		res.TimedOut = true
	}

	// A non-zero exit is data for the caller, not a runner failure: the
	// captured output and code go back so the agent can react to them.
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		res.Code = exitErr.ExitCode()
	default:
		res.Code = 1
		return res, waitErr
	}
	return res, nil
}
