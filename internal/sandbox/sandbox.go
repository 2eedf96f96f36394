// Package sandbox executes shell commands requested by agents, either in an
// isolated Docker container or directly on the host.
package sandbox

import (
	"context"
	"time"
)

// Result captures the output of a command.
type Result struct {
	Stdout   string
	Stderr   string
	Code     int
	TimedOut bool
}

// Runner runs commands in a (possibly sandboxed) environment.
// Implementations should isolate the host from whatever the generated
// project's build and test commands do.
type Runner interface {
	// RunCmd runs a command in the given project directory with a timeout.
	// timeout <= 0 uses the configured default.
	RunCmd(ctx context.Context, projectDir, name string, args []string, timeout time.Duration) (Result, error)
}

// RunCmd is a convenience wrapper using the default runner (Docker when
// available, host otherwise).
func RunCmd(ctx context.Context, projectDir, name string, args []string, timeout time.Duration) (Result, error) {
	return NewDefaultRunner().RunCmd(ctx, projectDir, name, args, timeout)
}
