package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Host runs commands as child processes of scoped-installer.
type Host struct{}

// NewHost returns a host executor.
func NewHost() *Host {
	return &Host{}
}

// Run starts cmd with os/exec and waits for it. Output is streamed to the
// command's writers as it is produced.
func (h *Host) Run(ctx context.Context, cmd Command) (int, error) {
	if len(cmd.Args) == 0 {
		return -1, fmt.Errorf("%s: empty command", cmd.Step)
	}

	// #nosec G204: argv comes from the operator's own configuration
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr

	err := c.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctx.Err() != nil {
			return exitErr.ExitCode(), fmt.Errorf("%s interrupted: %w", cmd.Step, ctx.Err())
		}
		// ExitCode is -1 when the process was killed by a signal.
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("failed to start %s: %w", cmd.Args[0], err)
}

// Close is a no-op for the host executor.
func (h *Host) Close() error {
	return nil
}
