// Package executor decides where scoped-installer's commands run.
//
// Both pipeline stages that start a process (activation and install) go
// through an Executor, so the same pipeline can run on the host or inside
// a throwaway container, and tests can record invocations without starting
// anything.
package executor

import (
	"context"
	"io"

	"github.com/shinji-kodama/scoped-installer/internal/model"
)

// Command is one process to run.
type Command struct {
	// Step is the pipeline stage issuing the command.
	Step model.StepName

	// Args is the program and its arguments. Args[0] is resolved through
	// the PATH of the executor's own environment.
	Args []string

	// Env is the complete environment as KEY=VALUE pairs. Nil inherits the
	// executor's default environment.
	Env []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Executor runs commands to completion.
//
// Run returns the exit status of a command that ran, with a nil error even
// when the status is non-zero. A non-nil error means the command could not
// be started or its status could not be determined.
type Executor interface {
	Run(ctx context.Context, cmd Command) (int, error)
	Close() error
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, cmd Command) (int, error)

// Run calls f.
func (f Func) Run(ctx context.Context, cmd Command) (int, error) {
	return f(ctx, cmd)
}

// Close is a no-op.
func (f Func) Close() error {
	return nil
}
