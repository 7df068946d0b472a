// Package install performs the Install step: it runs the Install Target
// inside an environment previously produced by activation.
package install

import (
	"context"
	"fmt"
	"io"

	"github.com/shinji-kodama/scoped-installer/internal/activation"
	"github.com/shinji-kodama/scoped-installer/internal/executor"
	"github.com/shinji-kodama/scoped-installer/internal/model"
	"github.com/shinji-kodama/scoped-installer/internal/shell"
)

// ExecScript replaces the shell with its positional parameters. Running the
// target through it makes the program lookup use the activated PATH rather
// than the PATH of the process that starts the shell.
const ExecScript = `exec "$@"`

// argv0 is the $0 given to the exec shell; it shows up in shell diagnostics
// such as "scoped-installer: 1: exec: pip: not found".
const argv0 = "scoped-installer"

// Installer runs an Install Target through an Executor.
type Installer struct {
	Exec executor.Executor

	// Shell is the POSIX shell that execs the target.
	Shell string

	// Dir is the working directory of the install command.
	Dir string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Argv word-splits command, expanding parameters against env, and returns
// the target's own argv.
func Argv(env activation.Environment, command string) ([]string, error) {
	return shell.Split(command, env.Get)
}

// CommandArgs returns the full argv handed to the executor for target.
func (i *Installer) CommandArgs(target []string) []string {
	args := make([]string, 0, len(target)+4)
	args = append(args, i.Shell, "-c", ExecScript, argv0)
	return append(args, target...)
}

// Install runs command inside env. A non-zero status is returned as a
// passthrough CLIError with that status.
func (i *Installer) Install(ctx context.Context, env activation.Environment, command string) error {
	target, err := Argv(env, command)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "cannot parse install command", err)
	}

	code, err := i.Exec.Run(ctx, executor.Command{
		Step:   model.StepInstall,
		Args:   i.CommandArgs(target),
		Env:    []string(env),
		Dir:    i.Dir,
		Stdin:  i.Stdin,
		Stdout: i.Stdout,
		Stderr: i.Stderr,
	})
	if err != nil {
		return model.WrapCLIError(
			model.CodeOf(err, model.ExitGeneralError),
			fmt.Sprintf("failed to run install command %s", shell.Join(target)),
			err,
		)
	}
	if code != 0 {
		return model.NewPassthroughError(code,
			fmt.Sprintf("install command %s failed with exit status %d", shell.Join(target), code))
	}
	return nil
}
