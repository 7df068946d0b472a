// Package activation performs the Activation step: it sources the
// environment manager's activation entry point for a named environment and
// captures the process environment that results, so later commands can run
// "inside" the activated environment without sharing a shell with it.
package activation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shinji-kodama/scoped-installer/internal/envroot"
	"github.com/shinji-kodama/scoped-installer/internal/executor"
	"github.com/shinji-kodama/scoped-installer/internal/model"
	"github.com/shinji-kodama/scoped-installer/internal/shell"
)

// Environment is an activated process environment as KEY=VALUE pairs, in
// the order the activation shell reported them.
type Environment []string

// Lookup returns the value of key and whether it is present. When a key
// appears more than once the last occurrence wins, as with exec.Cmd.Env.
func (e Environment) Lookup(key string) (string, bool) {
	for i := len(e) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(e[i], "=")
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}

// Get returns the value of key, or "" when it is absent.
func (e Environment) Get(key string) string {
	v, _ := e.Lookup(key)
	return v
}

// Keys returns the sorted, de-duplicated variable names.
func (e Environment) Keys() []string {
	seen := make(map[string]struct{}, len(e))
	keys := make([]string, 0, len(e))
	for _, kv := range e {
		k, _, _ := strings.Cut(kv, "=")
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseDump parses the NUL-separated output of `env -0`. Empty records
// (the trailing NUL) are skipped; a record without "=" is an error.
func ParseDump(data []byte) (Environment, error) {
	var env Environment
	for _, rec := range bytes.Split(data, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		if bytes.IndexByte(rec, '=') <= 0 {
			return nil, fmt.Errorf("malformed environment record %q", truncate(string(rec), 40))
		}
		env = append(env, string(rec))
	}
	if len(env) == 0 {
		return nil, fmt.Errorf("activation produced an empty environment")
	}
	return env, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Activator runs the activation entry point through an Executor.
type Activator struct {
	// Exec runs the activation shell.
	Exec executor.Executor

	// Shell is the POSIX shell that sources the entry point.
	Shell string

	// Stderr receives everything the activation entry point prints.
	Stderr io.Writer
}

// Activate activates envName under root and returns the activated
// environment.
//
// A non-zero status from the activation shell (unknown environment,
// broken entry point) is returned as a passthrough CLIError carrying that
// status. Failing to start the shell, or an unparseable dump, is a
// general error unless the executor reported a more specific exit code.
func (a *Activator) Activate(ctx context.Context, root *envroot.Root, envName string) (Environment, error) {
	script, err := shell.ActivationScript(root.Activate, envName)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "cannot build activation script", err)
	}

	var dump bytes.Buffer
	code, err := a.Exec.Run(ctx, executor.Command{
		Step:   model.StepActivate,
		Args:   []string{a.Shell, "-c", script},
		Stdout: &dump,
		Stderr: a.Stderr,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.CodeOf(err, model.ExitGeneralError),
			fmt.Sprintf("failed to run activation for environment %q", envName),
			err,
		)
	}
	if code != 0 {
		return nil, model.NewPassthroughError(code,
			fmt.Sprintf("activation of environment %q failed with exit status %d", envName, code))
	}

	env, err := ParseDump(dump.Bytes())
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("cannot read activated environment %q", envName),
			err,
		)
	}
	return env, nil
}
