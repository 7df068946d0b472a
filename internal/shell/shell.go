// Package shell builds and splits the command lines scoped-installer hands
// to a POSIX shell. Quoting and word splitting follow real shell rules via
// mvdan.cc/sh, so paths with spaces and quoted install arguments behave
// exactly as they would when typed by the operator.
package shell

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

// Quote returns s quoted for a POSIX shell. Strings that need no quoting
// are returned unchanged.
func Quote(s string) (string, error) {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("cannot quote %q for the shell: %w", s, err)
	}
	return q, nil
}

// ActivationScript returns the script that activates envName by sourcing
// the entry point at activatePath and then dumps the activated environment
// as NUL-separated KEY=VALUE pairs on stdout.
//
// The environment name is passed through the positional parameters because
// POSIX "." does not forward arguments. Everything the entry point prints
// goes to stderr so stdout carries only the dump.
func ActivationScript(activatePath, envName string) (string, error) {
	qPath, err := Quote(activatePath)
	if err != nil {
		return "", err
	}
	qName, err := Quote(envName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("set -- %s && . %s 1>&2 && exec env -0", qName, qPath), nil
}

// Split word-splits an install command line with POSIX shell rules.
// Parameter expansions are resolved through lookup; a nil lookup expands
// every parameter to the empty string. Command substitution is rejected.
func Split(command string, lookup func(string) string) ([]string, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("install command must not be empty")
	}
	if lookup == nil {
		lookup = func(string) string { return "" }
	}
	fields, err := shell.Fields(command, lookup)
	if err != nil {
		return nil, fmt.Errorf("invalid install command %q: %w", command, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("install command %q expands to nothing", command)
	}
	return fields, nil
}

// Join renders argv as a single shell-safe line for display.
func Join(argv []string) string {
	parts := make([]string, 0, len(argv))
	for _, a := range argv {
		q, err := Quote(a)
		if err != nil {
			q = fmt.Sprintf("%q", a)
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, " ")
}
