// Package model defines the domain types and value objects for the
// scoped-installer CLI.
//
// This package contains pure data structures with no external dependencies.
// Nothing here is persisted: a Report describes one invocation and is
// discarded when the process exits. The environment being activated and the
// package being installed belong to their external tools.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
