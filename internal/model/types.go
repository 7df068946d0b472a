// Package model defines the domain types for the scoped-installer CLI.
//
// These types are used throughout the application for passing data between
// the configuration layer, the install pipeline and the CLI output layer.
package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// StepName identifies one stage of the install pipeline. The stages always
// run in the order:
//
//	resolve → activate → install
//
// and the pipeline stops at the first stage that fails.
type StepName string

const (
	// StepResolve locates the Environment Root under the home directory and
	// checks that its activation entry point exists. No external process
	// is started by this step.
	StepResolve StepName = "resolve"

	// StepActivate sources the activation entry point for the named
	// environment and captures the resulting process environment.
	StepActivate StepName = "activate"

	// StepInstall runs the Install Target inside the activated environment.
	StepInstall StepName = "install"
)

// String returns the string representation of StepName.
func (s StepName) String() string {
	return string(s)
}

// IsValid checks whether the StepName value is one of the pipeline stages.
func (s StepName) IsValid() bool {
	switch s {
	case StepResolve, StepActivate, StepInstall:
		return true
	default:
		return false
	}
}

// StepStatus is the outcome of a pipeline stage that actually ran.
// Stages that never ran (because an earlier one failed) have no record.
type StepStatus string

const (
	// StepSucceeded indicates the stage completed and the pipeline advanced.
	StepSucceeded StepStatus = "succeeded"

	// StepFailed indicates the stage failed and the pipeline aborted.
	StepFailed StepStatus = "failed"
)

// String returns the string representation of StepStatus.
func (s StepStatus) String() string {
	return string(s)
}

// RuntimeKind selects where the activation and install commands execute.
type RuntimeKind string

const (
	// RuntimeHost runs commands as child processes of scoped-installer.
	RuntimeHost RuntimeKind = "host"

	// RuntimeDocker runs each command in a one-shot Docker container with
	// the Environment Root and the project directory bind-mounted at their
	// host paths.
	RuntimeDocker RuntimeKind = "docker"
)

// String returns the string representation of RuntimeKind.
func (r RuntimeKind) String() string {
	return string(r)
}

// IsValid checks whether the RuntimeKind value is a supported runtime.
func (r RuntimeKind) IsValid() bool {
	switch r {
	case RuntimeHost, RuntimeDocker:
		return true
	default:
		return false
	}
}

// ParseRuntimeKind converts a string to a RuntimeKind.
// Returns an error if the string does not match any supported runtime.
func ParseRuntimeKind(s string) (RuntimeKind, error) {
	kind := RuntimeKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid runtime: %q (valid: host, docker)", s)
	}
	return kind, nil
}

// envNameRegex accepts conda-style environment names: letters, digits,
// dots, underscores, plus and hyphens, starting with a letter or digit.
// Path separators, whitespace and the characters conda rejects (":" and "#")
// are excluded so the name can never escape the Environment Root.
var envNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)

// ValidateEnvName checks if the given name is a usable Environment Name.
func ValidateEnvName(name string) error {
	if name == "" {
		return fmt.Errorf("environment name must not be empty")
	}
	if !envNameRegex.MatchString(name) {
		return fmt.Errorf("invalid environment name %q: must start with a letter or digit and contain only letters, digits, '.', '_', '+' and '-'", name)
	}
	return nil
}

// StepRecord is the outcome of one pipeline stage that ran.
type StepRecord struct {
	// Step is the stage this record describes.
	Step StepName `json:"step"`

	// Status is whether the stage succeeded or failed.
	Status StepStatus `json:"status"`

	// ExitCode is the exit code attributed to the stage. For stages that
	// run an external command this is the command's own exit status.
	ExitCode int `json:"exitCode"`

	// Detail is a short human-readable note (resolved path, argv, or the
	// failure message).
	Detail string `json:"detail,omitempty"`
}

// Report describes one invocation of the Scoped Installer.
type Report struct {
	// Root is the resolved Environment Root. Empty if resolution failed.
	Root string `json:"root,omitempty"`

	// EnvName is the Environment Name that was (or would have been) activated.
	EnvName string `json:"envName"`

	// Runtime is where the commands executed.
	Runtime RuntimeKind `json:"runtime"`

	// Steps lists the stages that ran, in execution order.
	Steps []StepRecord `json:"steps"`

	// ExitCode is 0 only if every stage succeeded; otherwise it is the
	// exit code of the stage that failed.
	ExitCode int `json:"exitCode"`
}

// Succeeded reports whether every stage of the pipeline ran and succeeded.
func (r *Report) Succeeded() bool {
	if r == nil || len(r.Steps) == 0 {
		return false
	}
	for _, s := range r.Steps {
		if s.Status != StepSucceeded {
			return false
		}
	}
	return r.ExitCode == int(ExitSuccess)
}

// FailedStep returns the record of the stage that aborted the pipeline,
// or nil if no stage failed.
func (r *Report) FailedStep() *StepRecord {
	if r == nil {
		return nil
	}
	for i := range r.Steps {
		if r.Steps[i].Status == StepFailed {
			return &r.Steps[i]
		}
	}
	return nil
}

// ContainerInfo describes a one-shot container created by the docker
// runtime. Containers are removed as soon as their command exits, so any
// ContainerInfo returned by a listing is a leftover from an interrupted run.
type ContainerInfo struct {
	// ContainerID is the Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the Docker container name, without the leading "/".
	ContainerName string `json:"containerName"`

	// Status is the Docker container state ("running", "exited", "created").
	Status string `json:"status"`

	// EnvName is the Environment Name the container was created for.
	EnvName string `json:"envName"`

	// Step is the pipeline stage the container was running.
	Step StepName `json:"step"`

	// CreatedAt is when scoped-installer created the container.
	CreatedAt time.Time `json:"createdAt"`
}

// ExitCode defines the CLI exit codes. Codes 0-3 are owned by
// scoped-installer; a failing activation or install command exits the CLI
// with that command's own status, which may coincide with these values.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred (invalid
	// configuration, a command that could not be started).
	ExitGeneralError ExitCode = 1

	// ExitEnvRootNotFound indicates the Environment Root could not be
	// resolved: the home variable is unset, the directory does not exist,
	// or it has no activation entry point.
	ExitEnvRootNotFound ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// while the docker runtime is selected.
	ExitDockerNotRunning ExitCode = 3
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error

	// Passthrough marks failures of an external collaborator whose own
	// output has already reached the operator. The CLI exits with Code
	// without printing anything on top of it in text mode.
	Passthrough bool
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// NewPassthroughError creates a CLIError for a collaborator that exited
// with a non-zero status. Exit statuses outside 1-255 (for example a
// process killed by a signal reports -1) are mapped to ExitGeneralError
// so the overall result can never read as success.
func NewPassthroughError(status int, message string) *CLIError {
	code := ExitCode(status)
	if status <= 0 || status > 255 {
		code = ExitGeneralError
	}
	return &CLIError{Code: code, Message: message, Passthrough: true}
}

// CodeOf returns the exit code carried by the first CLIError in err's
// chain, or fallback when there is none or it carries ExitSuccess.
func CodeOf(err error, fallback ExitCode) ExitCode {
	var cliErr *CLIError
	if errors.As(err, &cliErr) && cliErr.Code != ExitSuccess {
		return cliErr.Code
	}
	return fallback
}
