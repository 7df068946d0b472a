// Package cli implements the cobra-based CLI commands for scoped-installer.
//
// Each subcommand (install, plan, prune) is defined in its own file within
// this package. This file defines the root command that serves as the
// parent for all subcommands and handles global flags, logging setup and
// the translation of errors into process exit codes.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/scoped-installer/internal/config"
	"github.com/shinji-kodama/scoped-installer/internal/logging"
	"github.com/shinji-kodama/scoped-installer/internal/model"
	"github.com/shinji-kodama/scoped-installer/internal/project"
)

// Global flag variables shared across all subcommands. They are bound to
// cobra persistent flags on the root command.
var (
	// jsonOutput switches command results (and error reports) to JSON.
	jsonOutput bool

	// verbose enables debug diagnostics on stderr.
	verbose bool

	// configPath is an explicit configuration file. Empty means look for
	// .scoped-installer.* in the package directory.
	configPath string

	// logFile redirects diagnostics to a rotating log file.
	logFile string

	// projectDir overrides package directory detection.
	projectDir string
)

// logger is rebuilt from the global flags before every command runs.
var (
	logger    = logging.Discard()
	logCloser io.Closer
)

// Version, Commit and Date are set at build time via ldflags. They are
// injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// The root command itself does not perform any action. It provides help
// text and global flags; install, plan and prune are subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scoped-installer",
		Short: "Install a package inside an activated conda environment",
		Long: `scoped-installer activates a named environment from a fixed location under
your home directory and runs one install command inside it.

The Environment Root is <$HOME>/.local/bin/conda by default. Activation and
install run strictly in sequence: the install command only runs after the
environment was activated, and the exit status is zero only when both
succeeded. A failing step's own exit status is passed through unchanged.`,

		// Errors are printed by Run, in text or JSON.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			setupLogger(cmd.ErrOrStderr())
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.StringVar(&configPath, "config", "", "Configuration file (default: .scoped-installer.{yaml,yml,jsonc,json,toml} in the package directory)")
	pf.StringVar(&logFile, "log-file", "", "Write diagnostics to a rotating log file instead of stderr")
	pf.StringVar(&projectDir, "dir", "", "Package directory to install (default: Git top level, else current directory)")

	rootCmd.AddCommand(NewInstallCommand())
	rootCmd.AddCommand(NewPlanCommand())
	rootCmd.AddCommand(NewPruneCommand())

	return rootCmd
}

// Execute runs rootCmd with ctx and exits the process with the resulting
// exit code. This is the entry point called from main.go.
func Execute(ctx context.Context, rootCmd *cobra.Command) {
	os.Exit(Run(ctx, rootCmd))
}

// Run executes rootCmd and returns the process exit code. Errors are
// printed to the command's stderr, except for failures of the activation
// or install command in text mode: their own output already explains them.
func Run(ctx context.Context, rootCmd *cobra.Command) int {
	err := rootCmd.ExecuteContext(ctx)
	code := handleError(rootCmd.ErrOrStderr(), err)
	closeLogger()
	return code
}

// handleError prints err and returns the exit code it maps to.
func handleError(w io.Writer, err error) int {
	if err == nil {
		return int(model.ExitSuccess)
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		logger.Debug("command failed", "code", int(cliErr.Code), "err", err)
		if !cliErr.Passthrough || jsonOutput {
			printError(w, cliErr.Message, cliErr.Err)
		}
		return int(cliErr.Code)
	}

	printError(w, err.Error(), nil)
	return int(model.ExitGeneralError)
}

// printError outputs an error message in the appropriate format (JSON or
// text) based on the --json global flag. Errors always go to stderr since
// stdout is reserved for command results.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// setupLogger builds the package logger from the global flags.
func setupLogger(stderr io.Writer) {
	closeLogger()
	logger, logCloser = logging.New(logging.Options{
		Verbose: verbose,
		File:    logFile,
		Stderr:  stderr,
	})
}

func closeLogger() {
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

// VerboseLog records a debug diagnostic. It is shown on stderr with
// --verbose and always written to the --log-file when one is set.
func VerboseLog(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// loadSettings locates the package directory and loads the configuration
// that applies to it.
func loadSettings() (*config.Config, *project.Project, error) {
	proj, err := project.NewLocator().Locate(projectDir)
	if err != nil {
		return nil, nil, err
	}
	VerboseLog("Package directory: %s (git: %t, branch: %q, worktree: %t)",
		proj.Dir, proj.InGitRepo, proj.Branch, proj.IsWorktree)

	cfg, path, err := config.LoadOrDefault(configPath, proj.Dir)
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		VerboseLog("No configuration file found, using defaults")
	} else {
		VerboseLog("Loaded configuration from %s", path)
	}
	return cfg, proj, nil
}
