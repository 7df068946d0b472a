// Package cli — install.go implements the "scoped-installer install" command.
//
// The install command is the single action of the tool: resolve the
// Environment Root, activate the configured environment, and run the
// Install Target inside it. The process exits with 0 only if both the
// activation and the install command succeeded; otherwise it exits with
// the failing command's own status (or 2 when the Environment Root cannot
// be resolved).
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/scoped-installer/internal/config"
	"github.com/shinji-kodama/scoped-installer/internal/envroot"
	"github.com/shinji-kodama/scoped-installer/internal/executor"
	"github.com/shinji-kodama/scoped-installer/internal/model"
	"github.com/shinji-kodama/scoped-installer/internal/scoped"
)

// installFlags holds the flag values for the install command.
type installFlags struct {
	// runtime overrides the configured runtime ("host" or "docker").
	runtime string

	// pull forces an image pull with the docker runtime.
	pull bool
}

// NewInstallCommand creates the "install" cobra command.
func NewInstallCommand() *cobra.Command {
	flags := &installFlags{}

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Activate the environment and run the install command in it",
		Long: `Activate the configured environment from the Environment Root and run the
install command inside it.

The install command's output is streamed as is. When activation or the
install command fails, its exit status becomes the exit status of
scoped-installer and nothing else is printed.

Examples:
  scoped-installer install
  scoped-installer install --dir ./bin2dco
  scoped-installer install --runtime docker --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd.Context(), cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.runtime, "runtime", "", "Where to run commands: host or docker (default: from config)")
	cmd.Flags().BoolVar(&flags.pull, "pull", false, "Pull the docker image before running (docker runtime)")

	return cmd
}

// runInstall loads the settings, runs the scoped install and reports it.
func runInstall(ctx context.Context, cmd *cobra.Command, flags *installFlags) error {
	cfg, proj, err := loadSettings()
	if err != nil {
		return err
	}
	if err := applyInstallFlags(cfg, flags); err != nil {
		return err
	}

	VerboseLog("Environment %q, install %q, runtime %s", cfg.EnvName, cfg.Install, cfg.Runtime)

	ex := newExecutor(cfg, proj.Dir)
	defer func() { _ = ex.Close() }()

	// In JSON mode stdout carries only the report.
	stdout := cmd.OutOrStdout()
	if jsonOutput {
		stdout = cmd.ErrOrStderr()
	}

	installer := &scoped.Installer{
		Config: cfg,
		System: envroot.RealSystem{},
		Exec:   ex,
		Dir:    proj.Dir,
		Stdin:  cmd.InOrStdin(),
		Stdout: stdout,
		Stderr: cmd.ErrOrStderr(),
		Logger: logger,
	}

	report, runErr := installer.Run(ctx)
	printInstallResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), report, runErr)
	return runErr
}

// applyInstallFlags applies command-line overrides to cfg.
func applyInstallFlags(cfg *config.Config, flags *installFlags) error {
	if flags.runtime != "" {
		kind, err := model.ParseRuntimeKind(flags.runtime)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "invalid --runtime", err)
		}
		cfg.Runtime = kind
	}
	if flags.pull {
		cfg.Docker.Pull = true
	}
	return nil
}

// newExecutor returns the executor for cfg.Runtime. The docker runtime
// connects to the daemon only when the first command runs, so a missing
// Environment Root is reported before Docker is contacted.
var newExecutor = func(cfg *config.Config, dir string) executor.Executor {
	if cfg.Runtime != model.RuntimeDocker {
		return executor.NewHost()
	}

	return executor.NewLazy(func(ctx context.Context) (executor.Executor, error) {
		home, _ := os.LookupEnv(envroot.HomeVar)
		opts := executor.DockerOptions{
			Image:     cfg.Docker.Image,
			Pull:      cfg.Docker.Pull,
			EnvName:   cfg.EnvName,
			BindPaths: []string{envroot.Path(home, cfg.RootSuffix), dir},
		}
		VerboseLog("Connecting to Docker (image %s)", opts.Image)
		d, err := executor.NewDocker(ctx, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

// printInstallResult reports the outcome. In text mode a success line is
// printed; failures are left to the error handler. In JSON mode the report
// is printed either way.
func printInstallResult(stdout, stderr io.Writer, report *model.Report, runErr error) {
	if jsonOutput {
		printJSON(stdout, report)
		return
	}
	if runErr != nil {
		if verbose {
			if failed := report.FailedStep(); failed != nil {
				printFailure(stderr, "%s failed (exit %d)", failed.Step, failed.ExitCode)
			}
		}
		return
	}
	printSuccess(stdout, "Installed into %s (%s)", report.EnvName, report.Root)
	if verbose {
		for _, s := range report.Steps {
			fmt.Fprintf(stdout, "  %-9s %s\n", s.Step, s.Detail)
		}
	}
}
