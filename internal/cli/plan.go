// Package cli — plan.go implements the "scoped-installer plan" command.
//
// The plan command resolves the Environment Root and shows the activation
// and install commands that "install" would run, without running anything.
package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/scoped-installer/internal/envroot"
	"github.com/shinji-kodama/scoped-installer/internal/project"
	"github.com/shinji-kodama/scoped-installer/internal/scoped"
	"github.com/shinji-kodama/scoped-installer/internal/shell"
)

// NewPlanCommand creates the "plan" cobra command.
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what install would run, without running it",
		Long: `Resolve the Environment Root and print the activation and install commands
that "scoped-installer install" would run, along with the branch and
worktree state when the package directory is a Git repository.

Fails with exit status 2 when the Environment Root cannot be resolved.

Examples:
  scoped-installer plan
  scoped-installer plan --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.OutOrStdout())
		},
	}
	return cmd
}

// planOutput is the JSON form of the plan command: the resolved commands
// plus the Git context of the package directory.
type planOutput struct {
	*scoped.Plan
	Project *project.Project `json:"project"`
}

func runPlan(out io.Writer) error {
	cfg, proj, err := loadSettings()
	if err != nil {
		return err
	}

	installer := &scoped.Installer{
		Config: cfg,
		System: envroot.RealSystem{},
		Dir:    proj.Dir,
		Logger: logger,
	}
	plan, err := installer.Plan()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(out, planOutput{Plan: plan, Project: proj})
		return nil
	}

	printField(out, "Environment root", plan.Root)
	printField(out, "Activation entry", plan.Activate)
	printField(out, "Environment", plan.EnvName)
	printField(out, "Runtime", plan.Runtime.String())
	printField(out, "Directory", plan.Dir)
	if proj.InGitRepo {
		printField(out, "Git branch", proj.Branch)
		printField(out, "Worktree", strconv.FormatBool(proj.IsWorktree))
	}
	printField(out, "Activate", shell.Join(plan.ActivationArgs))
	printField(out, "Install", shell.Join(plan.InstallArgs))
	return nil
}
