// Package cli — prune.go implements the "scoped-installer prune" command.
//
// The docker runtime removes each container as soon as its command exits.
// Containers are only left behind when scoped-installer itself is killed
// mid-run; prune finds them through the
// "scoped-installer.managed-by=scoped-installer" label and removes them.
package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/scoped-installer/internal/docker"
	"github.com/shinji-kodama/scoped-installer/internal/model"
)

// pruneFlags holds the flag values for the prune command.
type pruneFlags struct {
	// dryRun lists leftover containers without removing them.
	dryRun bool
}

// NewPruneCommand creates the "prune" cobra command.
func NewPruneCommand() *cobra.Command {
	flags := &pruneFlags{}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove containers left behind by interrupted docker runs",
		Long: `Remove containers created by the docker runtime that were left behind
because scoped-installer was interrupted.

Examples:
  scoped-installer prune
  scoped-installer prune --dry-run --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "List leftover containers without removing them")

	return cmd
}

// newDockerClient connects to Docker and verifies the daemon answers.
var newDockerClient = func(ctx context.Context) (*docker.Client, error) {
	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return cli, nil
}

// pruneResult is the JSON output of the prune command.
type pruneResult struct {
	Containers []model.ContainerInfo `json:"containers"`
	Removed    int                   `json:"removed"`
	DryRun     bool                  `json:"dryRun"`
}

func runPrune(ctx context.Context, out io.Writer, flags *pruneFlags) error {
	cli, err := newDockerClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	containers, err := docker.ListManagedContainers(ctx, cli)
	if err != nil {
		return err
	}
	sort.Slice(containers, func(i, j int) bool {
		return containers[i].CreatedAt.Before(containers[j].CreatedAt)
	})
	VerboseLog("Found %d managed containers", len(containers))

	result := pruneResult{Containers: containers, DryRun: flags.dryRun}
	if !flags.dryRun {
		for _, c := range containers {
			VerboseLog("Removing container %s (%s)", c.ContainerName, c.ContainerID)
			if err := docker.RemoveContainer(ctx, cli, c.ContainerID, true); err != nil {
				return err
			}
			result.Removed++
		}
	}

	printPruneResult(out, result)
	return nil
}

// printPruneResult outputs the prune result in text or JSON format.
//
// The text format is:
//
//	CONTAINER      ENV           STEP      STATUS    CREATED
//	3f2a9c1b7d4e   bin2dco-3.9   install   running   2026-10-18T09:12:44Z
//	Removed 1 container(s)
func printPruneResult(out io.Writer, result pruneResult) {
	if jsonOutput {
		printJSON(out, result)
		return
	}

	if len(result.Containers) == 0 {
		fmt.Fprintln(out, "No leftover containers found.")
		return
	}

	fmt.Fprintf(out, "%-14s %-20s %-9s %-9s %s\n", "CONTAINER", "ENV", "STEP", "STATUS", "CREATED")
	for _, c := range result.Containers {
		created := "-"
		if !c.CreatedAt.IsZero() {
			created = c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		fmt.Fprintf(out, "%-14s %-20s %-9s %-9s %s\n",
			shortContainerID(c.ContainerID), orDash(c.EnvName), orDash(c.Step.String()), c.Status, created)
	}

	if result.DryRun {
		fmt.Fprintf(out, "Would remove %d container(s)\n", len(result.Containers))
		return
	}
	printSuccess(out, "Removed %d container(s)", result.Removed)
}

func shortContainerID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
