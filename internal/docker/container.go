package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/shinji-kodama/scoped-installer/internal/model"
)

// removeTimeout bounds the cleanup of a finished container. Cleanup runs on
// a context detached from the caller so an interrupted run still removes
// its container.
const removeTimeout = 30 * time.Second

// RunSpec describes one command to run in a throwaway container.
type RunSpec struct {
	// Image is the container image.
	Image string

	// Cmd is the command and its arguments.
	Cmd []string

	// Env is the full environment of the command as KEY=VALUE pairs.
	// Nil keeps the image's default environment.
	Env []string

	// WorkingDir is the working directory inside the container.
	WorkingDir string

	// BindPaths are host directories mounted read-write at the same path
	// inside the container.
	BindPaths []string

	// User is passed to Docker as "uid:gid"; empty keeps the image default.
	User string

	// Labels are applied to the container.
	Labels map[string]string
}

// RunOnce creates a container for spec, streams its stdout and stderr to the
// given writers, waits for it to exit and removes it. It returns the
// container's exit status. A non-nil error means the command could not be
// run at all; a command that ran and failed returns its status and nil.
func RunOnce(ctx context.Context, cli *Client, spec RunSpec, stdout, stderr io.Writer) (int, error) {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	mounts := make([]mount.Mount, 0, len(spec.BindPaths))
	for _, p := range spec.BindPaths {
		mounts = append(mounts, mount.Mount{Type: mount.TypeBind, Source: p, Target: p})
	}

	cfg := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Cmd,
		Env:        spec.Env,
		WorkingDir: spec.WorkingDir,
		User:       spec.User,
		Labels:     spec.Labels,
	}
	hostCfg := &container.HostConfig{Mounts: mounts}

	created, err := cli.Inner().ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if cerrdefs.IsNotFound(err) {
		// Like `docker run`, pull a missing image and try once more.
		if pullErr := PullImage(ctx, cli, spec.Image); pullErr != nil {
			return -1, pullErr
		}
		created, err = cli.Inner().ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	}
	if err != nil {
		return -1, model.WrapCLIError(
			daemonErrorCode(err),
			fmt.Sprintf("failed to create container from image %q", spec.Image),
			err,
		)
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
		defer cancel()
		_ = RemoveContainer(cleanupCtx, cli, created.ID, true)
	}()

	// Register the wait before starting so a command that exits
	// immediately cannot be missed.
	waitCh, errCh := cli.Inner().ContainerWait(ctx, created.ID, container.WaitConditionNextExit)

	if err := cli.Inner().ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return -1, model.WrapCLIError(
			daemonErrorCode(err),
			fmt.Sprintf("failed to start container %q", shortID(created.ID)),
			err,
		)
	}

	logs, err := cli.Inner().ContainerLogs(ctx, created.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return -1, fmt.Errorf("failed to attach to container logs: %w", err)
	}
	_, copyErr := stdcopy.StdCopy(stdout, stderr, logs)
	logs.Close()

	select {
	case res := <-waitCh:
		if res.Error != nil && res.Error.Message != "" {
			return -1, fmt.Errorf("container wait failed: %s", res.Error.Message)
		}
		if copyErr != nil && !errors.Is(copyErr, io.EOF) {
			return int(res.StatusCode), fmt.Errorf("failed to stream container output: %w", copyErr)
		}
		return int(res.StatusCode), nil
	case err := <-errCh:
		return -1, fmt.Errorf("container wait failed: %w", err)
	}
}

// PullImage pulls ref and waits for the pull to complete.
func PullImage(ctx context.Context, cli *Client, ref string) error {
	rc, err := cli.Inner().ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return model.WrapCLIError(
			daemonErrorCode(err),
			fmt.Sprintf("failed to pull image %q", ref),
			err,
		)
	}
	defer rc.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull image %q: %w", ref, err)
	}
	return nil
}

// ListManagedContainers returns every container, running or not, that
// carries the scoped-installer management label.
func ListManagedContainers(ctx context.Context, cli *Client) ([]model.ContainerInfo, error) {
	args := filters.NewArgs()
	for k, v := range FilterLabels() {
		args.Add("label", k+"="+v)
	}

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: args,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			daemonErrorCode(err),
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}
	return result, nil
}

// containerToInfo converts a Docker API container summary to a ContainerInfo.
// Containers with unreadable labels are still returned so they can be pruned.
func containerToInfo(c container.Summary) model.ContainerInfo {
	info := model.ContainerInfo{}
	if parsed, err := ParseLabels(c.Labels); err == nil {
		info = *parsed
	}

	info.ContainerID = c.ID
	info.Status = string(c.State)
	if len(c.Names) > 0 {
		// Docker reports names with a leading "/".
		info.ContainerName = strings.TrimPrefix(c.Names[0], "/")
	}
	return info
}

// RemoveContainer removes a container by ID. With force, a running
// container is killed first.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			daemonErrorCode(err),
			fmt.Sprintf("failed to remove container %q", shortID(containerID)),
			err,
		)
	}
	return nil
}

// daemonErrorCode maps a Docker API error to an exit code. Only a failure to
// reach the daemon is ExitDockerNotRunning; errors the daemon itself
// reported (missing image, denied mount) are general errors.
func daemonErrorCode(err error) model.ExitCode {
	if client.IsErrConnectionFailed(err) {
		return model.ExitDockerNotRunning
	}
	return model.ExitGeneralError
}

// shortID returns the 12-character prefix Docker shows in its own output.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
