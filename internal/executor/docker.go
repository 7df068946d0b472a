package executor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shinji-kodama/scoped-installer/internal/docker"
)

// DockerOptions configures the docker executor.
type DockerOptions struct {
	// Image is the image every command runs in.
	Image string

	// Pull pulls Image once, before the first command.
	Pull bool

	// EnvName is recorded on container labels.
	EnvName string

	// BindPaths are host directories mounted at the same path in every
	// container: the Environment Root and the project directory.
	BindPaths []string
}

// Docker runs each command in its own one-shot container. The Environment
// Root and project directory are bind-mounted at their host paths, so paths
// baked into the environment by its manager stay valid inside the container.
type Docker struct {
	cli    *docker.Client
	opts   DockerOptions
	now    func() time.Time
	pulled sync.Once
	pull   error
}

// NewDocker connects to the Docker daemon and verifies it answers.
func NewDocker(ctx context.Context, opts DockerOptions) (*Docker, error) {
	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return NewDockerWithClient(cli, opts), nil
}

// NewDockerWithClient builds a docker executor around an existing client.
func NewDockerWithClient(cli *docker.Client, opts DockerOptions) *Docker {
	return &Docker{cli: cli, opts: opts, now: time.Now}
}

// Run executes cmd in a fresh container and returns its exit status.
// cmd.Stdin is not forwarded.
func (d *Docker) Run(ctx context.Context, cmd Command) (int, error) {
	if len(cmd.Args) == 0 {
		return -1, fmt.Errorf("%s: empty command", cmd.Step)
	}

	if d.opts.Pull {
		d.pulled.Do(func() { d.pull = docker.PullImage(ctx, d.cli, d.opts.Image) })
		if d.pull != nil {
			return -1, d.pull
		}
	}

	spec := docker.RunSpec{
		Image:      d.opts.Image,
		Cmd:        cmd.Args,
		Env:        cmd.Env,
		WorkingDir: cmd.Dir,
		BindPaths:  d.opts.BindPaths,
		User:       hostUser(),
		Labels:     docker.BuildLabels(d.opts.EnvName, cmd.Step, d.now()),
	}
	return docker.RunOnce(ctx, d.cli, spec, cmd.Stdout, cmd.Stderr)
}

// Close releases the Docker client.
func (d *Docker) Close() error {
	return d.cli.Close()
}

// hostUser returns "uid:gid" of the current process so files written into
// the bind-mounted environment keep the operator's ownership. Empty on
// platforms without numeric ids.
func hostUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 || gid < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", uid, gid)
}
