package scoped

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/scoped-installer/internal/config"
	"github.com/shinji-kodama/scoped-installer/internal/envroot"
	"github.com/shinji-kodama/scoped-installer/internal/executor"
	"github.com/shinji-kodama/scoped-installer/internal/model"
	"github.com/shinji-kodama/scoped-installer/internal/pipeline"
)

// memSystem is an in-memory home directory: a fixed environment plus a
// MapFS rooted at "/". Lookups and stats are counted.
type memSystem struct {
	env     map[string]string
	files   fstest.MapFS
	lookups int
	stats   int
}

func (m *memSystem) LookupEnv(key string) (string, bool) {
	m.lookups++
	v, ok := m.env[key]
	return v, ok
}

func (m *memSystem) Stat(name string) (os.FileInfo, error) {
	m.stats++
	return fs.Stat(m.files, strings.TrimPrefix(filepath.ToSlash(name), "/"))
}

// aliceSystem has HOME=/home/alice and a conda install under
// ~/.local/bin/conda.
func aliceSystem() *memSystem {
	return &memSystem{
		env: map[string]string{"HOME": "/home/alice"},
		files: fstest.MapFS{
			"home/alice/.local/bin/conda/bin/activate": &fstest.MapFile{Data: []byte("# activate\n")},
		},
	}
}

// call is one command seen by the recording executor.
type call struct {
	Step model.StepName
	Args []string
	Env  []string
	Dir  string
	Code int
}

// recordingExec plays the activation shell and the install command. The
// activation dump and both exit statuses are configurable.
type recordingExec struct {
	calls        []call
	dump         string
	activateCode int
	installCode  int
}

func (r *recordingExec) Run(_ context.Context, cmd executor.Command) (int, error) {
	c := call{Step: cmd.Step, Args: cmd.Args, Env: cmd.Env, Dir: cmd.Dir}
	switch cmd.Step {
	case model.StepActivate:
		c.Code = r.activateCode
		if c.Code == 0 {
			_, _ = cmd.Stdout.Write([]byte(r.dump))
		}
	case model.StepInstall:
		c.Code = r.installCode
	}
	r.calls = append(r.calls, c)
	return c.Code, nil
}

func (r *recordingExec) Close() error { return nil }

func (r *recordingExec) steps() []model.StepName {
	out := make([]model.StepName, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.Step)
	}
	return out
}

const activatedDump = "HOME=/home/alice\x00CONDA_DEFAULT_ENV=bin2dco-3.9\x00PATH=/home/alice/.local/bin/conda/envs/bin2dco-3.9/bin:/usr/bin\x00"

func newInstaller(sys envroot.System, ex executor.Executor) *Installer {
	return &Installer{
		Config: config.Default(),
		System: sys,
		Exec:   ex,
		Dir:    "/src/bin2dco",
	}
}

// requireExit asserts err carries code.
func requireExit(t *testing.T, err error, code model.ExitCode) {
	t.Helper()
	require.Error(t, err)
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, code, cliErr.Code)
}

// TestRun_AliceInstallFails is the reference scenario: activation succeeds,
// install exits 1, the run exits 1 after exactly activate → install.
func TestRun_AliceInstallFails(t *testing.T) {
	ex := &recordingExec{dump: activatedDump, installCode: 1}
	s := newInstaller(aliceSystem(), ex)

	report, err := s.Run(context.Background())
	requireExit(t, err, 1)

	assert.Equal(t, 1, report.ExitCode)
	assert.Equal(t, "/home/alice/.local/bin/conda", report.Root)
	assert.False(t, report.Succeeded())

	require.Len(t, ex.calls, 2)
	assert.Equal(t, model.StepActivate, ex.calls[0].Step)
	assert.Zero(t, ex.calls[0].Code)
	script := ex.calls[0].Args[2]
	assert.Contains(t, script, "/home/alice/.local/bin/conda/bin/activate")
	assert.Contains(t, script, "bin2dco-3.9")

	assert.Equal(t, model.StepInstall, ex.calls[1].Step)
	assert.Equal(t, 1, ex.calls[1].Code)

	require.Len(t, report.Steps, 3)
	assert.Equal(t, []model.StepStatus{model.StepSucceeded, model.StepSucceeded, model.StepFailed},
		[]model.StepStatus{report.Steps[0].Status, report.Steps[1].Status, report.Steps[2].Status})
	assert.Equal(t, model.StepInstall, report.FailedStep().Step)
}

// TestRun_Success verifies a zero exit when both commands succeed, and that
// install receives the activated environment and the package directory.
func TestRun_Success(t *testing.T) {
	ex := &recordingExec{dump: activatedDump}
	s := newInstaller(aliceSystem(), ex)

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.ExitCode)
	assert.True(t, report.Succeeded())
	assert.Equal(t, []model.StepName{model.StepActivate, model.StepInstall}, ex.steps())

	inst := ex.calls[1]
	assert.Equal(t, "/src/bin2dco", inst.Dir)
	assert.Contains(t, inst.Env, "CONDA_DEFAULT_ENV=bin2dco-3.9")
	assert.Equal(t, []string{"pip", "install", "."}, inst.Args[len(inst.Args)-3:])
}

// TestRun_ActivationFails verifies install is never invoked after a failed
// activation and that the activation status is propagated.
func TestRun_ActivationFails(t *testing.T) {
	for _, status := range []int{1, 2, 42} {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			ex := &recordingExec{activateCode: status}
			s := newInstaller(aliceSystem(), ex)

			report, err := s.Run(context.Background())
			requireExit(t, err, model.ExitCode(status))

			assert.Equal(t, status, report.ExitCode)
			assert.Equal(t, []model.StepName{model.StepActivate}, ex.steps())
			require.Len(t, report.Steps, 2)
			assert.Equal(t, model.StepActivate, report.FailedStep().Step)
		})
	}
}

// TestRun_InstallStatusPropagates verifies any install failure is non-zero.
func TestRun_InstallStatusPropagates(t *testing.T) {
	for _, status := range []int{1, 3, 127, 255} {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			ex := &recordingExec{dump: activatedDump, installCode: status}
			report, err := newInstaller(aliceSystem(), ex).Run(context.Background())
			requireExit(t, err, model.ExitCode(status))
			assert.Equal(t, status, report.ExitCode)
		})
	}
}

// TestRun_SignalledInstallIsFailure verifies a killed install (-1) never
// reads as success.
func TestRun_SignalledInstallIsFailure(t *testing.T) {
	ex := &recordingExec{dump: activatedDump, installCode: -1}
	report, err := newInstaller(aliceSystem(), ex).Run(context.Background())
	requireExit(t, err, model.ExitGeneralError)
	assert.NotZero(t, report.ExitCode)
}

// TestRun_ResolutionFailureRunsNothing covers an unset or relative home, a
// missing root and a root without an activation entry point.
func TestRun_ResolutionFailureRunsNothing(t *testing.T) {
	tests := []struct {
		name string
		sys  *memSystem
	}{
		{
			name: "home unset",
			sys:  &memSystem{env: map[string]string{}, files: fstest.MapFS{}},
		},
		{
			name: "home empty",
			sys:  &memSystem{env: map[string]string{"HOME": ""}, files: fstest.MapFS{}},
		},
		{
			name: "home relative",
			sys: &memSystem{
				env:   map[string]string{"HOME": "home/alice"},
				files: fstest.MapFS{"home/alice/.local/bin/conda/bin/activate": &fstest.MapFile{}},
			},
		},
		{
			name: "root missing",
			sys:  &memSystem{env: map[string]string{"HOME": "/home/alice"}, files: fstest.MapFS{}},
		},
		{
			name: "no activate entry",
			sys: &memSystem{
				env:   map[string]string{"HOME": "/home/alice"},
				files: fstest.MapFS{"home/alice/.local/bin/conda/envs/bin2dco-3.9/bin/python": &fstest.MapFile{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &recordingExec{dump: activatedDump}
			report, err := newInstaller(tt.sys, ex).Run(context.Background())

			requireExit(t, err, model.ExitEnvRootNotFound)
			assert.Empty(t, ex.calls)
			assert.Equal(t, int(model.ExitEnvRootNotFound), report.ExitCode)
			require.Len(t, report.Steps, 1)
			assert.Equal(t, model.StepResolve, report.Steps[0].Step)
			assert.Empty(t, report.Root)
		})
	}
}

// TestRun_ResolvesEveryRun verifies the root follows HOME between runs on
// the same Installer.
func TestRun_ResolvesEveryRun(t *testing.T) {
	sys := &memSystem{
		env: map[string]string{"HOME": "/home/alice"},
		files: fstest.MapFS{
			"home/alice/.local/bin/conda/bin/activate": &fstest.MapFile{},
			"home/bob/.local/bin/conda/bin/activate":   &fstest.MapFile{},
		},
	}
	ex := &recordingExec{dump: activatedDump}
	s := newInstaller(sys, ex)

	first, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/.local/bin/conda", first.Root)

	sys.env["HOME"] = "/home/bob"
	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/home/bob/.local/bin/conda", second.Root)
	assert.Contains(t, ex.calls[2].Args[2], "/home/bob/.local/bin/conda/bin/activate")

	assert.Equal(t, 2, sys.lookups)
	assert.Equal(t, 4, sys.stats)
}

// TestRun_ObserverAndLogger verifies stage events are forwarded and logged.
func TestRun_ObserverAndLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := log.NewWithOptions(&logs, log.Options{Level: log.DebugLevel})

	var started []model.StepName
	ex := &recordingExec{dump: activatedDump}
	s := newInstaller(aliceSystem(), ex)
	s.Logger = logger
	s.Observer = func(ev pipeline.Event) {
		if ev.Record == nil {
			started = append(started, ev.Step)
		}
	}

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []model.StepName{model.StepResolve, model.StepActivate, model.StepInstall}, started)
	assert.Contains(t, logs.String(), "environment activated")
	assert.Contains(t, logs.String(), "step=install")
}

// TestPlan verifies the rendered commands without running anything.
func TestPlan(t *testing.T) {
	sys := aliceSystem()
	ex := &recordingExec{}
	s := newInstaller(sys, ex)

	plan, err := s.Plan()
	require.NoError(t, err)

	assert.Empty(t, ex.calls)
	assert.Equal(t, "/home/alice/.local/bin/conda", plan.Root)
	assert.Equal(t, "/home/alice/.local/bin/conda/bin/activate", plan.Activate)
	assert.Equal(t, "bin2dco-3.9", plan.EnvName)
	assert.Equal(t, model.RuntimeHost, plan.Runtime)
	assert.Equal(t, []string{"/bin/sh", "-c", "set -- bin2dco-3.9 && . /home/alice/.local/bin/conda/bin/activate 1>&2 && exec env -0"}, plan.ActivationArgs)
	assert.Equal(t, []string{"/bin/sh", "-c", `exec "$@"`, "scoped-installer", "pip", "install", "."}, plan.InstallArgs)
	assert.Equal(t, "/src/bin2dco", plan.Dir)
}

// TestPlan_ResolutionFailure verifies plan fails like install does.
func TestPlan_ResolutionFailure(t *testing.T) {
	s := newInstaller(&memSystem{env: map[string]string{}, files: fstest.MapFS{}}, &recordingExec{})
	_, err := s.Plan()
	requireExit(t, err, model.ExitEnvRootNotFound)
}
