package activation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/scoped-installer/internal/envroot"
	"github.com/shinji-kodama/scoped-installer/internal/executor"
	"github.com/shinji-kodama/scoped-installer/internal/model"
)

// fakeActivateScript mimics conda's bin/activate: it knows one environment,
// prints a chatty line, and prepends the environment's bin directory to PATH.
const fakeActivateScript = `
if [ "$1" != "bin2dco-3.9" ]; then
  echo "Could not find conda environment: $1" >&2
  return 1
fi
echo "activating $1"
export CONDA_DEFAULT_ENV="$1"
export PATH="%s/envs/$1/bin:$PATH"
`

// makeRoot writes a fake Environment Root and returns it resolved.
func makeRoot(t *testing.T) *envroot.Root {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "conda")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	activate := filepath.Join(dir, "bin", "activate")
	require.NoError(t, os.WriteFile(activate, []byte(fmt.Sprintf(fakeActivateScript, dir)), 0o644))
	return &envroot.Root{Path: dir, Activate: activate}
}

// TestParseDump covers the env -0 format.
func TestParseDump(t *testing.T) {
	env, err := ParseDump([]byte("A=1\x00B=x=y\x00MULTI=line1\nline2\x00EMPTY=\x00"))
	require.NoError(t, err)

	assert.Equal(t, Environment{"A=1", "B=x=y", "MULTI=line1\nline2", "EMPTY="}, env)
	assert.Equal(t, "x=y", env.Get("B"))
	assert.Equal(t, "line1\nline2", env.Get("MULTI"))

	v, ok := env.Lookup("EMPTY")
	assert.True(t, ok)
	assert.Empty(t, v)

	_, ok = env.Lookup("MISSING")
	assert.False(t, ok)
}

// TestParseDump_Errors covers malformed and empty dumps.
func TestParseDump_Errors(t *testing.T) {
	for name, data := range map[string]string{
		"empty":      "",
		"only nul":   "\x00\x00",
		"no equals":  "A=1\x00garbage\x00",
		"empty name": "=value\x00",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDump([]byte(data))
			assert.Error(t, err)
		})
	}
}

// TestEnvironment_LastWins verifies duplicate keys resolve like exec.Cmd.Env.
func TestEnvironment_LastWins(t *testing.T) {
	env := Environment{"PATH=/old", "HOME=/h", "PATH=/new"}
	assert.Equal(t, "/new", env.Get("PATH"))
	assert.Equal(t, []string{"HOME", "PATH"}, env.Keys())
}

// TestActivate_Command verifies what is handed to the executor: the shell,
// a script that sources the entry point, and the activate step name.
func TestActivate_Command(t *testing.T) {
	root := &envroot.Root{Path: "/home/alice/.local/bin/conda", Activate: "/home/alice/.local/bin/conda/bin/activate"}

	var got executor.Command
	a := &Activator{
		Shell: "/bin/sh",
		Exec: executor.Func(func(_ context.Context, cmd executor.Command) (int, error) {
			got = cmd
			_, _ = cmd.Stdout.Write([]byte("CONDA_DEFAULT_ENV=bin2dco-3.9\x00PATH=/p\x00"))
			return 0, nil
		}),
	}

	env, err := a.Activate(context.Background(), root, "bin2dco-3.9")
	require.NoError(t, err)

	assert.Equal(t, model.StepActivate, got.Step)
	require.Len(t, got.Args, 3)
	assert.Equal(t, "/bin/sh", got.Args[0])
	assert.Equal(t, "-c", got.Args[1])
	assert.Contains(t, got.Args[2], ". /home/alice/.local/bin/conda/bin/activate")
	assert.Contains(t, got.Args[2], "set -- bin2dco-3.9")
	assert.Nil(t, got.Env, "activation inherits the executor's environment")

	assert.Equal(t, "bin2dco-3.9", env.Get("CONDA_DEFAULT_ENV"))
}

// TestActivate_FailureStatus verifies the shell's status is propagated.
func TestActivate_FailureStatus(t *testing.T) {
	a := &Activator{
		Shell: "/bin/sh",
		Exec: executor.Func(func(context.Context, executor.Command) (int, error) {
			return 4, nil
		}),
	}

	_, err := a.Activate(context.Background(), &envroot.Root{Activate: "/x/bin/activate"}, "env")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitCode(4), cliErr.Code)
	assert.True(t, cliErr.Passthrough)
}

// TestActivate_StartError verifies an executor error is a general error.
func TestActivate_StartError(t *testing.T) {
	a := &Activator{
		Shell: "/no/such/shell",
		Exec: executor.Func(func(context.Context, executor.Command) (int, error) {
			return -1, errors.New("exec: no such file")
		}),
	}

	_, err := a.Activate(context.Background(), &envroot.Root{Activate: "/x/bin/activate"}, "env")
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
	assert.False(t, cliErr.Passthrough)
}

// TestActivate_Host runs the real host executor against a fake entry point.
func TestActivate_Host(t *testing.T) {
	root := makeRoot(t)
	var stderr bytes.Buffer
	a := &Activator{Exec: executor.NewHost(), Shell: "/bin/sh", Stderr: &stderr}

	env, err := a.Activate(context.Background(), root, "bin2dco-3.9")
	require.NoError(t, err)

	assert.Equal(t, "bin2dco-3.9", env.Get("CONDA_DEFAULT_ENV"))
	assert.Contains(t, env.Get("PATH"), filepath.Join(root.Path, "envs", "bin2dco-3.9", "bin"))
	assert.Equal(t, "activating bin2dco-3.9\n", stderr.String(), "entry point chatter goes to stderr")
}

// TestActivate_HostUnknownEnv verifies an unknown environment fails with
// the entry point's own status and message.
func TestActivate_HostUnknownEnv(t *testing.T) {
	root := makeRoot(t)
	var stderr bytes.Buffer
	a := &Activator{Exec: executor.NewHost(), Shell: "/bin/sh", Stderr: &stderr}

	_, err := a.Activate(context.Background(), root, "missing-env")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitCode(1), cliErr.Code)
	assert.Contains(t, stderr.String(), "Could not find conda environment: missing-env")
}
