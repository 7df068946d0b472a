package scoped

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/shinji-kodama/scoped-installer/internal/activation"
	"github.com/shinji-kodama/scoped-installer/internal/config"
	"github.com/shinji-kodama/scoped-installer/internal/envroot"
	"github.com/shinji-kodama/scoped-installer/internal/executor"
	"github.com/shinji-kodama/scoped-installer/internal/install"
	"github.com/shinji-kodama/scoped-installer/internal/model"
	"github.com/shinji-kodama/scoped-installer/internal/pipeline"
	"github.com/shinji-kodama/scoped-installer/internal/shell"
)

// Installer runs one scoped install.
type Installer struct {
	Config *config.Config
	System envroot.System
	Exec   executor.Executor

	// Dir is the package directory the install command runs in.
	Dir string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Logger receives diagnostics. Nil discards them.
	Logger *log.Logger

	// Observer, if set, is notified around each stage.
	Observer pipeline.Observer
}

// Run executes resolve → activate → install and returns the report. The
// error is that of the failing stage, or nil when every stage succeeded.
func (s *Installer) Run(ctx context.Context) (*model.Report, error) {
	logger := s.logger()
	report := &model.Report{EnvName: s.Config.EnvName, Runtime: s.Config.Runtime}

	var (
		root *envroot.Root
		env  activation.Environment
	)

	activator := &activation.Activator{Exec: s.Exec, Shell: s.Config.Shell, Stderr: s.Stderr}
	installer := &install.Installer{
		Exec:   s.Exec,
		Shell:  s.Config.Shell,
		Dir:    s.Dir,
		Stdin:  s.Stdin,
		Stdout: s.Stdout,
		Stderr: s.Stderr,
	}

	res := pipeline.Run(ctx, s.observe(logger),
		pipeline.Step{
			Name: model.StepResolve,
			Run: func(context.Context) (string, error) {
				r, err := envroot.Resolve(s.system(), s.Config.RootSuffix)
				if err != nil {
					return "", err
				}
				root = r
				report.Root = r.Path
				return r.Path, nil
			},
		},
		pipeline.Step{
			Name: model.StepActivate,
			Run: func(ctx context.Context) (string, error) {
				e, err := activator.Activate(ctx, root, s.Config.EnvName)
				if err != nil {
					return "", err
				}
				env = e
				logger.Debug("environment activated", "env", s.Config.EnvName, "vars", len(env), "path", env.Get("PATH"))
				return fmt.Sprintf("activated %s from %s", s.Config.EnvName, root.Path), nil
			},
		},
		pipeline.Step{
			Name: model.StepInstall,
			Run: func(ctx context.Context) (string, error) {
				if err := installer.Install(ctx, env, s.Config.Install); err != nil {
					return "", err
				}
				return s.Config.Install, nil
			},
		},
	)

	report.Steps = res.Records
	report.ExitCode = int(res.ExitCode)
	return report, res.Err
}

// Plan describes what Run would do, without starting any process.
type Plan struct {
	Root           string            `json:"root"`
	Activate       string            `json:"activate"`
	EnvName        string            `json:"envName"`
	Runtime        model.RuntimeKind `json:"runtime"`
	ActivationArgs []string          `json:"activationArgs"`
	InstallArgs    []string          `json:"installArgs"`
	Dir            string            `json:"dir"`
}

// Plan resolves the Environment Root and renders the activation and install
// commands. Parameters in the install command are expanded against the
// current process environment, since the activated one does not exist yet.
func (s *Installer) Plan() (*Plan, error) {
	sys := s.system()
	root, err := envroot.Resolve(sys, s.Config.RootSuffix)
	if err != nil {
		return nil, err
	}

	script, err := shell.ActivationScript(root.Activate, s.Config.EnvName)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "cannot build activation script", err)
	}

	target, err := shell.Split(s.Config.Install, func(name string) string {
		v, _ := sys.LookupEnv(name)
		return v
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "cannot parse install command", err)
	}
	installer := &install.Installer{Shell: s.Config.Shell}

	return &Plan{
		Root:           root.Path,
		Activate:       root.Activate,
		EnvName:        s.Config.EnvName,
		Runtime:        s.Config.Runtime,
		ActivationArgs: []string{s.Config.Shell, "-c", script},
		InstallArgs:    installer.CommandArgs(target),
		Dir:            s.Dir,
	}, nil
}

func (s *Installer) system() envroot.System {
	if s.System == nil {
		return envroot.RealSystem{}
	}
	return s.System
}

func (s *Installer) logger() *log.Logger {
	if s.Logger == nil {
		return log.New(io.Discard)
	}
	return s.Logger
}

// observe logs each stage and forwards the event to s.Observer.
func (s *Installer) observe(logger *log.Logger) pipeline.Observer {
	return func(ev pipeline.Event) {
		switch {
		case ev.Record == nil:
			logger.Debug("starting step", "step", ev.Step)
		case ev.Record.Status == model.StepFailed:
			logger.Debug("step failed", "step", ev.Step, "exit", ev.Record.ExitCode)
		default:
			logger.Debug("step succeeded", "step", ev.Step, "detail", ev.Record.Detail)
		}
		if s.Observer != nil {
			s.Observer(ev)
		}
	}
}
