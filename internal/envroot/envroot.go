// Package envroot resolves the Environment Root: the directory of the
// environment-management tool whose activation entry point is sourced to
// activate a named environment.
//
// The root is always "<home>/<suffix>". It is resolved from scratch on every
// call; nothing is cached between invocations. Resolution fails, without
// starting any process, when the home variable is unset, empty or relative,
// when the root is not a directory, or when it has no activation entry point.
package envroot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/scoped-installer/internal/model"
)

// HomeVar is the process environment variable the root is built from.
const HomeVar = "HOME"

// ActivateEntry is the activation entry point, relative to the root.
var ActivateEntry = filepath.Join("bin", "activate")

// Sentinel errors let callers distinguish the resolution failures.
var (
	// ErrHomeUnset reports that HomeVar is unset or empty.
	ErrHomeUnset = errors.New("home directory variable is not set")

	// ErrHomeNotAbsolute reports that HomeVar holds a relative path.
	ErrHomeNotAbsolute = errors.New("home directory variable is not an absolute path")

	// ErrRootNotFound reports that the root is missing or not a directory.
	ErrRootNotFound = errors.New("environment root not found")

	// ErrNoActivateEntry reports that the root has no activation entry point.
	ErrNoActivateEntry = errors.New("activation entry point not found")
)

// System abstracts the process environment and filesystem lookups needed
// for resolution so tests can run without touching the real home directory.
type System interface {
	LookupEnv(key string) (string, bool)
	Stat(name string) (os.FileInfo, error)
}

// RealSystem implements System using the OS.
type RealSystem struct{}

// LookupEnv returns the value and presence of an environment variable.
func (RealSystem) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Stat returns a FileInfo describing the named file.
func (RealSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// Root is a resolved Environment Root.
type Root struct {
	// Path is the absolute, cleaned root directory.
	Path string

	// Activate is the absolute path of the activation entry point.
	Activate string
}

// Path joins home and suffix the way Resolve does, without any checks.
func Path(home, suffix string) string {
	return filepath.Join(home, suffix)
}

// Resolve builds the root from the home variable and suffix and verifies
// it on disk. Errors are CLIErrors with ExitEnvRootNotFound wrapping one of
// the sentinel errors above.
func Resolve(sys System, suffix string) (*Root, error) {
	home, ok := sys.LookupEnv(HomeVar)
	if !ok || strings.TrimSpace(home) == "" {
		return nil, model.WrapCLIError(
			model.ExitEnvRootNotFound,
			fmt.Sprintf("cannot resolve environment root: $%s is not set", HomeVar),
			ErrHomeUnset,
		)
	}

	if !filepath.IsAbs(home) {
		return nil, model.WrapCLIError(
			model.ExitEnvRootNotFound,
			fmt.Sprintf("cannot resolve environment root: $%s=%q is not absolute", HomeVar, home),
			ErrHomeNotAbsolute,
		)
	}

	root := &Root{Path: Path(home, suffix)}
	root.Activate = filepath.Join(root.Path, ActivateEntry)

	info, err := sys.Stat(root.Path)
	if err != nil || !info.IsDir() {
		cause := ErrRootNotFound
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			// Permission problems and the like keep their detail.
			cause = fmt.Errorf("%w: %w", ErrRootNotFound, err)
		}
		return nil, model.WrapCLIError(
			model.ExitEnvRootNotFound,
			fmt.Sprintf("environment root %s is not an accessible directory", root.Path),
			cause,
		)
	}

	info, err = sys.Stat(root.Activate)
	if err != nil || !info.Mode().IsRegular() {
		return nil, model.WrapCLIError(
			model.ExitEnvRootNotFound,
			fmt.Sprintf("environment root %s has no %s", root.Path, ActivateEntry),
			ErrNoActivateEntry,
		)
	}

	return root, nil
}
