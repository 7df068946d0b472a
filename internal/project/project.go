// Package project locates the package directory the Install Target runs in.
//
// The directory is, in order of preference: the directory given on the
// command line, the top level of the Git working tree containing the
// current directory, or the current directory itself.
//
// Git is queried through the git CLI (via os/exec) rather than a Go Git
// library so that worktrees and submodules resolve exactly as the
// operator's own git would resolve them.
package project

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/scoped-installer/internal/model"
)

// Project describes the located package directory.
type Project struct {
	// Dir is the absolute package directory.
	Dir string `json:"dir"`

	// InGitRepo reports whether Dir is the top level of a Git working tree.
	InGitRepo bool `json:"inGitRepo"`

	// Branch is the checked-out branch, "HEAD" when detached, or empty
	// outside Git.
	Branch string `json:"branch,omitempty"`

	// IsWorktree reports whether Dir is a linked Git worktree rather than
	// the main working tree.
	IsWorktree bool `json:"isWorktree"`
}

// Locator finds the package directory.
type Locator struct {
	// Getwd returns the current directory. Nil means os.Getwd.
	Getwd func() (string, error)
}

// NewLocator creates a Locator using the process's working directory.
func NewLocator() *Locator {
	return &Locator{Getwd: os.Getwd}
}

// Locate returns the package directory. An explicit directory must exist;
// otherwise the Git top level of the current directory is used, falling
// back to the current directory when it is not inside a Git repository or
// git is not installed.
func (l *Locator) Locate(explicit string) (*Project, error) {
	start := explicit
	if start == "" {
		getwd := l.Getwd
		if getwd == nil {
			getwd = os.Getwd
		}
		wd, err := getwd()
		if err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "cannot determine current directory", err)
		}
		start = wd
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("invalid directory %s", start), err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, model.NewCLIError(model.ExitGeneralError, fmt.Sprintf("package directory %s does not exist", abs))
	}

	// An explicit directory is used as given, even inside a repository.
	if explicit != "" {
		p := &Project{Dir: abs}
		if root, err := RepoRoot(abs); err == nil && samePath(root, abs) {
			p.InGitRepo = true
			p.Branch, _ = CurrentBranch(abs)
			p.IsWorktree = IsWorktree(abs)
		}
		return p, nil
	}

	root, err := RepoRoot(abs)
	if err != nil {
		return &Project{Dir: abs}, nil
	}

	p := &Project{Dir: root, InGitRepo: true, IsWorktree: IsWorktree(root)}
	p.Branch, _ = CurrentBranch(root)
	return p, nil
}

// RepoRoot returns the top-level directory of the Git working tree that
// contains path. For a linked worktree this is the worktree root, not the
// main repository.
func RepoRoot(path string) (string, error) {
	output, err := runGit(path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return filepath.Clean(strings.TrimSpace(output)), nil
}

// CurrentBranch returns the short name of the branch checked out at path,
// or "HEAD" when detached.
func CurrentBranch(path string) (string, error) {
	output, err := runGit(path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// IsWorktree reports whether path is a linked Git worktree. A linked
// worktree has a .git file containing a "gitdir:" pointer; the main working
// tree has a .git directory.
func IsWorktree(path string) bool {
	gitPath := filepath.Join(path, ".git")

	info, err := os.Lstat(gitPath)
	if err != nil || info.IsDir() {
		return false
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(content), "gitdir:")
}

// samePath compares two directories after resolving symlinks, so a
// temporary directory under a symlinked /tmp still matches git's output.
func samePath(a, b string) bool {
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return ra == rb
}

// runGit executes git in dir and returns its stdout. Failures are
// CLIErrors carrying git's stderr.
func runGit(dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204: args are constructed internally
	cmd := exec.Command("git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(model.ExitGeneralError, message, err)
	}

	return stdout.String(), nil
}
