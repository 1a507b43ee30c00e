// Package git runs the git CLI to answer the questions the verification
// gate asks: which commit is checked out and which files changed.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotRepository is returned when Dir is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Repo implements tracker.VCS for a local checkout.
type Repo struct {
	Dir string
}

// Open returns a Repo rooted at dir. The directory must be inside a work tree.
func Open(ctx context.Context, dir string) (*Repo, error) {
	r := &Repo{Dir: dir}
	out, err := r.run(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil || strings.TrimSpace(out) != "true" {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotRepository)
	}
	return r, nil
}

// HeadSHA returns the full SHA of HEAD. A repository without commits
// yields "" and no error.
func (r *Repo) HeadSHA(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// DiffChangedFiles lists the paths that differ between baseRef and the
// working tree, including untracked files. Paths are slash-separated and
// relative to the repository root.
func (r *Repo) DiffChangedFiles(ctx context.Context, baseRef string) ([]string, error) {
	if baseRef == "" {
		baseRef = "HEAD"
	}
	diff, err := r.run(ctx, "diff", "--name-only", baseRef, "--")
	if err != nil {
		return nil, fmt.Errorf("diff against %s: %w", baseRef, err)
	}
	untracked, err := r.run(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("list untracked files: %w", err)
	}

	seen := make(map[string]bool)
	var files []string
	for _, line := range strings.Split(diff+"\n"+untracked, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		files = append(files, filepath.ToSlash(line))
	}
	return files, nil
}

// Root returns the top-level directory of the work tree.
func (r *Repo) Root(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}
