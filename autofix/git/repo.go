package git

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	oe "os/exec"
	"strings"

	"github.com/byte4ever/depbump/autofix/exec"
)

// Repo is a local clone of a git repository. Create
// with Clone, and call Clean when done.
type Repo struct {
	// Dir is the filesystem location of the clone.
	Dir string
	// RemoteName is the name of the upstream remote.
	RemoteName string
}

// Clone clones a repository into dir. Pass the full
// repository URL as repo (e.g.
// "https://github.com/org/repo.git"). The clone is
// shallow and tracks only primaryBranch; pass an empty
// primaryBranch to track the remote default branch.
// Other branches are fetched on demand.
//
//nolint:gosec // file paths originate from CLI flags
func Clone(
	ctx context.Context,
	repo string,
	dir string,
	primaryBranch string,
) (*Repo, error) {
	const errCtx = "cloning repository"

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf(
			"%s: remove dir: %w", errCtx, err,
		)
	}

	remoteName := "origin"

	args := []string{
		"clone",
		"--single-branch",
		"--depth", "1",
		"--no-tags",
		"--origin", remoteName,
	}

	if primaryBranch != "" {
		args = append(
			args, "--branch", primaryBranch,
		)
	}

	args = append(args, repo, dir)

	if _, err := exec.Ex(
		ctx, "", "git", args...,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return &Repo{
		Dir:        dir,
		RemoteName: remoteName,
	}, nil
}

// Clean removes the local clone directory.
func (r *Repo) Clean() error {
	const errCtx = "cleaning repository"

	if err := os.RemoveAll(r.Dir); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// CurrentBranch returns the name of the checked-out
// branch, or empty string on error.
func (r *Repo) CurrentBranch(
	ctx context.Context,
) string {
	out, err := exec.Ex(
		ctx, r.Dir, "git",
		"symbolic-ref", "--short", "HEAD",
	)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(out)
}

// SwitchToBranch switches to branch, creating it from
// the current HEAD if it does not exist. Returns true
// when the branch was newly created.
func (r *Repo) SwitchToBranch(
	ctx context.Context,
	branch string,
) (bool, error) {
	const errCtx = "switching branch"

	if _, err := exec.Ex(
		ctx, r.Dir, "git", "checkout", branch,
	); err != nil {
		// Branch does not exist yet: create and
		// check out.
		if _, err := exec.Ex(
			ctx, r.Dir, "git",
			"checkout", "-b", branch,
		); err != nil {
			return false, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return true, nil
	}

	return false, nil
}

// RemoteBranchMessage fetches branch from the remote and
// returns its last commit message. Returns empty string
// when the branch does not exist on the remote.
func (r *Repo) RemoteBranchMessage(
	ctx context.Context,
	branch string,
) string {
	if _, err := exec.Ex(
		ctx, r.Dir, "git",
		"fetch", "--depth", "1", "--no-tags",
		r.RemoteName, branch,
	); err != nil {
		return ""
	}

	msg, err := exec.Ex(
		ctx, r.Dir, "git",
		"log", "-1", "--pretty=%B", "FETCH_HEAD",
	)
	if err != nil {
		return ""
	}

	return msg
}

// Commit stages all changes and commits them. Returns
// true when changes were committed, false when the tree
// was clean. A failing commit (missing identity,
// rejecting hook) is an error, not a panic, so one
// repository cannot take down a whole bulk run.
func (r *Repo) Commit(
	ctx context.Context,
	message string,
) (bool, error) {
	const errCtx = "committing changes"

	if _, err := exec.Ex(
		ctx, r.Dir, "git", "add", ".",
	); err != nil {
		return false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if r.IsClean() {
		return false, nil
	}

	if _, err := exec.Ex(
		ctx, r.Dir, "git",
		"commit", "-a", "-m", message,
	); err != nil {
		return false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return true, nil
}

// RestoreFile restores the given file to its
// last-committed state.
func (r *Repo) RestoreFile(
	ctx context.Context,
	fileName string,
) error {
	const errCtx = "restoring file"

	if _, err := exec.Ex(
		ctx, r.Dir, "git",
		"checkout", "--", fileName,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// GetChangedFiles returns file paths that differ from
// the index (unstaged changes).
func (r *Repo) GetChangedFiles(
	ctx context.Context,
) []string {
	out, err := exec.Ex(
		ctx, r.Dir, "git", "diff", "--name-only",
	)
	if err != nil {
		slog.Error(
			"failed to get changed files",
			"error", err,
		)

		return nil
	}

	var files []string

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		files = append(files, sc.Text())
	}

	if err := sc.Err(); err != nil {
		slog.Error(
			"failed to scan changed files",
			"error", err,
		)

		return nil
	}

	return files
}

// IsClean reports whether the working tree has no
// uncommitted changes.
func (r *Repo) IsClean() bool {
	//nolint:gosec // args are constants
	cmd := oe.CommandContext(
		context.Background(),
		"git", "status", "--porcelain",
	)
	cmd.Dir = r.Dir

	by, err := cmd.CombinedOutput()
	if err != nil {
		slog.Error(
			"failed to check repo status",
			"error", err,
		)

		return false
	}

	return len(by) == 0
}

// Push force-pushes the given branch to the remote. All
// changes should be committed before calling Push.
func (r *Repo) Push(
	ctx context.Context,
	branch string,
) error {
	const errCtx = "pushing branch"

	if _, err := exec.Ex(
		ctx, r.Dir, "git",
		"push", r.RemoteName,
		"-f", "--set-upstream", branch,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}
