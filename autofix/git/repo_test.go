package git_test

import (
	"context"
	"os"
	oe "os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/depbump/autofix/git"
)

func TestRepo_IsClean(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	initGitRepo(t, dir)

	rp := &git.Repo{
		Dir:        dir,
		RemoteName: "origin",
	}

	// A freshly initialised repo with one commit
	// should be clean.
	assert.True(t, rp.IsClean())
}

func TestRepo_IsClean_dirty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	initGitRepo(t, dir)

	rp := &git.Repo{
		Dir:        dir,
		RemoteName: "origin",
	}

	// Create a new file to make the tree dirty.
	fp := filepath.Join(dir, "new.txt")

	//nolint:gosec // test file
	err := os.WriteFile(
		fp, []byte("hello\n"), 0o600,
	)
	require.NoError(t, err)

	assert.False(t, rp.IsClean())
}

func TestRepo_SwitchToBranch_creates_branch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	initGitRepo(t, dir)

	rp := &git.Repo{
		Dir:        dir,
		RemoteName: "origin",
	}

	created, err := rp.SwitchToBranch(
		context.Background(), "bump-2026-08-31",
	)
	require.NoError(t, err)
	assert.True(t, created)

	// Switching again to the same branch is not a
	// creation.
	_, err = rp.SwitchToBranch(
		context.Background(), "main",
	)
	require.NoError(t, err)

	created, err = rp.SwitchToBranch(
		context.Background(), "bump-2026-08-31",
	)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestRepo_Commit_dirty_tree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	initGitRepo(t, dir)

	fp := filepath.Join(dir, "requirements.txt")

	err := os.WriteFile(
		fp, []byte("tool==1.3.0\n"), 0o600,
	)
	require.NoError(t, err)

	rp := &git.Repo{
		Dir:        dir,
		RemoteName: "origin",
	}

	committed, err := rp.Commit(
		context.Background(), "Bump deps and tools",
	)
	require.NoError(t, err)
	assert.True(t, committed)
	assert.True(t, rp.IsClean())
}

func TestRepo_Commit_clean_tree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	initGitRepo(t, dir)

	rp := &git.Repo{
		Dir:        dir,
		RemoteName: "origin",
	}

	committed, err := rp.Commit(
		context.Background(), "nothing to commit",
	)
	require.NoError(t, err)
	assert.False(t, committed)
}

func TestRepo_Commit_hook_rejection_is_error(
	t *testing.T,
) {
	t.Parallel()

	dir := t.TempDir()

	initGitRepo(t, dir)

	// Install a hook that rejects every commit.
	hooks := filepath.Join(t.TempDir(), "hooks")
	require.NoError(t, os.MkdirAll(hooks, 0o750))

	//nolint:gosec // hook must be executable
	require.NoError(t, os.WriteFile(
		filepath.Join(hooks, "pre-commit"),
		[]byte("#!/bin/sh\nexit 1\n"),
		0o700,
	))

	gitCmd(t, dir, "config", "core.hooksPath", hooks)

	fp := filepath.Join(dir, "requirements.txt")
	require.NoError(t, os.WriteFile(
		fp, []byte("tool==1.3.0\n"), 0o600,
	))

	rp := &git.Repo{
		Dir:        dir,
		RemoteName: "origin",
	}

	committed, err := rp.Commit(
		context.Background(), "Bump deps and tools",
	)
	require.Error(t, err)
	assert.False(t, committed)
}

func TestRepo_GetChangedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	initGitRepo(t, dir)

	// Create, add, and commit a tracked file.
	fp := filepath.Join(dir, "tracked.txt")

	err := os.WriteFile(
		fp, []byte("v1\n"), 0o600,
	)
	require.NoError(t, err)

	gitCmd(t, dir, "add", "tracked.txt")
	gitCmd(
		t, dir, "commit", "-m", "add tracked",
	)

	// Modify the tracked file so it shows as
	// changed.
	err = os.WriteFile(
		fp, []byte("v2\n"), 0o600,
	)
	require.NoError(t, err)

	rp := &git.Repo{
		Dir:        dir,
		RemoteName: "origin",
	}

	changed := rp.GetChangedFiles(
		context.Background(),
	)
	assert.Contains(t, changed, "tracked.txt")
}

func TestRepo_GetChangedFiles_empty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	initGitRepo(t, dir)

	rp := &git.Repo{
		Dir:        dir,
		RemoteName: "origin",
	}

	changed := rp.GetChangedFiles(
		context.Background(),
	)
	assert.Empty(t, changed)
}

func TestRepo_RestoreFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	initGitRepo(t, dir)

	fp := filepath.Join(dir, "pinned.txt")

	require.NoError(t, os.WriteFile(
		fp, []byte("tool==1.2.0\n"), 0o600,
	))
	gitCmd(t, dir, "add", "pinned.txt")
	gitCmd(t, dir, "commit", "-m", "add pinned")

	require.NoError(t, os.WriteFile(
		fp, []byte("tool==1.3.0\n"), 0o600,
	))

	rp := &git.Repo{
		Dir:        dir,
		RemoteName: "origin",
	}

	require.NoError(t, rp.RestoreFile(
		context.Background(), "pinned.txt",
	))

	by, err := os.ReadFile(fp) //nolint:gosec // test file
	require.NoError(t, err)
	assert.Equal(t, "tool==1.2.0\n", string(by))
}

func TestRepo_Clean(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sub := filepath.Join(dir, "repo")

	err := os.MkdirAll(sub, 0o750)
	require.NoError(t, err)

	rp := &git.Repo{Dir: sub, RemoteName: "origin"}

	err = rp.Clean()
	require.NoError(t, err)

	_, statErr := os.Stat(sub)
	assert.True(t, os.IsNotExist(statErr))
}

func TestClone_from_local_remote(t *testing.T) {
	t.Parallel()

	remote := t.TempDir()

	initGitRepo(t, remote)

	dir := filepath.Join(t.TempDir(), "clone")

	rp, err := git.Clone(
		context.Background(), remote, dir, "main",
	)

	require.NoError(t, err)
	assert.Equal(t, dir, rp.Dir)
	assert.True(t, rp.IsClean())

	require.NoError(t, rp.Clean())
}

func TestRepo_CurrentBranch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	initGitRepo(t, dir)

	rp := &git.Repo{
		Dir:        dir,
		RemoteName: "origin",
	}

	assert.Equal(
		t,
		"main",
		rp.CurrentBranch(context.Background()),
	)
}

func TestRepo_RemoteBranchMessage_missing_branch(
	t *testing.T,
) {
	t.Parallel()

	remote := t.TempDir()

	initGitRepo(t, remote)

	dir := filepath.Join(t.TempDir(), "clone")

	rp, err := git.Clone(
		context.Background(), remote, dir, "main",
	)
	require.NoError(t, err)

	msg := rp.RemoteBranchMessage(
		context.Background(), "no-such-branch",
	)
	assert.Empty(t, msg)
}

// initGitRepo creates a git repository with one
// initial commit. Git hooks are disabled to avoid
// interference from pre-commit hooks.
func initGitRepo(tb testing.TB, dir string) {
	tb.Helper()

	cmds := [][]string{
		{"init", "-b", "main"},
		{
			"config",
			"user.email", "test@test.com",
		},
		{"config", "user.name", "Test"},
		// Disable hooks so pre-commit scanners do
		// not interfere with tests.
		{
			"config", "core.hooksPath",
			"/dev/null",
		},
		{
			"commit", "--allow-empty",
			"-m", "initial",
		},
	}

	for _, args := range cmds {
		gitCmd(tb, dir, args...)
	}
}

// gitCmd runs a git command in the given directory.
func gitCmd(
	tb testing.TB,
	dir string,
	args ...string,
) {
	tb.Helper()

	//nolint:gosec // test helper
	cmd := oe.CommandContext(
		context.Background(), "git", args...,
	)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		tb.Fatalf(
			"git %v failed: %s: %v",
			args, string(out), err,
		)
	}
}
