// Package runner orchestrates bulk dependency-bump runs. It loads the
// repository set, clones each repository with a bounded worker pool, applies
// the bump transform, commits changed trees on a templated branch, pushes,
// and creates a pull request per changed repository via a git.GitProvider.
//
// The main entry point is Run, which accepts a Config struct with all
// parameters for the workflow and returns a per-repository Summary.
package runner
