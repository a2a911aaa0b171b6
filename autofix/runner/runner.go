package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/byte4ever/depbump/autofix/commitmsg"
	"github.com/byte4ever/depbump/autofix/digester"
	"github.com/byte4ever/depbump/autofix/git"
	"github.com/byte4ever/depbump/bump"
	"github.com/byte4ever/depbump/bump/index"
	"github.com/byte4ever/depbump/repofile"
)

// ProviderFactory builds the pull request provider for
// one repository. Return a nil provider to skip PR
// creation for that repository.
type ProviderFactory func(
	entry repofile.Entry,
) (git.GitProvider, error)

// Config holds all settings for a bulk bump run. Use a
// Config struct instead of many arguments.
type Config struct {
	// ReposPath is the repository set file path.
	ReposPath string

	// WorkDir is the directory for temporary clones.
	WorkDir string

	// BranchTemplate is the branch name template.
	// "{DATE}" expands to the UTC run date. Defaults
	// to "bump-{DATE}". A per-repo Branch option
	// overrides it.
	BranchTemplate string

	// CommitSubject is the commit message subject.
	// Defaults to "Bump deps and tools".
	CommitSubject string

	// PRTitle is the title for created pull
	// requests. Defaults to the commit subject.
	PRTitle string

	// PRBody is the body template for created pull
	// requests. "{PINS}" expands to the bumped pin
	// lines, "{DATE}" to the run date.
	PRBody string

	// Patterns overrides the default file patterns
	// scanned by the transform. A per-repo Patterns
	// option overrides both.
	Patterns []string

	// Parallelism is the number of concurrent repo
	// workers. Values below 1 mean 1.
	Parallelism int

	// DryRun skips push and PR creation when true.
	DryRun bool

	// KeepClones leaves working clones on disk after
	// the run when true.
	KeepClones bool

	// Index resolves package names to their latest
	// known version.
	Index index.Index

	// CloneURL overrides the clone URL per entry,
	// e.g. to clone from a local mirror. Nil means
	// Entry.CloneURL.
	CloneURL func(entry repofile.Entry) string

	// NewProvider builds the PR provider per repo.
	// Nil disables PR creation entirely.
	NewProvider ProviderFactory

	// Now overrides the clock, for tests. Nil means
	// time.Now.
	Now func() time.Time
}

// Outcome classifies the result of one repository.
type Outcome int

// Per-repository outcomes.
const (
	// OutcomeNoChange means the transform found
	// nothing to bump.
	OutcomeNoChange Outcome = iota
	// OutcomeChanged means a change was committed
	// (and pushed, unless dry-run).
	OutcomeChanged
	// OutcomeSkipped means the repository was marked
	// skip in the set.
	OutcomeSkipped
	// OutcomeFailed means the repository errored;
	// the run continued with the others.
	OutcomeFailed
	// OutcomeCancelled means the run was aborted
	// before the repository was admitted to a
	// worker.
	OutcomeCancelled
)

// String returns the lowercase outcome label.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoChange:
		return "no-change"
	case OutcomeChanged:
		return "changed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RepoResult is the outcome of one repository.
type RepoResult struct {
	// Slug is the "owner/name" of the repository.
	Slug string
	// Outcome classifies what happened.
	Outcome Outcome
	// Pins are the bumped pins, when Outcome is
	// OutcomeChanged.
	Pins []bump.Pin
	// Failures are the recorded index lookup
	// failures, if any.
	Failures []bump.Failure
	// Err is set when Outcome is OutcomeFailed.
	Err error
}

// Summary aggregates the results of a run, ordered by
// repository slug.
type Summary struct {
	Results []RepoResult
}

// Failed returns the number of failed repositories.
func (s *Summary) Failed() int {
	count := 0

	for _, r := range s.Results {
		if r.Outcome == OutcomeFailed {
			count++
		}
	}

	return count
}

// Changed returns the number of changed repositories.
func (s *Summary) Changed() int {
	count := 0

	for _, r := range s.Results {
		if r.Outcome == OutcomeChanged {
			count++
		}
	}

	return count
}

// Write renders the per-repository outcome table.
func (s *Summary) Write(w io.Writer) error {
	const errCtx = "writing summary"

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "REPOSITORY\tOUTCOME\tDETAIL")

	for _, r := range s.Results {
		detail := ""

		switch {
		case r.Err != nil:
			detail = r.Err.Error()
		case len(r.Pins) > 0:
			lines := make(
				[]string, 0, len(r.Pins),
			)
			for _, p := range r.Pins {
				lines = append(lines, p.Line())
			}

			detail = strings.Join(lines, " ")
		case len(r.Failures) > 0:
			detail = fmt.Sprintf(
				"%d lookup failures",
				len(r.Failures),
			)
		}

		fmt.Fprintf(
			tw, "%s\t%s\t%s\n",
			r.Slug, r.Outcome, detail,
		)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// Run executes the full bulk bump workflow: load the
// repository set, process every repository with a
// bounded worker pool, and aggregate outcomes. Run
// returns an error only for fatal conditions
// (configuration errors); per-repository failures are
// reported in the Summary.
func Run(
	ctx context.Context,
	cfg Config,
) (*Summary, error) {
	const errCtx = "running bulk bump"

	if cfg.Index == nil {
		return nil, fmt.Errorf(
			"%s: index must be set", errCtx,
		)
	}

	set, err := repofile.Load(cfg.ReposPath)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}

	date := now().UTC().Format("2006-01-02")

	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	slog.Info(
		"starting bulk bump run",
		"repos", len(set.Repos),
		"parallelism", parallelism,
		"dry_run", cfg.DryRun,
	)

	// Worker pool with bounded concurrency.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []RepoResult
	)

	sem := make(chan struct{}, parallelism)

	for _, entry := range set.Repos {
		if entry.Skip {
			mu.Lock()
			results = append(results, RepoResult{
				Slug:    entry.Slug(),
				Outcome: OutcomeSkipped,
			})
			mu.Unlock()

			continue
		}

		// Stop admitting repos once cancelled;
		// in-flight repos finish on their own and
		// the rest is left untouched.
		if ctx.Err() != nil {
			mu.Lock()
			results = append(results, RepoResult{
				Slug:    entry.Slug(),
				Outcome: OutcomeCancelled,
			})
			mu.Unlock()

			continue
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(e repofile.Entry) {
			defer wg.Done()
			defer func() { <-sem }()

			res := processRepo(ctx, cfg, e, date)

			slog.Info(
				"repository processed",
				"repo", res.Slug,
				"outcome", res.Outcome.String(),
				"error", res.Err,
			)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(entry)
	}

	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Slug < results[j].Slug
	})

	return &Summary{Results: results}, nil
}

// processRepo runs the full per-repository pipeline:
// clone, transform, commit, push, create PR. All errors
// are folded into the returned RepoResult.
func processRepo(
	ctx context.Context,
	cfg Config,
	entry repofile.Entry,
	date string,
) RepoResult {
	res := RepoResult{Slug: entry.Slug()}

	fail := func(err error) RepoResult {
		res.Outcome = OutcomeFailed
		res.Err = err

		return res
	}

	dir := filepath.Join(
		cfg.WorkDir,
		entry.Owner+"-"+entry.Name,
	)

	cloneURL := entry.CloneURL()
	if cfg.CloneURL != nil {
		cloneURL = cfg.CloneURL(entry)
	}

	repo, err := git.Clone(ctx, cloneURL, dir, "")
	if err != nil {
		return fail(err)
	}

	if !cfg.KeepClones {
		defer func() {
			if cleanErr := repo.Clean(); cleanErr != nil {
				slog.Error(
					"failed to clean clone",
					"repo", entry.Slug(),
					"error", cleanErr,
				)
			}
		}()
	}

	baseBranch := repo.CurrentBranch(ctx)

	patterns := entry.Patterns
	if len(patterns) == 0 {
		patterns = cfg.Patterns
	}

	if len(patterns) == 0 {
		patterns = bump.DefaultPatterns
	}

	// Snapshot scanned files so byte-identical
	// rewrites do not produce empty commits.
	scanned, err := bump.MatchFiles(
		repo.Dir, patterns,
	)
	if err != nil {
		return fail(err)
	}

	before, err := digester.Snapshot(
		repo.Dir, scanned,
	)
	if err != nil {
		return fail(err)
	}

	result, err := bump.Transform(
		ctx, repo.Dir, bump.Options{
			Patterns: patterns,
			Index:    cfg.Index,
		},
	)
	if err != nil {
		return fail(err)
	}

	res.Failures = result.Failures

	after, err := digester.Snapshot(
		repo.Dir, result.ScannedFiles,
	)
	if err != nil {
		return fail(err)
	}

	if !result.Changed() ||
		len(digester.Diff(before, after)) == 0 {
		res.Outcome = OutcomeNoChange

		return res
	}

	branch := branchName(cfg, entry, date)

	// An existing bump branch already carrying the
	// same pins needs no new push.
	remoteMsg := repo.RemoteBranchMessage(ctx, branch)
	if samePins(
		commitmsg.ExtractPins(remoteMsg),
		result.PinLines(),
	) {
		res.Outcome = OutcomeNoChange

		return res
	}

	subject := cfg.CommitSubject
	if subject == "" {
		subject = "Bump deps and tools"
	}

	spec := result.Spec(subject, branch)

	if _, err := repo.SwitchToBranch(
		ctx, spec.Branch,
	); err != nil {
		return fail(err)
	}

	committed, err := repo.Commit(
		ctx, spec.CommitMessage,
	)
	if err != nil {
		return fail(err)
	}

	if !committed {
		res.Outcome = OutcomeNoChange

		return res
	}

	res.Pins = spec.Pins

	if cfg.DryRun {
		slog.Info(
			"dry run: skipping push and PR",
			"repo", entry.Slug(),
			"branch", spec.Branch,
		)

		res.Outcome = OutcomeChanged

		return res
	}

	if err := repo.Push(ctx, spec.Branch); err != nil {
		return fail(err)
	}

	if err := createPR(
		ctx, cfg, entry, spec, baseBranch, date,
	); err != nil {
		return fail(err)
	}

	res.Outcome = OutcomeChanged

	return res
}

// createPR builds the provider for entry and opens a
// pull request for the change. A nil factory or a nil
// provider disables PR creation.
func createPR(
	ctx context.Context,
	cfg Config,
	entry repofile.Entry,
	spec *bump.ChangeSpec,
	baseBranch string,
	date string,
) error {
	const errCtx = "creating pull request"

	if cfg.NewProvider == nil {
		return nil
	}

	provider, err := cfg.NewProvider(entry)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if provider == nil {
		return nil
	}

	title := cfg.PRTitle
	if title == "" {
		title = cfg.CommitSubject
	}

	if title == "" {
		title = "Bump deps and tools"
	}

	lines := make([]string, 0, len(spec.Pins))
	for _, p := range spec.Pins {
		lines = append(lines, p.Line())
	}

	body := fasttemplate.ExecuteStringStd(
		cfg.PRBody, "{", "}",
		map[string]interface{}{
			"PINS": strings.Join(lines, "\n"),
			"DATE": date,
		},
	)

	if err := provider.CreatePR(
		ctx, spec.Branch, baseBranch, title, body,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// branchName expands the branch template for one entry.
// The per-repo Branch option wins over the run-level
// template.
func branchName(
	cfg Config,
	entry repofile.Entry,
	date string,
) string {
	tpl := entry.Branch
	if tpl == "" {
		tpl = cfg.BranchTemplate
	}

	if tpl == "" {
		tpl = "bump-{DATE}"
	}

	return fasttemplate.ExecuteStringStd(
		tpl, "{", "}",
		map[string]interface{}{"DATE": date},
	)
}

// samePins reports whether two pin line lists are
// identical, honoring order.
func samePins(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
