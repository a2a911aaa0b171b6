package bump

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/byte4ever/depbump/autofix/commitmsg"
	"github.com/byte4ever/depbump/bump/index"
)

// DefaultPatterns are the file patterns scanned when no
// per-repo override is configured.
var DefaultPatterns = []string{
	"requirements*.txt",
	"setup.cfg",
	"tox.ini",
	"pyproject.toml",
	".pre-commit-config.yaml",
}

const preCommitConfigName = ".pre-commit-config.yaml"

// requirementPin matches "name==version" pins embedded
// in a line. The version must start with a digit so
// environment markers and URLs are left alone.
var requirementPin = regexp.MustCompile(
	`([A-Za-z0-9][A-Za-z0-9._-]*)\s*==\s*` +
		`([0-9][0-9A-Za-z.+!-]*)`,
)

// Options configures a single transform invocation.
type Options struct {
	// Patterns are glob patterns relative to the
	// working tree root. Empty means DefaultPatterns.
	Patterns []string

	// Index resolves a package name to its latest
	// known version.
	Index index.Index
}

// Pin records one rewritten version pin.
type Pin struct {
	// Name is the package or tool name.
	Name string
	// File is the path of the pin relative to root.
	File string
	// Old is the previously pinned version.
	Old string
	// New is the version the pin was bumped to.
	New string
}

// Line renders the pin in "name==version" form, the
// shape embedded in commit messages.
func (p Pin) Line() string {
	return p.Name + "==" + p.New
}

// Failure records one version-index lookup that did not
// resolve. The pin it belongs to is left unchanged.
type Failure struct {
	// Name is the package or tool name.
	Name string
	// File is the path the pin was found in.
	File string
	// Err is the lookup error.
	Err error
}

// Result is the outcome of one transform invocation.
type Result struct {
	// Pins are the rewritten pins, in scan order.
	Pins []Pin
	// Failures are the lookups that did not resolve.
	Failures []Failure
	// ScannedFiles are the files matched by the
	// patterns, relative to root.
	ScannedFiles []string
}

// Changed reports whether any pin was rewritten.
func (r *Result) Changed() bool {
	return len(r.Pins) > 0
}

// PinLines renders all rewritten pins as
// "name==version" lines.
func (r *Result) PinLines() []string {
	lines := make([]string, 0, len(r.Pins))
	for _, p := range r.Pins {
		lines = append(lines, p.Line())
	}

	return lines
}

// ChangeSpec describes the change a transform produced:
// the rewritten pins, the commit message, and the branch
// the commit belongs on. Nil when nothing changed.
type ChangeSpec struct {
	// Pins are the rewritten pins.
	Pins []Pin
	// CommitMessage is the full commit message,
	// naming every bumped pin.
	CommitMessage string
	// Branch is the branch name the change should be
	// committed on.
	Branch string
}

// Spec builds the ChangeSpec for a result. Returns nil
// when the transform changed nothing.
func (r *Result) Spec(
	subject string,
	branch string,
) *ChangeSpec {
	if !r.Changed() {
		return nil
	}

	names := make([]string, 0, len(r.Pins))
	for _, p := range r.Pins {
		names = append(names, p.Name)
	}

	full := fmt.Sprintf(
		"%s: %s", subject, strings.Join(names, ", "),
	)

	return &ChangeSpec{
		Pins: r.Pins,
		CommitMessage: commitmsg.Generate(
			full, r.PinLines(),
		),
		Branch: branch,
	}
}

// Transform scans the working tree rooted at root for
// pinned versions, queries the version index for each,
// and rewrites strictly-older pins in place. Files
// absent from the tree are skipped; a failed lookup is
// recorded and leaves its pin unchanged. Safe for
// concurrent use across distinct roots.
func Transform(
	ctx context.Context,
	root string,
	opts Options,
) (*Result, error) {
	const errCtx = "transforming working tree"

	if opts.Index == nil {
		return nil, fmt.Errorf(
			"%s: index must be set", errCtx,
		)
	}

	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	files, err := MatchFiles(root, patterns)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	result := &Result{ScannedFiles: files}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		var fileErr error

		if filepath.Base(f) == preCommitConfigName {
			fileErr = bumpPreCommit(
				ctx, root, f, opts.Index, result,
			)
		} else {
			fileErr = bumpRequirements(
				ctx, root, f, opts.Index, result,
			)
		}

		if fileErr != nil {
			return nil, fmt.Errorf(
				"%s: %s: %w", errCtx, f, fileErr,
			)
		}
	}

	return result, nil
}

// MatchFiles expands the glob patterns under root and
// returns relative paths, sorted and de-duplicated. A
// pattern matching nothing is not an error.
func MatchFiles(
	root string,
	patterns []string,
) ([]string, error) {
	const errCtx = "matching file patterns"

	seen := make(map[string]struct{})

	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(
			filepath.Join(root, pattern),
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %q: %w", errCtx, pattern, err,
			)
		}

		for _, m := range matches {
			rel, err := filepath.Rel(root, m)
			if err != nil {
				return nil, fmt.Errorf(
					"%s: %w", errCtx, err,
				)
			}

			if _, ok := seen[rel]; ok {
				continue
			}

			seen[rel] = struct{}{}
			files = append(files, rel)
		}
	}

	sort.Strings(files)

	return files, nil
}

// bumpRequirements rewrites "name==version" pins in one
// line-oriented file.
func bumpRequirements(
	ctx context.Context,
	root string,
	file string,
	ix index.Index,
	result *Result,
) error {
	const errCtx = "bumping requirement pins"

	pa := filepath.Join(root, file)

	raw, mode, err := readWithMode(pa)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	content := string(raw)
	changed := false

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		// Skip requirement comments entirely.
		if strings.HasPrefix(
			strings.TrimSpace(line), "#",
		) {
			continue
		}

		lines[i] = requirementPin.ReplaceAllStringFunc(
			line,
			func(match string) string {
				sub := requirementPin.
					FindStringSubmatch(match)
				name, current := sub[1], sub[2]

				latest, lookErr := ix.Latest(
					ctx, name,
				)
				if lookErr != nil {
					result.Failures = append(
						result.Failures,
						Failure{
							Name: name,
							File: file,
							Err:  lookErr,
						},
					)

					return match
				}

				if CompareVersions(
					latest, current,
				) <= 0 {
					return match
				}

				changed = true

				result.Pins = append(
					result.Pins,
					Pin{
						Name: name,
						File: file,
						Old:  current,
						New:  latest,
					},
				)

				return name + "==" + latest
			},
		)
	}

	if !changed {
		return nil
	}

	if err := os.WriteFile(
		pa,
		[]byte(strings.Join(lines, "\n")),
		mode,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// preCommitConfig mirrors the subset of the pre-commit
// configuration we consume.
type preCommitConfig struct {
	Repos []preCommitRepo `yaml:"repos"`
}

type preCommitRepo struct {
	Repo string `yaml:"repo"`
	Rev  string `yaml:"rev"`
}

// bumpPreCommit rewrites "rev:" hook pins in a
// pre-commit configuration. The file is decoded to find
// repo/rev pairs, then rewritten line by line so layout
// and comments survive.
func bumpPreCommit(
	ctx context.Context,
	root string,
	file string,
	ix index.Index,
	result *Result,
) error {
	const errCtx = "bumping pre-commit pins"

	pa := filepath.Join(root, file)

	raw, mode, err := readWithMode(pa)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	var cfg preCommitConfig

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf(
			"%s: decoding yaml: %w", errCtx, err,
		)
	}

	lines := strings.Split(string(raw), "\n")
	changed := false

	for _, repo := range cfg.Repos {
		if repo.Repo == "" || repo.Rev == "" {
			continue
		}

		name := hookName(repo.Repo)

		latest, lookErr := ix.Latest(ctx, name)
		if lookErr != nil {
			result.Failures = append(
				result.Failures,
				Failure{
					Name: name,
					File: file,
					Err:  lookErr,
				},
			)

			continue
		}

		current := strings.TrimPrefix(repo.Rev, "v")
		if CompareVersions(latest, current) <= 0 {
			continue
		}

		newRev := latest
		if strings.HasPrefix(repo.Rev, "v") {
			newRev = "v" + latest
		}

		if !rewriteRev(
			lines, repo.Repo, repo.Rev, newRev,
		) {
			slog.Warn(
				"rev line not found, skipping",
				"repo", repo.Repo,
				"rev", repo.Rev,
			)

			continue
		}

		changed = true

		result.Pins = append(result.Pins, Pin{
			Name: name,
			File: file,
			Old:  repo.Rev,
			New:  newRev,
		})
	}

	if !changed {
		return nil
	}

	if err := os.WriteFile(
		pa,
		[]byte(strings.Join(lines, "\n")),
		mode,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// rewriteRev replaces oldRev with newRev on the first
// "rev:" line following the line naming repoURL. Returns
// false when no such line exists.
func rewriteRev(
	lines []string,
	repoURL string,
	oldRev string,
	newRev string,
) bool {
	inRepo := false

	for i, line := range lines {
		if strings.Contains(line, repoURL) {
			inRepo = true

			continue
		}

		if !inRepo {
			continue
		}

		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "rev:") {
			continue
		}

		if !strings.Contains(line, oldRev) {
			return false
		}

		lines[i] = strings.Replace(
			line, oldRev, newRev, 1,
		)

		return true
	}

	return false
}

// hookName derives the index lookup name from a hook
// repository URL: the last path segment without a .git
// suffix.
func hookName(repoURL string) string {
	trimmed := strings.TrimSuffix(repoURL, "/")
	trimmed = strings.TrimSuffix(trimmed, ".git")

	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}

	return trimmed
}

// readWithMode reads a file and its permission bits so
// a rewrite preserves the original mode.
func readWithMode(
	path string,
) ([]byte, os.FileMode, error) {
	const errCtx = "reading file"

	fi, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	raw, err := os.ReadFile(path) //nolint:gosec // path is scan output
	if err != nil {
		return nil, 0, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return raw, fi.Mode().Perm(), nil
}

// CompareVersions compares two dotted version strings
// segment by segment. Each segment is compared by its
// leading integer, then by its remaining text, where a
// bare number sorts after one with a suffix (so "1.2.0"
// is newer than "1.2.0b1"). Returns -1, 0, or 1.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	length := len(as)
	if len(bs) > length {
		length = len(bs)
	}

	for i := 0; i < length; i++ {
		var sa, sb string

		if i < len(as) {
			sa = as[i]
		}

		if i < len(bs) {
			sb = bs[i]
		}

		if cmp := compareSegment(sa, sb); cmp != 0 {
			return cmp
		}
	}

	return 0
}

// compareSegment compares one dotted segment of two
// version strings.
func compareSegment(a, b string) int {
	na, ra := splitNumeric(a)
	nb, rb := splitNumeric(b)

	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	}

	switch {
	case ra == rb:
		return 0
	case ra == "":
		// "0" vs "0b1": the bare number is the
		// final release, the suffixed one a
		// pre-release.
		return 1
	case rb == "":
		return -1
	case ra < rb:
		return -1
	default:
		return 1
	}
}

// splitNumeric splits a segment into its leading integer
// value and the remaining text.
func splitNumeric(s string) (int, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}

	if i == 0 {
		return 0, s
	}

	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, s
	}

	return n, s[i:]
}
