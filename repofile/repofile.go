// Package repofile loads and validates the repository set configuration that
// bulk runs iterate over. Two on-disk shapes are accepted: a YAML file with a
// list of entries, and a JSON map of label to clone URL as produced by
// all-repos style tooling.
package repofile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// Entry identifies one managed repository plus its
// per-repo options. Host defaults to "github.com" when
// empty.
type Entry struct {
	// Host is the code hosting platform hostname.
	Host string `yaml:"host" json:"host"`
	// Owner is the user or organisation owning the
	// repository.
	Owner string `yaml:"owner" json:"owner"`
	// Name is the repository name without owner.
	Name string `yaml:"name" json:"name"`
	// Branch overrides the run-level branch name
	// template for this repository.
	Branch string `yaml:"branch" json:"branch"`
	// Skip excludes the repository from bulk runs.
	Skip bool `yaml:"skip" json:"skip"`
	// Patterns overrides the file patterns scanned
	// by the transform for this repository.
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// Slug returns the "owner/name" form of the entry.
func (e Entry) Slug() string {
	return e.Owner + "/" + e.Name
}

// CloneURL returns the HTTPS clone URL of the entry.
func (e Entry) CloneURL() string {
	host := e.Host
	if host == "" {
		host = "github.com"
	}

	return "https://" + host + "/" + e.Slug() + ".git"
}

// PageURL returns the HTML page URL of the entry with
// an optional path suffix appended.
func (e Entry) PageURL(suffix string) string {
	host := e.Host
	if host == "" {
		host = "github.com"
	}

	url := "https://" + host + "/" + e.Slug()
	if suffix != "" {
		url += "/" + strings.TrimPrefix(suffix, "/")
	}

	return url
}

// Set is the ordered list of repositories a bulk run
// operates on.
type Set struct {
	Repos []Entry `yaml:"repos"`
}

// Active returns the entries not marked as skipped.
func (s *Set) Active() []Entry {
	var active []Entry

	for _, e := range s.Repos {
		if !e.Skip {
			active = append(active, e)
		}
	}

	return active
}

// Load reads a repository set from path. Files ending
// in .json are parsed as a label-to-clone-URL map; all
// other files are parsed as YAML. The returned set is
// already validated.
func Load(path string) (*Set, error) {
	const errCtx = "loading repository set"

	raw, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	var set *Set

	if filepath.Ext(path) == ".json" {
		set, err = parseJSON(raw)
	} else {
		set, err = parseYAML(raw)
	}

	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	if err := set.validate(); err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	return set, nil
}

// parseYAML decodes the list-of-entries YAML shape.
func parseYAML(raw []byte) (*Set, error) {
	const errCtx = "parsing yaml"

	var set Set

	if err := yaml.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return &set, nil
}

// parseJSON decodes the label-to-clone-URL map shape.
// Entries are ordered by label for deterministic runs.
func parseJSON(raw []byte) (*Set, error) {
	const errCtx = "parsing json"

	var urls map[string]string

	if err := json.Unmarshal(raw, &urls); err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	labels := make([]string, 0, len(urls))
	for label := range urls {
		labels = append(labels, label)
	}

	sort.Strings(labels)

	set := &Set{
		Repos: make([]Entry, 0, len(labels)),
	}

	for _, label := range labels {
		entry, err := parseCloneURL(urls[label])
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %s: %w", errCtx, label, err,
			)
		}

		set.Repos = append(set.Repos, entry)
	}

	return set, nil
}

// parseCloneURL extracts host, owner, and name from an
// SSH ("git@host:owner/name") or HTTPS
// ("https://host/owner/name[.git]") clone URL.
func parseCloneURL(url string) (Entry, error) {
	const errCtx = "parsing clone url"

	var host, path string

	switch {
	case strings.HasPrefix(url, "git@"):
		rest := strings.TrimPrefix(url, "git@")

		var ok bool

		host, path, ok = strings.Cut(rest, ":")
		if !ok {
			return Entry{}, fmt.Errorf(
				"%s: malformed ssh url %q",
				errCtx, url,
			)
		}
	case strings.HasPrefix(url, "https://"):
		rest := strings.TrimPrefix(url, "https://")

		var ok bool

		host, path, ok = strings.Cut(rest, "/")
		if !ok {
			return Entry{}, fmt.Errorf(
				"%s: malformed https url %q",
				errCtx, url,
			)
		}
	default:
		return Entry{}, fmt.Errorf(
			"%s: unsupported url scheme %q",
			errCtx, url,
		)
	}

	path = strings.TrimSuffix(path, ".git")

	owner, name, ok := strings.Cut(path, "/")
	if !ok || owner == "" || name == "" {
		return Entry{}, fmt.Errorf(
			"%s: missing owner or name in %q",
			errCtx, url,
		)
	}

	return Entry{
		Host:  host,
		Owner: owner,
		Name:  name,
	}, nil
}

// validate rejects incomplete entries and duplicate
// owner/name pairs before any work starts.
func (s *Set) validate() error {
	const errCtx = "validating repository set"

	if len(s.Repos) == 0 {
		return fmt.Errorf(
			"%s: no repositories configured", errCtx,
		)
	}

	seen := make(map[string]struct{}, len(s.Repos))

	for i, e := range s.Repos {
		if e.Owner == "" || e.Name == "" {
			return fmt.Errorf(
				"%s: entry %d: owner and name "+
					"must be set",
				errCtx, i,
			)
		}

		slug := e.Slug()
		if _, ok := seen[slug]; ok {
			return fmt.Errorf(
				"%s: duplicate repository %s",
				errCtx, slug,
			)
		}

		seen[slug] = struct{}{}
	}

	return nil
}
