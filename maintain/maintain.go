// Package maintain implements the helper operations
// behind the maintain CLI: listing open pull requests
// across a repository set and opening repository pages
// in a browser.
package maintain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/byte4ever/depbump/autofix/exec"
	"github.com/byte4ever/depbump/autofix/git/github"
	"github.com/byte4ever/depbump/repofile"
)

// DefaultParallelism bounds concurrent API calls when
// the caller does not choose a worker count.
const DefaultParallelism = 12

// PRLister fetches the open pull requests of one
// repository. *github.Client satisfies it.
type PRLister interface {
	ListOpenPRs(
		ctx context.Context,
		owner string,
		repo string,
	) ([]github.PR, error)
}

// RepoPRs holds the open pull requests of one
// repository, or the error that prevented listing them.
type RepoPRs struct {
	// Slug is the owner/name pair of the repository.
	Slug string
	// PRs are the open pull requests, most recently
	// updated first.
	PRs []github.PR
	// Err is the listing error, nil on success.
	Err error
}

// ListPRs fetches open pull requests for every active
// entry of the set with a bounded worker pool. A failing
// repository is reported in its result and does not
// abort the others. Results come back sorted by slug.
func ListPRs(
	ctx context.Context,
	set *repofile.Set,
	lister PRLister,
	parallelism int,
) []RepoPRs {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	entries := set.Active()
	results := make([]RepoPRs, len(entries))

	var wg sync.WaitGroup

	sem := make(chan struct{}, parallelism)

	for i, entry := range entries {
		wg.Add(1)

		go func(i int, entry repofile.Entry) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			prs, err := lister.ListOpenPRs(
				ctx, entry.Owner, entry.Name,
			)
			if err != nil {
				slog.Warn(
					"listing pull requests failed",
					"repo", entry.Slug(),
					"error", err,
				)
			}

			sort.Slice(prs, func(a, b int) bool {
				return prs[a].UpdatedAt.After(
					prs[b].UpdatedAt,
				)
			})

			results[i] = RepoPRs{
				Slug: entry.Slug(),
				PRs:  prs,
				Err:  err,
			}
		}(i, entry)
	}

	wg.Wait()

	sort.Slice(results, func(a, b int) bool {
		return results[a].Slug < results[b].Slug
	})

	return results
}

// WritePRs prints the pull requests as an aligned table.
// Repositories that failed or have no open pull requests
// are left out.
func WritePRs(w io.Writer, items []RepoPRs) error {
	const errCtx = "writing pull request table"

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "REPOSITORY\tPR\tTITLE\tURL")

	for _, item := range items {
		for _, pr := range item.PRs {
			fmt.Fprintf(
				tw, "%s\t#%d\t%s\t%s\n",
				item.Slug, pr.Number,
				pr.Title, pr.URL,
			)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// URLs collects every pull request URL from the results,
// in table order.
func URLs(items []RepoPRs) []string {
	var urls []string

	for _, item := range items {
		for _, pr := range item.PRs {
			urls = append(urls, pr.URL)
		}
	}

	return urls
}

// PageURLs builds the web page URL of every active entry
// with the given path suffix appended.
func PageURLs(set *repofile.Set, suffix string) []string {
	entries := set.Active()
	urls := make([]string, 0, len(entries))

	for _, entry := range entries {
		urls = append(urls, entry.PageURL(suffix))
	}

	return urls
}

// openCommand is swapped in tests.
var openCommand = platformOpener()

func platformOpener() string {
	if runtime.GOOS == "darwin" {
		return "open"
	}

	return "xdg-open"
}

// OpenInBrowser launches the platform URL opener for
// each URL. Failures are logged and do not stop the
// remaining URLs.
func OpenInBrowser(ctx context.Context, urls []string) {
	for _, url := range urls {
		_, err := exec.Ex(ctx, "", openCommand, url)
		if err != nil {
			slog.Warn(
				"opening url failed",
				"url", url,
				"error", err,
			)
		}
	}
}
