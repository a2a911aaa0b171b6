// Command bump_deps applies the dependency-bump transform across every
// repository in the configured set: clone, bump pins, commit on a dated
// branch, push, and create a pull request per changed repository.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/valyala/fasttemplate"

	"github.com/byte4ever/depbump/autofix/git"
	"github.com/byte4ever/depbump/autofix/git/bitbucket"
	"github.com/byte4ever/depbump/autofix/git/github"
	"github.com/byte4ever/depbump/autofix/git/gitlab"
	"github.com/byte4ever/depbump/autofix/runner"
	"github.com/byte4ever/depbump/bump/index"
	"github.com/byte4ever/depbump/repofile"
)

// sliceFlag implements flag.Value for multi-value
// string flags (repeated --flag=val usage).
type sliceFlag []string

// String returns the flag value as a comma-separated
// string representation.
func (s *sliceFlag) String() string {
	if s == nil {
		return ""
	}

	return strings.Join(*s, ",")
}

// Set appends a value to the slice.
func (s *sliceFlag) Set(val string) error {
	*s = append(*s, val)

	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // CLI flag setup is inherently long
func run() error {
	const errCtx = "running bump_deps"

	config := flag.String(
		"config", "repos.yaml",
		"Repository set file (YAML or JSON)",
	)
	workDir := flag.String(
		"workdir", os.TempDir(),
		"Directory for temporary clones",
	)
	parallelism := flag.Int(
		"j", 4,
		"Number of concurrent repository workers",
	)
	dryRun := flag.Bool(
		"dry_run", false,
		"Skip push and PR creation",
	)
	keepClones := flag.Bool(
		"keep_clones", false,
		"Leave working clones on disk",
	)
	branchTemplate := flag.String(
		"branch_template", "bump-{DATE}",
		"Branch name template ({DATE} expands to "+
			"the UTC run date)",
	)
	commitSubject := flag.String(
		"commit_subject", "Bump deps and tools",
		"Commit message subject",
	)
	prTitle := flag.String(
		"pr_title", "",
		"Title for created pull requests "+
			"(default: commit subject)",
	)
	prBody := flag.String(
		"pr_body", "Automated dependency bump.\n\n{PINS}\n",
		"Body template for created pull requests",
	)
	indexURL := flag.String(
		"index_url", "",
		"Version index base URL (default: "+
			"$BUMP_INDEX_URL, then the public index)",
	)

	var patterns sliceFlag

	flag.Var(
		&patterns,
		"pattern",
		"File pattern to scan (repeatable; "+
			"default: built-in set)",
	)

	// Git provider selection.
	gitServer := flag.String(
		"git_server", "github",
		"Git hosting platform: github, gitlab, "+
			"bitbucket, or none",
	)
	ghEnterprise := flag.String(
		"github_enterprise_host", "",
		"GitHub Enterprise hostname",
	)
	glHost := flag.String(
		"gitlab_host", "",
		"GitLab instance URL",
	)
	bbEndpoint := flag.String(
		"bitbucket_api_endpoint", "",
		"Bitbucket Server REST API URL template "+
			"({OWNER} and {NAME} expand per repo)",
	)
	bbProjectKey := flag.String(
		"bitbucket_project_key", "",
		"Bitbucket project key",
	)

	flag.Parse()

	httpClient, err := httpClientFromEnv()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	factory, err := newProviderFactory(
		*gitServer,
		providerFlags{
			ghEnterprise: *ghEnterprise,
			glHost:       *glHost,
			bbEndpoint:   *bbEndpoint,
			bbProjectKey: *bbProjectKey,
			httpClient:   httpClient,
		},
	)
	if err != nil {
		return fmt.Errorf(
			"%s: create provider: %w", errCtx, err,
		)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	cfg := runner.Config{
		ReposPath:      *config,
		WorkDir:        *workDir,
		BranchTemplate: *branchTemplate,
		CommitSubject:  *commitSubject,
		PRTitle:        *prTitle,
		PRBody:         *prBody,
		Patterns:       patterns,
		Parallelism:    *parallelism,
		DryRun:         *dryRun,
		KeepClones:     *keepClones,
		Index: index.NewHTTPIndex(index.HTTPConfig{
			BaseURL:    *indexURL,
			HTTPClient: httpClient,
		}),
		NewProvider: factory,
	}

	summary, err := runner.Run(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := summary.Write(os.Stdout); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// providerFlags bundles provider-specific flag values
// to keep newProviderFactory under the argument limit.
type providerFlags struct {
	ghEnterprise string
	glHost       string
	bbEndpoint   string
	bbProjectKey string
	httpClient   *http.Client
}

// newProviderFactory builds the per-repo provider
// factory for the selected platform. Credentials come
// from the environment so they are read once and passed
// explicitly. Pattern: Factory -- selects platform
// implementation at runtime.
func newProviderFactory(
	server string,
	pf providerFlags,
) (runner.ProviderFactory, error) {
	const errCtx = "creating provider factory"

	switch server {
	case "none":
		return nil, nil

	case "github":
		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			return nil, fmt.Errorf(
				"%s: GITHUB_TOKEN must be set",
				errCtx,
			)
		}

		return func(
			entry repofile.Entry,
		) (git.GitProvider, error) {
			return github.NewProvider(
				github.Config{
					RepoOwner:      entry.Owner,
					Repo:           entry.Name,
					AccessToken:    token,
					EnterpriseHost: pf.ghEnterprise,
				},
			)
		}, nil

	case "gitlab":
		token := os.Getenv("GITLAB_TOKEN")
		if token == "" {
			return nil, fmt.Errorf(
				"%s: GITLAB_TOKEN must be set",
				errCtx,
			)
		}

		return func(
			entry repofile.Entry,
		) (git.GitProvider, error) {
			return gitlab.NewProvider(
				gitlab.Config{
					Host:        pf.glHost,
					Repo:        entry.Slug(),
					AccessToken: token,
				},
			)
		}, nil

	case "bitbucket":
		user := os.Getenv("BITBUCKET_USER")
		password := os.Getenv("BITBUCKET_PASSWORD")

		if user == "" || password == "" {
			return nil, fmt.Errorf(
				"%s: BITBUCKET_USER and "+
					"BITBUCKET_PASSWORD must be set",
				errCtx,
			)
		}

		return func(
			entry repofile.Entry,
		) (git.GitProvider, error) {
			endpoint := fasttemplate.ExecuteStringStd(
				pf.bbEndpoint, "{", "}",
				map[string]interface{}{
					"OWNER": entry.Owner,
					"NAME":  entry.Name,
				},
			)

			return bitbucket.NewProvider(
				bitbucket.Config{
					APIEndpoint: endpoint,
					ProjectKey:  pf.bbProjectKey,
					RepoSlug:    entry.Name,
					User:        user,
					Password:    password,
					HTTPClient:  pf.httpClient,
				},
			)
		}, nil

	default:
		return nil, fmt.Errorf(
			"%s: unknown server %q", errCtx, server,
		)
	}
}

// httpClientFromEnv returns the HTTP client used for
// index and provider calls. When BUMP_CA_BUNDLE names a
// PEM file, its certificates replace the system roots.
func httpClientFromEnv() (*http.Client, error) {
	const errCtx = "building http client"

	bundle := os.Getenv("BUMP_CA_BUNDLE")
	if bundle == "" {
		return http.DefaultClient, nil
	}

	pem, err := os.ReadFile(bundle) //nolint:gosec // path from env by design
	if err != nil {
		return nil, fmt.Errorf(
			"%s: read ca bundle: %w", errCtx, err,
		)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf(
			"%s: no certificates in %s",
			errCtx, bundle,
		)
	}

	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    pool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}
