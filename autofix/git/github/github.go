package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gh "github.com/google/go-github/v68/github"
)

// Config holds the settings needed to create a GitHub
// pull request provider.
type Config struct {
	// RepoOwner is the GitHub user or organisation
	// that owns the repository.
	RepoOwner string
	// Repo is the repository name (without owner).
	Repo string
	// AccessToken is a personal access token or
	// GitHub App token used for authentication.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string
}

// Provider creates pull requests on GitHub.
//
// Pattern: Strategy -- implements git.GitProvider.
type Provider struct {
	client    *gh.Client
	repoOwner string
	repo      string
}

// NewProvider validates cfg and returns a Provider
// ready to create pull requests.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github provider"

	if cfg.RepoOwner == "" {
		return nil, fmt.Errorf(
			"%s: repo owner must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	client, err := newClient(
		cfg.AccessToken, cfg.EnterpriseHost,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return &Provider{
		client:    client,
		repoOwner: cfg.RepoOwner,
		repo:      cfg.Repo,
	}, nil
}

// CreatePR creates a pull request from branch "from"
// into branch "to". If a PR already exists (HTTP 422)
// the error is suppressed.
func (p *Provider) CreatePR(
	ctx context.Context,
	from string,
	to string,
	title string,
	body string,
) error {
	const errCtx = "creating github pull request"

	pr := &gh.NewPullRequest{
		Title: &title,
		Head:  &from,
		Base:  &to,
		Body:  &body,
	}

	created, resp, err := p.client.PullRequests.Create(
		ctx, p.repoOwner, p.repo, pr,
	)
	if err == nil {
		slog.Info(
			"created pull request",
			"url", created.GetHTMLURL(),
		)

		return nil
	}

	// HTTP 422: PR already exists for this
	// head/base pair.
	if resp != nil &&
		resp.StatusCode ==
			http.StatusUnprocessableEntity {
		slog.Info("reusing existing pull request")

		return nil
	}

	// Log the response body for debugging.
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close() //nolint:errcheck

		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			slog.Warn(
				"cannot read response body",
				"error", readErr,
			)
		} else {
			slog.Warn(
				"github response",
				"body", string(rb),
			)
		}
	}

	return fmt.Errorf("%s: %w", errCtx, err)
}

// PR summarises an open pull request for reporting.
type PR struct {
	// Number is the pull request number.
	Number int
	// Title is the pull request title.
	Title string
	// URL is the HTML page of the pull request.
	URL string
	// UpdatedAt is the last modification time.
	UpdatedAt time.Time
}

// Client exposes cross-repository read operations on
// GitHub, authenticated with a single token.
type Client struct {
	client *gh.Client
}

// NewClient returns a Client authenticated with token.
// enterpriseHost may be empty for github.com.
func NewClient(
	token string,
	enterpriseHost string,
) (*Client, error) {
	const errCtx = "creating github client"

	client, err := newClient(token, enterpriseHost)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return &Client{client: client}, nil
}

// AuthenticatedUser returns the login and display name
// of the token owner. An error here means the token is
// missing or invalid.
func (c *Client) AuthenticatedUser(
	ctx context.Context,
) (string, string, error) {
	const errCtx = "fetching authenticated user"

	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return user.GetLogin(), user.GetName(), nil
}

// ListOpenPRs returns all open pull requests of the
// given repository, following pagination.
func (c *Client) ListOpenPRs(
	ctx context.Context,
	owner string,
	repo string,
) ([]PR, error) {
	const errCtx = "listing open pull requests"

	opts := &gh.PullRequestListOptions{
		State: "open",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	var prs []PR

	for {
		page, resp, err := c.client.PullRequests.List(
			ctx, owner, repo, opts,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %s/%s: %w",
				errCtx, owner, repo, err,
			)
		}

		for _, pr := range page {
			prs = append(prs, PR{
				Number:    pr.GetNumber(),
				Title:     pr.GetTitle(),
				URL:       pr.GetHTMLURL(),
				UpdatedAt: pr.GetUpdatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return prs, nil
}

// newClient builds a go-github client for either
// github.com or a GitHub Enterprise host.
func newClient(
	token string,
	enterpriseHost string,
) (*gh.Client, error) {
	const errCtx = "building client"

	if token == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(nil).
		WithAuthToken(token)

	if enterpriseHost != "" {
		baseURL := "https://" +
			enterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			enterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	return client, nil
}
