package git

import "context"

// Pattern: Strategy -- the runner opens one PR per
// bumped repository without knowing which platform
// hosts it.

// GitProvider opens the pull request for a pushed bump
// branch. from is the bump branch, to the base branch
// the clone started on.
type GitProvider interface {
	CreatePR(
		ctx context.Context,
		from string,
		to string,
		title string,
		body string,
	) error
}

// GitProviderFunc adapts a plain function to the
// GitProvider interface, mostly for tests and one-off
// providers. When body is empty the title is used as
// body.
type GitProviderFunc func(
	ctx context.Context,
	from string,
	to string,
	title string,
	body string,
) error

// CreatePR delegates to the wrapped function. If body
// is empty, title is substituted.
func (f GitProviderFunc) CreatePR(
	ctx context.Context,
	from string,
	to string,
	title string,
	body string,
) error {
	if body == "" {
		body = title
	}

	return f(ctx, from, to, title, body)
}
