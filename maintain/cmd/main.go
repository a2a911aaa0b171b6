// Package main provides the maintain CLI: day-to-day
// helper commands over the configured repository set.
//
//	maintain pr    list open pull requests
//	maintain open  open repository pages
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/byte4ever/depbump/autofix/git/github"
	"github.com/byte4ever/depbump/maintain"
	"github.com/byte4ever/depbump/repofile"
)

func main() {
	if err := run(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	const errCtx = "maintain"

	config := flag.String(
		"config", "repos.yaml",
		"Repository set file (YAML or JSON)",
	)
	parallelism := flag.Int(
		"j", maintain.DefaultParallelism,
		"Number of concurrent API calls",
	)
	openURLs := flag.Bool(
		"o", false,
		"Open resulting URLs in the browser",
	)

	flag.Parse()

	if flag.NArg() < 1 {
		return fmt.Errorf(
			"%s: missing command (pr, open)", errCtx,
		)
	}

	set, err := repofile.Load(*config)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	client, err := github.NewClient(
		os.Getenv("GITHUB_TOKEN"),
		os.Getenv("GITHUB_ENTERPRISE_HOST"),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	login, name, err := client.AuthenticatedUser(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	fmt.Printf("authenticated as %s (%s)\n", login, name)

	switch cmd := flag.Arg(0); cmd {
	case "pr", "p":
		return listPRs(
			ctx, set, client, *parallelism, *openURLs,
		)

	case "open", "o":
		return openPages(ctx, set, flag.Arg(1))

	default:
		return fmt.Errorf(
			"%s: unknown command %q", errCtx, cmd,
		)
	}
}

func listPRs(
	ctx context.Context,
	set *repofile.Set,
	client *github.Client,
	parallelism int,
	openURLs bool,
) error {
	const errCtx = "listing pull requests"

	results := maintain.ListPRs(
		ctx, set, client, parallelism,
	)

	err := maintain.WritePRs(os.Stdout, results)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if openURLs {
		maintain.OpenInBrowser(
			ctx, maintain.URLs(results),
		)
	}

	return nil
}

func openPages(
	ctx context.Context,
	set *repofile.Set,
	suffix string,
) error {
	urls := maintain.PageURLs(set, suffix)

	for _, url := range urls {
		fmt.Println(url)
	}

	maintain.OpenInBrowser(ctx, urls)

	return nil
}
