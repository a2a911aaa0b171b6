// Package main provides the bump_pins CLI that rewrites
// strictly-older version pins in a working tree and
// reports every rewritten pin on stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/byte4ever/depbump/bump"
	"github.com/byte4ever/depbump/bump/index"
)

type arrayFlags []string

func (af *arrayFlags) String() string {
	return ""
}

func (af *arrayFlags) Set(value string) error {
	*af = append(*af, value)
	return nil
}

func run() error {
	const errCtx = "bump_pins"

	var patterns arrayFlags

	var (
		root     string
		indexURL string
	)

	flag.Var(
		&patterns,
		"pattern",
		"file glob to scan, relative to root "+
			"(repeatable; default: built-in set)",
	)

	flag.StringVar(
		&root, "root", ".",
		"working tree root to transform",
	)

	flag.StringVar(
		&indexURL, "index_url", "",
		"version index base URL (default: "+
			"$BUMP_INDEX_URL, then the public index)",
	)

	flag.Parse()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	result, err := bump.Transform(ctx, root, bump.Options{
		Patterns: patterns,
		Index: index.NewHTTPIndex(index.HTTPConfig{
			BaseURL: indexURL,
		}),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	for _, pin := range result.Pins {
		fmt.Printf(
			"%s: %s %s -> %s\n",
			pin.File, pin.Name, pin.Old, pin.New,
		)
	}

	for _, failure := range result.Failures {
		slog.Warn(
			"lookup failed",
			"file", failure.File,
			"name", failure.Name,
			"error", failure.Err,
		)
	}

	if !result.Changed() {
		fmt.Println("no pins to bump")
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
