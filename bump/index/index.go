// Package index looks up the latest known release version of a package or
// tool from an external version index service. The HTTP index speaks the
// PyPI-style "/pypi/<name>/json" endpoint; StaticIndex serves fixed versions
// for tests and offline runs.
package index

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	json "github.com/goccy/go-json"
)

// EnvBaseURL is the environment variable overriding the
// index base URL when no explicit URL is configured.
const EnvBaseURL = "BUMP_INDEX_URL"

const defaultBaseURL = "https://pypi.org"

// ErrNotFound is returned when the index has no entry
// for the requested package.
var ErrNotFound = errors.New("package not found in index")

// Index maps a package or tool name to its latest known
// release version.
type Index interface {
	Latest(ctx context.Context, name string) (string, error)
}

// HTTPIndex queries a version index over HTTP.
type HTTPIndex struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPConfig holds the settings for an HTTPIndex.
type HTTPConfig struct {
	// BaseURL is the index base URL. When empty the
	// BUMP_INDEX_URL environment variable is
	// consulted, then the public default.
	BaseURL string
	// HTTPClient overrides the HTTP client used for
	// lookups (CA bundle, proxy, timeouts). Defaults
	// to http.DefaultClient.
	HTTPClient *http.Client
}

// NewHTTPIndex returns an HTTPIndex resolved from cfg.
func NewHTTPIndex(cfg HTTPConfig) *HTTPIndex {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv(EnvBaseURL)
	}

	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPIndex{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// releaseInfo mirrors the subset of the index JSON
// response we consume.
type releaseInfo struct {
	Info struct {
		Version string `json:"version"`
	} `json:"info"`
}

// Latest returns the latest known version of name.
// Returns ErrNotFound when the index has no entry.
func (ix *HTTPIndex) Latest(
	ctx context.Context,
	name string,
) (string, error) {
	const errCtx = "querying version index"

	url := fmt.Sprintf(
		"%s/pypi/%s/json", ix.baseURL, name,
	)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, url, nil,
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: build request: %w", errCtx, err,
		)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := ix.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %s: %w", errCtx, name, err,
		)
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf(
			"%s: %s: %w", errCtx, name, ErrNotFound,
		)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf(
			"%s: %s: unexpected status %d",
			errCtx, name, resp.StatusCode,
		)
	}

	var info releaseInfo

	if err := json.NewDecoder(resp.Body).Decode(
		&info,
	); err != nil {
		return "", fmt.Errorf(
			"%s: %s: decode response: %w",
			errCtx, name, err,
		)
	}

	if info.Info.Version == "" {
		return "", fmt.Errorf(
			"%s: %s: empty version in response",
			errCtx, name,
		)
	}

	return info.Info.Version, nil
}

// StaticIndex serves versions from a fixed in-memory
// map. Lookups for unknown names return ErrNotFound.
type StaticIndex map[string]string

// Latest returns the mapped version of name.
func (si StaticIndex) Latest(
	_ context.Context,
	name string,
) (string, error) {
	const errCtx = "querying static index"

	version, ok := si[name]
	if !ok {
		return "", fmt.Errorf(
			"%s: %s: %w", errCtx, name, ErrNotFound,
		)
	}

	return version, nil
}
