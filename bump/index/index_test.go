package index_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/depbump/bump/index"
)

func TestHTTPIndex_Latest(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(
				w http.ResponseWriter,
				r *http.Request,
			) {
				assert.Equal(
					t,
					"/pypi/tool/json",
					r.URL.Path,
				)

				_, _ = w.Write([]byte(
					`{"info":{"version":"1.3.0"}}`,
				))
			},
		),
	)
	defer ts.Close()

	ix := index.NewHTTPIndex(index.HTTPConfig{
		BaseURL: ts.URL,
	})

	got, err := ix.Latest(
		context.Background(), "tool",
	)

	require.NoError(t, err)
	assert.Equal(t, "1.3.0", got)
}

func TestHTTPIndex_Latest_not_found(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(
				w http.ResponseWriter,
				_ *http.Request,
			) {
				w.WriteHeader(http.StatusNotFound)
			},
		),
	)
	defer ts.Close()

	ix := index.NewHTTPIndex(index.HTTPConfig{
		BaseURL: ts.URL,
	})

	_, err := ix.Latest(
		context.Background(), "ghost",
	)

	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestHTTPIndex_Latest_server_error(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(
				w http.ResponseWriter,
				_ *http.Request,
			) {
				w.WriteHeader(
					http.StatusInternalServerError,
				)
			},
		),
	)
	defer ts.Close()

	ix := index.NewHTTPIndex(index.HTTPConfig{
		BaseURL: ts.URL,
	})

	_, err := ix.Latest(
		context.Background(), "tool",
	)

	assert.ErrorContains(t, err, "unexpected status")
}

func TestHTTPIndex_Latest_empty_version(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(
				w http.ResponseWriter,
				_ *http.Request,
			) {
				_, _ = w.Write(
					[]byte(`{"info":{}}`),
				)
			},
		),
	)
	defer ts.Close()

	ix := index.NewHTTPIndex(index.HTTPConfig{
		BaseURL: ts.URL,
	})

	_, err := ix.Latest(
		context.Background(), "tool",
	)

	assert.ErrorContains(t, err, "empty version")
}

func TestHTTPIndex_env_override(t *testing.T) {
	// Not parallel: mutates process environment.
	t.Setenv(index.EnvBaseURL, "http://127.0.0.1:1")

	ix := index.NewHTTPIndex(index.HTTPConfig{})

	_, err := ix.Latest(
		context.Background(), "tool",
	)

	// The override points at a closed port, so the
	// lookup must fail with a transport error rather
	// than reaching the public default.
	assert.Error(t, err)
}

func TestStaticIndex_Latest(t *testing.T) {
	t.Parallel()

	si := index.StaticIndex{"tool": "1.3.0"}

	got, err := si.Latest(
		context.Background(), "tool",
	)

	require.NoError(t, err)
	assert.Equal(t, "1.3.0", got)
}

func TestStaticIndex_unknown_name(t *testing.T) {
	t.Parallel()

	si := index.StaticIndex{}

	_, err := si.Latest(
		context.Background(), "ghost",
	)

	assert.ErrorIs(t, err, index.ErrNotFound)
}
