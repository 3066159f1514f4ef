package assets

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bell.wav", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("v"), "requests carry the cache-bust token")
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	r := NewRegistry(srv.URL, "wav")
	f := NewFetcher(testLogger(t))

	data, err := f.Fetch(context.Background(), r.Lookup(CueBell))
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), data)
}

func TestFetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := NewRegistry(srv.URL, "wav")
	f := NewFetcher(testLogger(t))

	_, err := f.Fetch(context.Background(), r.Lookup(CueBeep))
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, CueBeep, loadErr.Cue)
	assert.Contains(t, loadErr.URI, "beep.wav")
}

func TestFetchContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	r := NewRegistry(srv.URL, "wav")
	f := NewFetcher(testLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, r.Lookup(CueBell))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("cached-audio"))
	}))
	defer srv.Close()

	r := NewRegistry(srv.URL, "wav")
	f := NewFetcher(testLogger(t))
	dir := filepath.Join(t.TempDir(), "nested", "cache")

	path, err := f.FetchToFile(context.Background(), r.Lookup(CueWarning), dir, "wav")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "warning.wav"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached-audio"), data)

	// Overwrites on a second fetch.
	_, err = f.FetchToFile(context.Background(), r.Lookup(CueWarning), dir, "wav")
	require.NoError(t, err)
}

func TestLoadErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &LoadError{Cue: CueBell, URI: "http://x/bell.wav", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "bell")
	assert.Contains(t, err.Error(), "boom")
}
