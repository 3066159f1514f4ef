package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// LoadError wraps a network or filesystem failure for a single asset.
// Loading is always recovered locally; callers log and continue.
type LoadError struct {
	Cue CueType
	URI string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load asset %s from %s: %v", e.Cue, e.URI, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Fetcher downloads asset bytes with bounded, caller-controlled timeouts.
// There is deliberately no retry policy; one attempt per call.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetcher creates a fetcher. Timeouts come from the request context.
func NewFetcher(logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: &http.Client{},
		logger: logger,
	}
}

// Fetch performs a single GET for the descriptor's URI and returns the
// raw bytes.
func (f *Fetcher) Fetch(ctx context.Context, d *Descriptor) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URI, nil)
	if err != nil {
		return nil, &LoadError{Cue: d.Cue, URI: d.URI, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &LoadError{Cue: d.Cue, URI: d.URI, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{Cue: d.Cue, URI: d.URI, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LoadError{Cue: d.Cue, URI: d.URI, Err: err}
	}

	f.logger.Debug("fetched asset", "cue", d.Cue, "size", humanize.Bytes(uint64(len(data))))
	return data, nil
}

// FetchToFile downloads the asset into dir as "<cue>.<ext>" and returns
// the file path. Existing files are overwritten.
func (f *Fetcher) FetchToFile(ctx context.Context, d *Descriptor, dir, ext string) (string, error) {
	data, err := f.Fetch(ctx, d)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &LoadError{Cue: d.Cue, URI: d.URI, Err: err}
	}

	path := filepath.Join(dir, fmt.Sprintf("%s.%s", d.Cue, ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &LoadError{Cue: d.Cue, URI: d.URI, Err: err}
	}
	return path, nil
}
