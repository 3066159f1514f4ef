package engine

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/cuebell/cuebell/internal/assets"
)

// CacheWatcher watches the on-disk asset cache and invalidates decoded
// buffers and media handles when a cached file changes underneath us.
type CacheWatcher struct {
	mu      sync.Mutex
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	dir    string
	ext    string
	buffer *BufferBackend
	media  *MediaBackend

	done    chan struct{}
	running bool
}

// NewCacheWatcher creates a watcher over the asset cache directory.
func NewCacheWatcher(dir, ext string, buffer *BufferBackend, media *MediaBackend, logger *slog.Logger) (*CacheWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &CacheWatcher{
		logger:  logger,
		watcher: watcher,
		dir:     dir,
		ext:     ext,
		buffer:  buffer,
		media:   media,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. Idempotent.
func (w *CacheWatcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	go w.loop()
	w.logger.Debug("asset cache watcher started", "dir", w.dir)
	return nil
}

func (w *CacheWatcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				w.invalidate(event.Name, event.Has(fsnotify.Remove))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("asset cache watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// invalidate maps a changed cache file back to its cue and drops the
// cached state for that cue. Media handles reference the file by path,
// so rewritten content is picked up on the next play without help; only
// a removed file takes the handle with it.
func (w *CacheWatcher) invalidate(path string, removed bool) {
	name := filepath.Base(path)
	cue := assets.CueType(strings.TrimSuffix(name, "."+w.ext))
	if !cue.Valid() || !strings.HasSuffix(name, "."+w.ext) {
		return
	}

	w.logger.Debug("cached asset changed, invalidating", "cue", cue, "removed", removed)
	if w.buffer != nil {
		w.buffer.Invalidate(cue)
	}
	if removed && w.media != nil {
		w.media.Invalidate(cue)
	}
}

// Stop halts the watch loop. Idempotent.
func (w *CacheWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.done)
	_ = w.watcher.Close()
}
