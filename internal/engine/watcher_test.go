package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuebell/cuebell/internal/assets"
)

func newWatcherFixture(t *testing.T) (*CacheWatcher, *BufferBackend, *MediaBackend, string) {
	t.Helper()
	dir := t.TempDir()

	b, _, _ := newBufferFixture(t, "http://127.0.0.1:0")
	m, _, _ := newMediaFixture(t, "http://127.0.0.1:0")

	w, err := NewCacheWatcher(dir, "wav", b, m, testLogger(t))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)
	return w, b, m, dir
}

func TestWatcherInvalidatesBufferOnWrite(t *testing.T) {
	_, b, m, dir := newWatcherFixture(t)
	decodeInto(t, b, assets.CueBell)
	loadHandleInto(m, assets.CueBell, filepath.Join(dir, "bell.wav"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bell.wav"), []byte("rewritten"), 0o644))

	assert.Eventually(t, func() bool {
		return !b.Has(assets.CueBell)
	}, 3*time.Second, 10*time.Millisecond, "a rewritten cache file drops the decoded buffer")

	// The media handle points at the path; rewritten content is picked
	// up on the next play, so the handle survives.
	assert.True(t, m.Ready(assets.CueBell))
}

func TestWatcherInvalidatesMediaOnRemove(t *testing.T) {
	_, b, m, dir := newWatcherFixture(t)
	path := filepath.Join(dir, "beep.wav")
	require.NoError(t, os.WriteFile(path, []byte("cached"), 0o644))

	decodeInto(t, b, assets.CueBeep)
	loadHandleInto(m, assets.CueBeep, path)
	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		return !m.Ready(assets.CueBeep) && !b.Has(assets.CueBeep)
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresForeignFiles(t *testing.T) {
	_, b, _, dir := newWatcherFixture(t)
	decodeInto(t, b, assets.CueBell)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unknown.wav"), []byte("x"), 0o644))

	time.Sleep(200 * time.Millisecond)
	assert.True(t, b.Has(assets.CueBell))
}

func TestWatcherStopIdempotent(t *testing.T) {
	w, _, _, _ := newWatcherFixture(t)
	w.Stop()
	w.Stop()
}
