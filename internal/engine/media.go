package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/cuebell/cuebell/internal/assets"
)

// MediaPlayer plays one asset file from position zero via the platform's
// media facility. Coarser timing than the buffer tier, broader
// compatibility.
type MediaPlayer interface {
	Name() string

	// Play starts playback of path at the given volume percent and
	// returns once playback has been handed to the platform.
	Play(ctx context.Context, path string, volumePercent int) error

	// Stop kills any playback still in flight. Best-effort.
	Stop()
}

// execPlayer shells out to a system audio player.
type execPlayer struct {
	name string
	path string
	args func(volumePercent int, file string) []string

	mu      sync.Mutex
	running map[*exec.Cmd]struct{}
}

// DetectMediaPlayer probes for an available system player in priority
// order: pulse, pipewire, alsa, coreaudio, ffplay.
func DetectMediaPlayer() (MediaPlayer, error) {
	type candidate struct {
		bin  string
		args func(vol int, file string) []string
	}
	candidates := []candidate{
		{"paplay", func(vol int, file string) []string {
			return []string{fmt.Sprintf("--volume=%d", vol*65536/100), file}
		}},
		{"pw-play", func(vol int, file string) []string {
			return []string{"--volume", strconv.FormatFloat(float64(vol)/100, 'f', 2, 64), file}
		}},
		{"aplay", func(vol int, file string) []string {
			// aplay has no volume flag; the tier-wide mute gate still applies.
			return []string{"-q", file}
		}},
		{"ffplay", func(vol int, file string) []string {
			return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-volume", strconv.Itoa(vol), file}
		}},
	}
	if runtime.GOOS == "darwin" {
		candidates = append([]candidate{
			{"afplay", func(vol int, file string) []string {
				return []string{"-v", strconv.FormatFloat(float64(vol)/100, 'f', 2, 64), file}
			}},
		}, candidates...)
	}

	for _, c := range candidates {
		if path, err := exec.LookPath(c.bin); err == nil {
			return &execPlayer{
				name:    c.bin,
				path:    path,
				args:    c.args,
				running: make(map[*exec.Cmd]struct{}),
			}, nil
		}
	}
	return nil, fmt.Errorf("no system media player found: %w", ErrBackendUnavailable)
}

func (p *execPlayer) Name() string { return p.name }

func (p *execPlayer) Play(ctx context.Context, path string, volumePercent int) error {
	cmd := exec.CommandContext(ctx, p.path, p.args(volumePercent, path)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.name, err)
	}

	p.mu.Lock()
	p.running[cmd] = struct{}{}
	p.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		p.mu.Lock()
		delete(p.running, cmd)
		p.mu.Unlock()
	}()
	return nil
}

func (p *execPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for cmd := range p.running {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
}

// mediaHandle is one preloaded asset file, analogous to a platform media
// element: position resets to zero on every play.
type mediaHandle struct {
	cue           assets.CueType
	path          string
	ready         bool
	volumePercent int
}

// MediaBackend is the fallback tier. Assets are preloaded to local files
// and played through a system media player process.
type MediaBackend struct {
	mu     sync.RWMutex
	logger *slog.Logger

	player   MediaPlayer
	fetcher  *assets.Fetcher
	registry *assets.Registry
	cacheDir string

	handles       map[assets.CueType]*mediaHandle
	volumePercent int
	muted         bool

	// gate reports whether the platform currently permits playback;
	// nil means always permitted.
	gate func() bool
}

// NewMediaBackend creates the fallback tier around a detected player.
func NewMediaBackend(player MediaPlayer, fetcher *assets.Fetcher, registry *assets.Registry, cacheDir string, logger *slog.Logger) *MediaBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaBackend{
		logger:        logger,
		player:        player,
		fetcher:       fetcher,
		registry:      registry,
		cacheDir:      cacheDir,
		handles:       make(map[assets.CueType]*mediaHandle),
		volumePercent: 100,
	}
}

// SetGate installs the autoplay gate consulted before every play.
func (m *MediaBackend) SetGate(gate func() bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

// Preload fetches each cue's asset to the local cache, racing readiness
// against perAssetTimeout. Assets that time out are marked unavailable
// for this tier without failing the whole preload. Returns the number of
// handles that loaded; the tier is usable if at least one did.
func (m *MediaBackend) Preload(ctx context.Context, cues []assets.CueType, perAssetTimeout time.Duration) int {
	loaded := 0
	for _, cue := range cues {
		if err := m.loadHandle(ctx, cue, perAssetTimeout); err != nil {
			m.logger.Warn("media preload failed", "cue", cue, "error", err)
			continue
		}
		loaded++
	}

	if loaded > 0 && loaded*2 < len(cues) {
		// Non-fatal telemetry only; the tier stays usable.
		m.logger.Warn("fewer than half of media assets loaded",
			"loaded", loaded, "total", len(cues))
	}
	return loaded
}

// loadHandle is the first-of-{ready, timeout} race for one asset.
func (m *MediaBackend) loadHandle(ctx context.Context, cue assets.CueType, timeout time.Duration) error {
	d := m.registry.Lookup(cue)
	if d == nil {
		return fmt.Errorf("no registered source for cue %q", cue)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		path, err := m.fetcher.FetchToFile(ctx, d, m.cacheDir, m.registry.Extension())
		done <- result{path, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		m.mu.Lock()
		m.handles[cue] = &mediaHandle{
			cue:           cue,
			path:          r.path,
			ready:         true,
			volumePercent: m.volumePercent,
		}
		m.mu.Unlock()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("media asset %s not ready within %s", cue, timeout)
	}
}

// LoadOnDemand fetches a single cue with a short bounded timeout,
// used for per-call tier promotion when the asset was not preloaded.
func (m *MediaBackend) LoadOnDemand(ctx context.Context, cue assets.CueType, timeout time.Duration) error {
	return m.loadHandle(ctx, cue, timeout)
}

// Ready reports whether the cue has a loaded media handle.
func (m *MediaBackend) Ready(cue assets.CueType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[cue]
	return ok && h.ready
}

// ReadyCount returns the number of loaded handles.
func (m *MediaBackend) ReadyCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, h := range m.handles {
		if h.ready {
			n++
		}
	}
	return n
}

// PlayImmediate plays the cue's handle from position zero at its current
// volume. A platform refusal before the unlock gesture surfaces as
// ErrAutoplayBlocked so the adaptation layer can arrange unlock.
func (m *MediaBackend) PlayImmediate(ctx context.Context, cue assets.CueType) error {
	m.mu.RLock()
	gate := m.gate
	muted := m.muted
	h, ok := m.handles[cue]
	m.mu.RUnlock()

	if gate != nil && !gate() {
		return ErrAutoplayBlocked
	}
	if !ok || !h.ready {
		return fmt.Errorf("cue %s has no loaded media handle: %w", cue, ErrBackendUnavailable)
	}
	if muted {
		// Muted playback is suppressed rather than zero-gained.
		return nil
	}

	return m.player.Play(ctx, h.path, h.volumePercent)
}

// SetVolume synchronizes every loaded handle's volume field and the
// default applied to handles loaded later.
func (m *MediaBackend) SetVolume(percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumePercent = percent
	for _, h := range m.handles {
		h.volumePercent = percent
	}
}

// SetMuted toggles the tier-wide mute gate.
func (m *MediaBackend) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

// Invalidate marks a cue's handle stale, forcing a reload on next use.
func (m *MediaBackend) Invalidate(cue assets.CueType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handles, cue)
}

// Close stops in-flight playback and clears every handle.
func (m *MediaBackend) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.player != nil {
		m.player.Stop()
	}
	m.handles = make(map[assets.CueType]*mediaHandle)
}
