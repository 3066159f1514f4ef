package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"golang.org/x/sync/singleflight"

	"github.com/cuebell/cuebell/internal/assets"
	"github.com/cuebell/cuebell/internal/config"
)

// Preload timeouts per tier. The last-resort pass is deliberately
// permissive: its failures resolve instead of rejecting.
const (
	fallbackPreloadTimeout   = 5 * time.Second
	lastResortPreloadTimeout = 2 * time.Second
)

// State is an immutable snapshot of the engine, for diagnostics and UI.
type State struct {
	Volume                int
	Muted                 bool
	Initialized           bool
	HasNativeAudioSupport bool
	UsingSyntheticAudio   bool
}

// Engine is the public facade over the playback tiers. One instance owns
// one audio graph; construct it explicitly at the composition root and
// inject it where cues are fired.
type Engine struct {
	logger *slog.Logger
	cfg    *config.Config

	clock    Clock
	registry *assets.Registry
	fetcher  *assets.Fetcher

	graph      Graph
	buffer     *BufferBackend
	media      *MediaBackend
	synth      *SynthBackend
	volume     *VolumeController
	dispatcher *Dispatcher
	watcher    *CacheWatcher

	detectPlayer func() (MediaPlayer, error)

	// requireGesture defers graph start until Unlock fires.
	requireGesture bool
	unlockOnce     sync.Once
	unlockedMu     sync.RWMutex
	unlocked       bool

	initGroup singleflight.Group

	mu             sync.RWMutex
	initialized    bool
	hasNative      bool
	usingSynthetic bool // sticky for the session
	disposed       bool
	disposeOnce    sync.Once
}

// Option customizes engine construction, mainly for tests.
type Option func(*Engine)

// WithClock injects a clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithGraph injects an audio graph.
func WithGraph(g Graph) Option {
	return func(e *Engine) { e.graph = g }
}

// WithMediaPlayerDetector replaces system media player detection.
func WithMediaPlayerDetector(fn func() (MediaPlayer, error)) Option {
	return func(e *Engine) { e.detectPlayer = fn }
}

// WithGestureRequired defers audio device creation until the first
// user-gesture unlock, for platforms that demand it.
func WithGestureRequired(required bool) Option {
	return func(e *Engine) { e.requireGesture = required }
}

// New constructs an engine from config. Nothing touches the audio device
// until Initialize (or the unlock gesture, where required).
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if cfg.Assets.CacheDir == "" {
		cfg.Assets.CacheDir = config.CachePath()
	}

	e := &Engine{
		logger:       logger,
		cfg:          cfg,
		detectPlayer: DetectMediaPlayer,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.clock == nil {
		e.clock = NewClock()
	}
	if e.graph == nil {
		e.graph = NewGraph(e.clock, logger)
	}

	e.registry = assets.NewRegistry(cfg.Assets.BaseURL, cfg.Assets.Extension)
	e.fetcher = assets.NewFetcher(logger)
	e.buffer = NewBufferBackend(e.graph, e.clock, e.fetcher, e.registry, logger)

	e.synth = NewSynthBackend(e.graph, e.clock, cfg.Audio.SynthEnabled, logger)
	e.synth.SetOnFirstPlay(func() {
		e.mu.Lock()
		e.usingSynthetic = true
		e.mu.Unlock()
		e.logger.Info("synthetic audio in use for the remainder of the session")
	})

	if !e.requireGesture {
		e.unlocked = true
	}

	return e
}

// Registry exposes the cue table, mainly for diagnostics.
func (e *Engine) Registry() *assets.Registry { return e.registry }

// Initialize brings at least one tier up. Idempotent and safe to call
// concurrently: all callers share a single underlying attempt. It
// returns an error only when every tier, including the last-resort
// preload, failed.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.RLock()
	if e.disposed {
		e.mu.RUnlock()
		return ErrDisposed
	}
	if e.initialized {
		e.mu.RUnlock()
		return nil
	}
	e.mu.RUnlock()

	_, err, _ := e.initGroup.Do("initialize", func() (any, error) {
		return nil, e.initialize(ctx)
	})
	return err
}

func (e *Engine) initialize(ctx context.Context) error {
	e.mu.RLock()
	if e.initialized {
		e.mu.RUnlock()
		return nil
	}
	preload := e.cfg.Assets.Preload
	e.mu.RUnlock()

	e.logger.Debug("initializing audio engine", "cache_bust", e.registry.Token())

	graphOK := e.startGraph()

	if graphOK && preload {
		decoded := e.buffer.DecodeAll(ctx, assets.AllCues())
		e.logger.Info("primary tier ready", "decoded", decoded)
	}

	mediaOK := e.initMediaTier(ctx, assets.AllCues(), fallbackPreloadTimeout)

	if !graphOK && !mediaOK {
		// Last resort: essential cues only, short permissive timeouts.
		mediaOK = e.initMediaTier(ctx, assets.EssentialCues(), lastResortPreloadTimeout)
	}

	if !graphOK && !mediaOK && !e.synth.Enabled() && !e.requireGesture {
		return fmt.Errorf("initialize: %w", ErrEngineUnusable)
	}

	e.startWatcher()

	e.mu.Lock()
	e.initialized = true
	e.hasNative = graphOK
	e.mu.Unlock()

	e.logger.Info("audio engine initialized",
		"primary", graphOK, "fallback_handles", func() int {
			if e.media == nil {
				return 0
			}
			return e.media.ReadyCount()
		}())
	return nil
}

// startGraph opens the audio device unless gated behind an unlock
// gesture. Returns true when the primary tier is usable.
func (e *Engine) startGraph() bool {
	if e.requireGesture && !e.isUnlocked() {
		e.logger.Debug("audio device start deferred until unlock gesture")
		return false
	}
	if err := e.graph.Start(beep.SampleRate(e.cfg.Audio.SampleRate), e.cfg.Audio.Buffer.Duration()); err != nil {
		e.logger.Warn("primary audio tier unavailable", "error", err)
		return false
	}
	e.ensureVolume()
	return true
}

// initMediaTier detects a player and preloads. Returns true when at
// least one handle loaded.
func (e *Engine) initMediaTier(ctx context.Context, cues []assets.CueType, timeout time.Duration) bool {
	e.mu.Lock()
	if e.media == nil {
		player, err := e.detectPlayer()
		if err != nil {
			e.mu.Unlock()
			e.logger.Warn("fallback media tier unavailable", "error", err)
			return false
		}
		e.media = NewMediaBackend(player, e.fetcher, e.registry, e.cfg.Assets.CacheDir, e.logger)
		e.media.SetGate(e.isUnlocked)
		e.logger.Debug("media player detected", "player", player.Name())
	}
	media := e.media
	e.mu.Unlock()

	e.ensureVolume()
	e.mu.RLock()
	volume, dispatcher := e.volume, e.dispatcher
	e.mu.RUnlock()
	volume.AttachMedia(media)
	dispatcher.SetMedia(media)

	return media.Preload(ctx, cues, timeout) > 0
}

// ensureVolume builds the volume controller once backends exist and
// fans the configured volume out to them.
func (e *Engine) ensureVolume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.volume == nil {
		e.volume = NewVolumeController(e.graph, e.media, e.cfg.Audio.Volume, e.cfg.Audio.Muted, e.logger)
		e.dispatcher = NewDispatcher(e.buffer, e.media, e.synth, e.volume, e.logger)
	}
}

func (e *Engine) startWatcher() {
	watcher, err := NewCacheWatcher(e.cfg.Assets.CacheDir, e.registry.Extension(), e.buffer, e.media, e.logger)
	if err != nil {
		e.logger.Warn("asset cache watcher unavailable", "error", err)
		return
	}
	if err := watcher.Start(); err != nil {
		e.logger.Debug("asset cache watcher not started", "error", err)
		return
	}
	e.mu.Lock()
	e.watcher = watcher
	e.mu.Unlock()
}

// Play fires the cue at the given offset from now. Fire-and-forget:
// it never fails, never blocks the caller, and is safe to call before
// Initialize completes (the cue degrades to whatever tier is up).
func (e *Engine) Play(ctx context.Context, cue assets.CueType, when time.Duration) {
	e.mu.RLock()
	disposed := e.disposed
	enabled := e.cfg.Audio.Enabled
	e.mu.RUnlock()

	if disposed || !enabled {
		return
	}

	e.ensureVolume()
	e.mu.RLock()
	dispatcher := e.dispatcher
	e.mu.RUnlock()
	go dispatcher.Play(ctx, cue, when)
}

// volumeController returns the controller, constructing it on first use.
func (e *Engine) volumeController() *VolumeController {
	e.ensureVolume()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.volume
}

// SetVolume clamps percent to [0,100] and applies it to every tier.
func (e *Engine) SetVolume(percent int) {
	e.volumeController().SetVolume(percent)
}

// GetVolume returns the stored volume percent.
func (e *Engine) GetVolume() int {
	return e.volumeController().Volume()
}

// SetMuted mutes or unmutes without touching the stored volume.
func (e *Engine) SetMuted(muted bool) {
	e.volumeController().SetMuted(muted)
}

// IsMuted returns the current mute state.
func (e *Engine) IsMuted() bool {
	return e.volumeController().Muted()
}

// ToggleMute flips mute and returns the resulting state.
func (e *Engine) ToggleMute() bool {
	return e.volumeController().ToggleMute()
}

// GetState returns a read-only snapshot.
func (e *Engine) GetState() State {
	volume := e.volumeController()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Volume:                volume.Volume(),
		Muted:                 volume.Muted(),
		Initialized:           e.initialized,
		HasNativeAudioSupport: e.hasNative,
		UsingSyntheticAudio:   e.usingSynthetic,
	}
}

// IsReady reports whether the engine is initialized and at least one of
// the asset-backed tiers is operational.
func (e *Engine) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized || e.disposed {
		return false
	}
	if e.graph.Started() {
		return true
	}
	return e.media != nil && e.media.ReadyCount() > 0
}

// isUnlocked reports whether the platform gate permits playback.
func (e *Engine) isUnlocked() bool {
	e.unlockedMu.RLock()
	defer e.unlockedMu.RUnlock()
	return e.unlocked
}

// Unlock performs the one-time gesture unlock: opens the audio device
// and plays one inaudible buffer to satisfy the platform's gesture
// requirement. Idempotent; acts once per session.
func (e *Engine) Unlock() error {
	var err error
	e.unlockOnce.Do(func() {
		e.unlockedMu.Lock()
		e.unlocked = true
		e.unlockedMu.Unlock()

		if startErr := e.graph.Start(beep.SampleRate(e.cfg.Audio.SampleRate), e.cfg.Audio.Buffer.Duration()); startErr != nil {
			err = startErr
			return
		}
		e.ensureVolume()

		// One minimal silent buffer proves output is permitted.
		_ = e.graph.ScheduleAt(beep.Silence(1), e.clock.Now())
		e.mu.Lock()
		e.hasNative = true
		e.mu.Unlock()
		e.logger.Debug("audio unlocked by user gesture")
	})
	return err
}

// Keepalive schedules a near-silent buffer to hold the platform session
// open. Best-effort.
func (e *Engine) Keepalive() {
	if !e.graph.Started() {
		return
	}
	sr := e.graph.SampleRate()
	if sr == 0 {
		return
	}
	if err := e.graph.ScheduleAt(beep.Silence(sr.N(10*time.Millisecond)), e.clock.Now()); err != nil {
		e.logger.Debug("keepalive buffer not scheduled", "error", err)
	}
}

// Suspend pauses the audio context, e.g. on visibility-hidden.
func (e *Engine) Suspend() error {
	return e.graph.Suspend()
}

// Resume restarts a suspended context, e.g. on visibility-visible.
func (e *Engine) Resume() error {
	return e.graph.Resume()
}

// SetPreloadAll switches between eager and on-demand asset loading; the
// adaptation layer drives this from battery and network conditions.
// Turning preload back on after initialization decodes the missing cues
// in the background; turning it off leaves already-decoded buffers in
// place and only affects future loads.
func (e *Engine) SetPreloadAll(preload bool) {
	e.mu.Lock()
	was := e.cfg.Assets.Preload
	e.cfg.Assets.Preload = preload
	resume := preload && !was && e.initialized && !e.disposed
	e.mu.Unlock()

	if !resume || !e.graph.Started() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), fallbackPreloadTimeout)
		defer cancel()
		decoded := e.buffer.DecodeAll(ctx, assets.AllCues())
		e.logger.Debug("preload resumed", "decoded", decoded)
	}()
}

// Dispose tears everything down: closes the audio graph, stops and
// clears every media handle, halts the watcher. Synchronous,
// best-effort, idempotent.
func (e *Engine) Dispose() {
	e.disposeOnce.Do(func() {
		e.mu.Lock()
		e.disposed = true
		media := e.media
		watcher := e.watcher
		e.mu.Unlock()

		if watcher != nil {
			watcher.Stop()
		}
		if media != nil {
			media.Close()
		}
		e.buffer.Clear()
		if err := e.graph.Close(); err != nil {
			e.logger.Debug("graph close", "error", err)
		}
		e.logger.Debug("audio engine disposed")
	})
}
