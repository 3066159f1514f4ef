package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cuebell/cuebell/internal/assets"
)

// onDemandTimeout bounds the per-call media tier promotion fetch.
const onDemandTimeout = time.Second

// Dispatcher implements the backend cascade: Buffer -> Media(ready) ->
// Media(on-demand) -> Synthetic, stopping at the first success. All
// failures are contained here; nothing propagates to the caller.
type Dispatcher struct {
	logger *slog.Logger

	mu     sync.RWMutex
	buffer *BufferBackend
	media  *MediaBackend
	synth  *SynthBackend
	volume *VolumeController

	// onBlocked fires when a tier reports the unlock gesture has not
	// happened yet, so the adaptation layer can arrange unlock.
	onBlocked func()
}

// NewDispatcher wires the cascade.
func NewDispatcher(buffer *BufferBackend, media *MediaBackend, synth *SynthBackend, volume *VolumeController, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger: logger,
		buffer: buffer,
		media:  media,
		synth:  synth,
		volume: volume,
	}
}

// SetOnBlocked installs the autoplay-blocked hook.
func (d *Dispatcher) SetOnBlocked(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onBlocked = fn
}

// SetMedia hooks up a media tier created after the dispatcher.
func (d *Dispatcher) SetMedia(media *MediaBackend) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.media = media
}

// Play attempts each tier in fixed priority order and never returns an
// error: the consuming timer must remain correct with zero functional
// dependency on audio succeeding. when is an offset against the engine
// clock; zero plays immediately.
func (d *Dispatcher) Play(ctx context.Context, cue assets.CueType, when time.Duration) {
	d.mu.RLock()
	buffer, media, synth, volume, onBlocked := d.buffer, d.media, d.synth, d.volume, d.onBlocked
	d.mu.RUnlock()

	if volume != nil && volume.Muted() {
		// Suppressed before any source is constructed, not zero-gained.
		d.logger.Debug("cue suppressed while muted", "cue", cue)
		return
	}

	blocked := false

	if buffer != nil && buffer.Has(cue) {
		if err := buffer.PlayScheduled(cue, when); err == nil {
			return
		} else {
			d.logger.Debug("buffer tier failed", "cue", cue, "error", err)
		}
	}

	if media != nil {
		if !media.Ready(cue) {
			loadCtx, cancel := context.WithTimeout(ctx, onDemandTimeout)
			err := media.LoadOnDemand(loadCtx, cue, onDemandTimeout)
			cancel()
			if err != nil {
				d.logger.Debug("media on-demand load failed", "cue", cue, "error", err)
			}
		}
		if media.Ready(cue) {
			err := d.mediaPlay(ctx, media, cue, when)
			if err == nil {
				return
			}
			if errors.Is(err, ErrAutoplayBlocked) {
				blocked = true
				if onBlocked != nil {
					onBlocked()
				}
			}
			d.logger.Debug("media tier failed", "cue", cue, "error", err)
		}
	}

	if synth != nil && synth.Enabled() {
		if err := synth.PlayScheduled(cue, when); err == nil {
			return
		} else {
			d.logger.Debug("synthetic tier failed", "cue", cue, "error", err)
		}
	}

	if blocked {
		d.logger.Warn("cue dropped pending unlock gesture", "cue", cue)
		return
	}
	d.logger.Warn("all playback tiers failed, cue dropped", "cue", cue)
}

// mediaPlay honors the when offset with timer-grade accuracy; the media
// tier has no sample-accurate scheduling primitive.
func (d *Dispatcher) mediaPlay(ctx context.Context, media *MediaBackend, cue assets.CueType, when time.Duration) error {
	if when > 0 {
		timer := time.NewTimer(when)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return media.PlayImmediate(ctx, cue)
}
