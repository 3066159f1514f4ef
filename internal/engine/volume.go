package engine

import (
	"log/slog"
	"sync"
)

// VolumeController is the single source of truth for gain and mute,
// fanned out to whichever backends are loaded. Mute never overwrites
// the stored volume value.
type VolumeController struct {
	mu     sync.Mutex
	logger *slog.Logger

	percent int
	muted   bool

	graph Graph
	media *MediaBackend
}

// NewVolumeController creates the controller at the given starting
// percent (clamped) and mute state.
func NewVolumeController(graph Graph, media *MediaBackend, percent int, muted bool, logger *slog.Logger) *VolumeController {
	if logger == nil {
		logger = slog.Default()
	}
	c := &VolumeController{
		logger:  logger,
		percent: clampPercent(percent),
		muted:   muted,
		graph:   graph,
		media:   media,
	}
	c.fanOut()
	return c
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// AttachMedia hooks up a media tier created after the controller and
// pushes the current gain/mute to it.
func (c *VolumeController) AttachMedia(media *MediaBackend) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.media = media
	c.fanOut()
}

// SetVolume clamps to [0,100] and updates every loaded backend.
func (c *VolumeController) SetVolume(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.percent = clampPercent(percent)
	c.fanOut()
	c.logger.Debug("volume set", "percent", c.percent)
}

// Volume returns the stored volume percent.
func (c *VolumeController) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.percent
}

// SetMuted sets effective gain to zero (or restores it) while leaving
// the stored volume value untouched.
func (c *VolumeController) SetMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = muted
	c.fanOut()
	c.logger.Debug("mute set", "muted", muted)
}

// Muted returns the current mute state.
func (c *VolumeController) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// ToggleMute flips the mute state and returns the resulting state.
func (c *VolumeController) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = !c.muted
	c.fanOut()
	return c.muted
}

// fanOut pushes the current gain/mute to all backends. Callers hold mu.
func (c *VolumeController) fanOut() {
	if c.graph != nil {
		c.graph.SetGain(float64(c.percent) / 100)
		c.graph.SetSilent(c.muted)
	}
	if c.media != nil {
		c.media.SetVolume(c.percent)
		c.media.SetMuted(c.muted)
	}
}
