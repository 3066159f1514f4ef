package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// Graph is the low-level audio graph the buffer and synthetic tiers play
// through: one output device, one mixer, one persistent gain node. The
// graph is exclusively owned by its engine instance; gain and mute are
// mutated only through the published setters.
type Graph interface {
	// Start opens the output device and attaches the gain node.
	// Idempotent once started.
	Start(sampleRate beep.SampleRate, bufferSize time.Duration) error

	// Started reports whether the device is open.
	Started() bool

	// ScheduleAt adds a one-shot streamer that begins at the absolute
	// engine-clock time at. An at in the past plays immediately.
	ScheduleAt(s beep.Streamer, at time.Duration) error

	// SampleRate returns the rate the device was opened with, or 0.
	SampleRate() beep.SampleRate

	// SetGain sets the persistent gain node's level, 0.0..1.0.
	SetGain(gain float64)

	// SetSilent mutes or unmutes output without touching the gain level.
	SetSilent(silent bool)

	Suspend() error
	Resume() error

	// Close tears the graph down. Idempotent.
	Close() error
}

// beepGraph drives the beep speaker. The speaker package owns a single
// process-wide device, mirroring the one-context rule of the underlying
// driver.
type beepGraph struct {
	mu     sync.Mutex
	logger *slog.Logger
	clock  Clock

	sampleRate beep.SampleRate
	mixer      *beep.Mixer
	volume     *effects.Volume

	gain   float64
	silent bool

	started bool
	closed  bool
}

// NewGraph creates the beep-backed audio graph.
func NewGraph(clock Clock, logger *slog.Logger) Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &beepGraph{
		logger: logger,
		clock:  clock,
		gain:   1.0,
	}
}

func (g *beepGraph) Start(sampleRate beep.SampleRate, bufferSize time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrDisposed
	}
	if g.started {
		return nil
	}

	if err := speaker.Init(sampleRate, sampleRate.N(bufferSize)); err != nil {
		return fmt.Errorf("open output device: %w: %w", ErrBackendUnavailable, err)
	}

	g.sampleRate = sampleRate
	g.mixer = &beep.Mixer{}
	g.volume = &effects.Volume{
		Streamer: g.mixer,
		Base:     2,
		Volume:   gainToVolume(g.gain),
		Silent:   g.silent || g.gain == 0,
	}
	speaker.Play(g.volume)

	g.started = true
	g.logger.Debug("audio graph started", "sample_rate", sampleRate, "buffer", bufferSize)
	return nil
}

func (g *beepGraph) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started && !g.closed
}

func (g *beepGraph) SampleRate() beep.SampleRate {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sampleRate
}

func (g *beepGraph) ScheduleAt(s beep.Streamer, at time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.started || g.closed {
		return ErrBackendUnavailable
	}

	lead := at - g.clock.Now()
	if lead > 0 {
		// Lead-in silence gives sample-accurate start times relative to
		// the engine clock, subject to the device buffer already queued.
		s = beep.Seq(beep.Silence(g.sampleRate.N(lead)), s)
	}

	speaker.Lock()
	g.mixer.Add(s)
	speaker.Unlock()
	return nil
}

func (g *beepGraph) SetGain(gain float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gain = gain
	if !g.started || g.closed {
		return
	}
	speaker.Lock()
	g.volume.Volume = gainToVolume(gain)
	g.volume.Silent = g.silent || gain == 0
	speaker.Unlock()
}

func (g *beepGraph) SetSilent(silent bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.silent = silent
	if !g.started || g.closed {
		return
	}
	speaker.Lock()
	g.volume.Silent = silent || g.gain == 0
	speaker.Unlock()
}

func (g *beepGraph) Suspend() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started || g.closed {
		return nil
	}
	return speaker.Suspend()
}

func (g *beepGraph) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started || g.closed {
		return nil
	}
	return speaker.Resume()
}

func (g *beepGraph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	if g.started {
		speaker.Clear()
		speaker.Close()
		g.started = false
	}
	return nil
}

// gainToVolume converts a linear 0..1 gain to the base-2 exponent the
// effects.Volume node expects (0.5 -> one octave down, ~-6dB).
func gainToVolume(gain float64) float64 {
	if gain <= 0 {
		return 0 // Silent flag carries the actual muting.
	}
	return math.Log2(gain)
}
