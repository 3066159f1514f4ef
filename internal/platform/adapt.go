package platform

import (
	"log/slog"
	"sync"
	"time"
)

// Sink is the slice of the audio engine the adapter drives. Every call
// is best-effort from the adapter's point of view; failures are logged
// and never propagate.
type Sink interface {
	// Unlock performs the one-time gesture unlock of the audio device.
	Unlock() error

	// Keepalive schedules a near-silent buffer to hold the session open.
	Keepalive()

	Suspend() error
	Resume() error

	// SetPreloadAll switches between eager and on-demand asset loading.
	SetPreloadAll(preload bool)
}

// defaultKeepaliveInterval sits just under the ~30s platform inactivity
// teardown window.
const defaultKeepaliveInterval = 29 * time.Second

// backgroundKeepaliveInterval emits more often while hidden, before the
// platform fully suspends audio.
const backgroundKeepaliveInterval = 10 * time.Second

// Adapter manages first-gesture unlock, background/foreground context
// transitions, session keep-alive, and battery/network-driven preload
// tuning for one engine instance.
type Adapter struct {
	logger *slog.Logger
	caps   Capabilities
	sink   Sink

	continueInBackground bool
	lowBatteryPercent    int
	keepalive            time.Duration

	power   *PowerProbe
	network *NetworkProbe

	gestureOnce sync.Once

	mu      sync.Mutex
	visible bool
	battery BatteryState
	netQ    NetworkClass
	tune    Tune
	onTune  func(Tune)

	stopOnce sync.Once
	done     chan struct{}
}

// AdapterOption customizes adapter construction.
type AdapterOption func(*Adapter)

// WithContinueInBackground keeps audio alive while hidden.
func WithContinueInBackground(enabled bool) AdapterOption {
	return func(a *Adapter) { a.continueInBackground = enabled }
}

// WithLowBatteryPercent overrides the low-power threshold.
func WithLowBatteryPercent(pct int) AdapterOption {
	return func(a *Adapter) { a.lowBatteryPercent = pct }
}

// WithKeepaliveInterval overrides the foreground keep-alive cadence.
// Non-positive values keep the default.
func WithKeepaliveInterval(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.keepalive = d
		}
	}
}

// WithOnTune observes tune recomputation, mainly for diagnostics.
func WithOnTune(fn func(Tune)) AdapterOption {
	return func(a *Adapter) { a.onTune = fn }
}

// NewAdapter wires the adaptation layer to an engine.
func NewAdapter(caps Capabilities, sink Sink, logger *slog.Logger, opts ...AdapterOption) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		logger:            logger,
		caps:              caps,
		sink:              sink,
		lowBatteryPercent: lowBatteryDefault,
		keepalive:         defaultKeepaliveInterval,
		visible:           true,
		netQ:              NetUnknown,
		tune:              DefaultTune(),
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start spins up the probes and the keep-alive loop. Probe failures are
// logged and skipped; the adapter always starts.
func (a *Adapter) Start() {
	if a.caps.HasPowerProbe {
		if probe, err := NewPowerProbe(a.logger); err == nil {
			a.power = probe
			if state, err := probe.Read(); err == nil {
				a.onBatteryChange(state)
			}
			if err := probe.Watch(a.onBatteryChange); err != nil {
				a.logger.Debug("battery watch unavailable", "error", err)
			}
		} else {
			a.logger.Debug("power probe unavailable", "error", err)
		}
	}

	if a.caps.HasNetworkProbe {
		if probe, err := NewNetworkProbe(a.logger); err == nil {
			a.network = probe
			a.onNetworkChange(probe.Classify())
			if err := probe.Watch(a.onNetworkChange); err != nil {
				a.logger.Debug("network watch unavailable", "error", err)
			}
		} else {
			a.logger.Debug("network probe unavailable", "error", err)
		}
	}

	go a.keepaliveLoop()
}

// NotifyUserGesture is the first-interaction hook. It unlocks audio
// once per session; later calls are no-ops.
func (a *Adapter) NotifyUserGesture() {
	a.gestureOnce.Do(func() {
		if err := a.sink.Unlock(); err != nil {
			a.logger.Warn("audio unlock failed", "error", err)
		}
	})
}

// SetVisible handles background/foreground transitions. Hidden with
// continue-in-background enabled keeps emitting keepalives; hidden
// without it suspends the context. Visible resumes a suspended context
// and re-asserts the session with an immediate keepalive, since the
// platform may have torn audio down while hidden.
func (a *Adapter) SetVisible(visible bool) {
	a.mu.Lock()
	a.visible = visible
	a.mu.Unlock()

	if visible {
		if err := a.sink.Resume(); err != nil {
			a.logger.Debug("resume failed", "error", err)
		}
		a.sink.Keepalive()
		return
	}

	if a.continueInBackground {
		a.sink.Keepalive()
		return
	}
	if err := a.sink.Suspend(); err != nil {
		a.logger.Debug("suspend failed", "error", err)
	}
}

// keepaliveLoop holds the platform audio session open while running.
func (a *Adapter) keepaliveLoop() {
	ticker := time.NewTicker(a.keepalive)
	defer ticker.Stop()

	background := time.NewTicker(backgroundKeepaliveInterval)
	defer background.Stop()

	for {
		select {
		case <-ticker.C:
			if a.isVisible() {
				a.sink.Keepalive()
			}
		case <-background.C:
			if !a.isVisible() && a.continueInBackground {
				a.sink.Keepalive()
			}
		case <-a.done:
			return
		}
	}
}

func (a *Adapter) isVisible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visible
}

func (a *Adapter) onBatteryChange(state BatteryState) {
	a.mu.Lock()
	a.battery = state
	a.mu.Unlock()
	a.recomputeTune()
}

func (a *Adapter) onNetworkChange(class NetworkClass) {
	a.mu.Lock()
	a.netQ = class
	a.mu.Unlock()
	a.recomputeTune()
}

// recomputeTune reevaluates the preload posture after any probe change.
func (a *Adapter) recomputeTune() {
	a.mu.Lock()
	tune := ComputeTune(a.netQ, a.battery, a.lowBatteryPercent)
	changed := tune != a.tune
	a.tune = tune
	onTune := a.onTune
	a.mu.Unlock()

	if !changed {
		return
	}
	a.logger.Info("adaptation tune changed",
		"preload_all", tune.PreloadAll,
		"buffer", tune.BufferSize,
		"low_latency", tune.LowLatency)
	a.sink.SetPreloadAll(tune.PreloadAll)
	if onTune != nil {
		onTune(tune)
	}
}

// Tune returns the current posture.
func (a *Adapter) Tune() Tune {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tune
}

// Battery returns the last probe reading.
func (a *Adapter) Battery() BatteryState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.battery
}

// Network returns the last classification.
func (a *Adapter) Network() NetworkClass {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.netQ
}

// Stop halts the keep-alive loop and closes the probes. Idempotent.
func (a *Adapter) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		if a.power != nil {
			_ = a.power.Close()
		}
		if a.network != nil {
			_ = a.network.Close()
		}
	})
}
