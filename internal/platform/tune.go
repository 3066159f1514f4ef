package platform

import "time"

// NetworkClass buckets the current connection quality.
type NetworkClass string

const (
	NetSlow2G  NetworkClass = "slow-2g"
	Net2G      NetworkClass = "2g"
	Net3G      NetworkClass = "3g"
	Net4G      NetworkClass = "4g"
	NetWifi    NetworkClass = "wifi"
	NetUnknown NetworkClass = "unknown"
)

// BatteryState is one power probe reading.
type BatteryState struct {
	Percent  float64
	Charging bool
	Known    bool
}

// lowBatteryDefault is the percent threshold below which, while not
// charging, the engine drops to low-power behavior.
const lowBatteryDefault = 20

// Tune is the preload/latency posture recomputed on every battery or
// network change.
type Tune struct {
	// PreloadAll decodes every asset up front; false means on-demand.
	PreloadAll bool

	// BufferSize is the output device buffer to request.
	BufferSize time.Duration

	// LowLatency hints that scheduling precision beats battery life.
	LowLatency bool
}

// DefaultTune is the posture on mains power and a good network.
func DefaultTune() Tune {
	return Tune{
		PreloadAll: true,
		BufferSize: 100 * time.Millisecond,
		LowLatency: true,
	}
}

// ComputeTune derives the posture from current conditions. Entering
// low-power mode (battery below threshold, not charging) switches to
// on-demand loading and a larger buffer; exiting restores defaults.
func ComputeTune(net NetworkClass, battery BatteryState, lowBatteryPercent int) Tune {
	if lowBatteryPercent <= 0 {
		lowBatteryPercent = lowBatteryDefault
	}

	tune := DefaultTune()

	if battery.Known && !battery.Charging && battery.Percent < float64(lowBatteryPercent) {
		tune.PreloadAll = false
		tune.BufferSize = 250 * time.Millisecond
		tune.LowLatency = false
	}

	switch net {
	case NetSlow2G, Net2G:
		// Too slow to preload everything; fetch cues as needed.
		tune.PreloadAll = false
	case Net3G:
		// Preload stays on, but don't chase latency over a weak link.
		tune.LowLatency = tune.LowLatency && battery.Charging
	}

	return tune
}
