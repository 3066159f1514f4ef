// Package platform adapts the audio engine to the host environment:
// capability detection, unlock gating, background transitions, and
// battery/network-driven preload tuning.
package platform

import (
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/godbus/dbus/v5"
)

// Capabilities consolidates the runtime feature probes behind one
// interface queried via flags, instead of ad hoc checks at call sites.
type Capabilities struct {
	// HasAudioDevice reports whether a native output device is likely
	// present (sound device nodes or a known system player).
	HasAudioDevice bool

	// RequiresUnlockGesture reports whether the platform demands a user
	// gesture before audio output may start.
	RequiresUnlockGesture bool

	// HasPowerProbe reports whether battery state can be read.
	HasPowerProbe bool

	// HasNetworkProbe reports whether network quality can be classified.
	HasNetworkProbe bool
}

// Detect probes the host once. Every probe is best-effort; failures
// degrade to false flags rather than errors.
func Detect(logger *slog.Logger) Capabilities {
	if logger == nil {
		logger = slog.Default()
	}

	caps := Capabilities{
		RequiresUnlockGesture: requiresGesture(),
	}

	caps.HasAudioDevice = hasAudioDevice()

	if conn, err := dbus.ConnectSystemBus(); err == nil {
		caps.HasPowerProbe = probeName(conn, upowerService)
		caps.HasNetworkProbe = probeName(conn, nmService)
		_ = conn.Close()
	} else {
		logger.Debug("system bus unavailable, power/network probes disabled", "error", err)
	}

	logger.Debug("platform capabilities detected",
		"audio_device", caps.HasAudioDevice,
		"unlock_gesture", caps.RequiresUnlockGesture,
		"power_probe", caps.HasPowerProbe,
		"network_probe", caps.HasNetworkProbe)
	return caps
}

func requiresGesture() bool {
	switch runtime.GOOS {
	case "ios", "android":
		return true
	}
	return false
}

func hasAudioDevice() bool {
	if runtime.GOOS == "linux" {
		if _, err := os.Stat("/dev/snd"); err == nil {
			return true
		}
	}
	for _, bin := range []string{"paplay", "pw-play", "aplay", "afplay", "ffplay"} {
		if _, err := exec.LookPath(bin); err == nil {
			return true
		}
	}
	return false
}

// probeName checks whether a bus name has an owner or can be activated.
func probeName(conn *dbus.Conn, name string) bool {
	var owned bool
	err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, name).Store(&owned)
	return err == nil && owned
}
