package platform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeTuneDefaults(t *testing.T) {
	tune := ComputeTune(NetWifi, BatteryState{}, 20)
	assert.Equal(t, DefaultTune(), tune, "unknown battery on a good network keeps defaults")

	tune = ComputeTune(NetUnknown, BatteryState{Known: true, Charging: true, Percent: 5}, 20)
	assert.Equal(t, DefaultTune(), tune, "charging never counts as low power")
}

func TestComputeTuneLowPower(t *testing.T) {
	battery := BatteryState{Known: true, Charging: false, Percent: 15}

	tune := ComputeTune(NetWifi, battery, 20)
	assert.False(t, tune.PreloadAll)
	assert.Equal(t, 250*time.Millisecond, tune.BufferSize)
	assert.False(t, tune.LowLatency)

	// Exiting low power restores defaults.
	battery.Percent = 55
	assert.Equal(t, DefaultTune(), ComputeTune(NetWifi, battery, 20))
}

func TestComputeTuneThresholdBoundary(t *testing.T) {
	battery := BatteryState{Known: true, Percent: 20}
	assert.True(t, ComputeTune(NetWifi, battery, 20).PreloadAll, "exactly at threshold is not low power")

	battery.Percent = 19.9
	assert.False(t, ComputeTune(NetWifi, battery, 20).PreloadAll)

	// Non-positive thresholds fall back to the default.
	battery.Percent = 15
	assert.False(t, ComputeTune(NetWifi, battery, 0).PreloadAll)
}

func TestComputeTuneSlowNetworks(t *testing.T) {
	good := BatteryState{Known: true, Charging: true, Percent: 90}

	for _, net := range []NetworkClass{NetSlow2G, Net2G} {
		tune := ComputeTune(net, good, 20)
		assert.False(t, tune.PreloadAll, net)
		assert.True(t, tune.LowLatency, net)
	}

	// 3G keeps preload but only chases latency on mains power.
	assert.True(t, ComputeTune(Net3G, good, 20).LowLatency)
	onBattery := BatteryState{Known: true, Charging: false, Percent: 90}
	assert.False(t, ComputeTune(Net3G, onBattery, 20).LowLatency)
	assert.True(t, ComputeTune(Net3G, onBattery, 20).PreloadAll)
}

func TestClassifyConnectionType(t *testing.T) {
	tests := []struct {
		connType string
		want     NetworkClass
	}{
		{"802-11-wireless", NetWifi},
		{"802-3-ethernet", NetWifi},
		{"gsm", Net3G},
		{"cdma", Net2G},
		{"", NetUnknown},
		{"bluetooth", Net4G},
		{"wireguard", Net4G},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyConnectionType(tt.connType), tt.connType)
	}
}
