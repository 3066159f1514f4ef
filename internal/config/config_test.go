package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Audio.Enabled)
	assert.Equal(t, 80, cfg.Audio.Volume)
	assert.False(t, cfg.Audio.Muted)
	assert.True(t, cfg.Audio.SynthEnabled)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 100*time.Millisecond, cfg.Audio.Buffer.Duration())
	assert.Equal(t, "https://assets.cuebell.dev/audio", cfg.Assets.BaseURL)
	assert.Equal(t, "wav", cfg.Assets.Extension)
	assert.True(t, cfg.Assets.Preload)
	assert.False(t, cfg.Adapt.ContinueInBackground)
	assert.Equal(t, 29*time.Second, cfg.Adapt.Keepalive.Duration())
	assert.Equal(t, 20, cfg.Adapt.LowBatteryPercent)
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	// Use a path that doesn't exist
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Audio.Volume, cfg.Audio.Volume)
	assert.NotEmpty(t, cfg.Assets.CacheDir)
}

func TestLoadConfig_ParsesTOML(t *testing.T) {
	// Create a temporary config file
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[audio]
enabled = true
volume = 55
muted = true
synth_enabled = false
sample_rate = 48000
buffer = "250ms"

[assets]
base_url = "https://cdn.example.com/sounds"
extension = "ogg"
cache_dir = "/tmp/cuebell-test"
preload = false

[adapt]
continue_in_background = true
keepalive = "15s"
low_battery_percent = 10
`
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 55, cfg.Audio.Volume)
	assert.True(t, cfg.Audio.Muted)
	assert.False(t, cfg.Audio.SynthEnabled)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, 250*time.Millisecond, cfg.Audio.Buffer.Duration())
	assert.Equal(t, "https://cdn.example.com/sounds", cfg.Assets.BaseURL)
	assert.Equal(t, "ogg", cfg.Assets.Extension)
	assert.Equal(t, "/tmp/cuebell-test", cfg.Assets.CacheDir)
	assert.False(t, cfg.Assets.Preload)
	assert.True(t, cfg.Adapt.ContinueInBackground)
	assert.Equal(t, 15*time.Second, cfg.Adapt.Keepalive.Duration())
	assert.Equal(t, 10, cfg.Adapt.LowBatteryPercent)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[audio]
volume = 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Audio.Volume)
	assert.Equal(t, DefaultBaseURL, cfg.Assets.BaseURL)
	assert.Equal(t, 29*time.Second, cfg.Adapt.Keepalive.Duration())
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("audio = [broken"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"5s", 5 * time.Second, false},
		{"100ms", 100 * time.Millisecond, false},
		{"250", 250 * time.Millisecond, false}, // bare integers are milliseconds
		{"1m30s", 90 * time.Second, false},
		{"fast", 0, true},
	}
	for _, tt := range tests {
		var d Duration
		err := d.UnmarshalText([]byte(tt.in))
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, d.Duration(), tt.in)
	}
}

func TestDurationMarshal(t *testing.T) {
	data, err := Duration(29 * time.Second).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "29s", string(data))
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Audio.Volume = 42
	cfg.Assets.Extension = "mp3"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Audio.Volume)
	assert.Equal(t, "mp3", loaded.Assets.Extension)
	assert.Equal(t, cfg.Adapt.Keepalive.Duration(), loaded.Adapt.Keepalive.Duration())
}
