// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultVolume        = 80
	DefaultSampleRate    = 44100
	DefaultBaseURL       = "https://assets.cuebell.dev/audio"
	DefaultExtension     = "wav"
	DefaultBufferDur     = Duration(100 * time.Millisecond)
	DefaultKeepalive     = Duration(29 * time.Second)
	DefaultLowBatteryPct = 20
)

// Duration is a time.Duration that unmarshals from human-readable
// strings like "5s" or "100ms", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '100ms' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the cuebell configuration.
type Config struct {
	Audio  AudioConfig  `toml:"audio"`
	Assets AssetsConfig `toml:"assets"`
	Adapt  AdaptConfig  `toml:"adapt"`
}

// AudioConfig holds engine-level playback settings.
type AudioConfig struct {
	Enabled      bool     `toml:"enabled"`
	Volume       int      `toml:"volume"` // 0-100
	Muted        bool     `toml:"muted"`
	SynthEnabled bool     `toml:"synth_enabled"` // synthetic tone tier of last resort
	SampleRate   int      `toml:"sample_rate"`
	Buffer       Duration `toml:"buffer"` // output device buffer
}

// AssetsConfig holds audio asset source settings.
type AssetsConfig struct {
	BaseURL   string `toml:"base_url"`
	Extension string `toml:"extension"` // wav, ogg or mp3
	CacheDir  string `toml:"cache_dir"` // defaults to XDG cache dir
	Preload   bool   `toml:"preload"`   // decode everything up front
}

// AdaptConfig holds platform adaptation settings.
type AdaptConfig struct {
	ContinueInBackground bool     `toml:"continue_in_background"`
	Keepalive            Duration `toml:"keepalive"`
	LowBatteryPercent    int      `toml:"low_battery_percent"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			Enabled:      true,
			Volume:       DefaultVolume,
			Muted:        false,
			SynthEnabled: true,
			SampleRate:   DefaultSampleRate,
			Buffer:       DefaultBufferDur,
		},
		Assets: AssetsConfig{
			BaseURL:   DefaultBaseURL,
			Extension: DefaultExtension,
			CacheDir:  "",
			Preload:   true,
		},
		Adapt: AdaptConfig{
			ContinueInBackground: false,
			Keepalive:            DefaultKeepalive,
			LowBatteryPercent:    DefaultLowBatteryPct,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "cuebell", "config.toml")
}

// CachePath returns the asset cache directory.
// Uses XDG_CACHE_HOME if set, otherwise ~/.cache.
func CachePath() string {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, "cuebell", "assets")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.Assets.CacheDir == "" {
		cfg.Assets.CacheDir = CachePath()
	}
	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
