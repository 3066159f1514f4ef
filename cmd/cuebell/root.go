// Package main provides the CLI entrypoint for cuebell.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuebell/cuebell/internal/config"
	"github.com/cuebell/cuebell/internal/engine"
	"github.com/cuebell/cuebell/internal/platform"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		noSynth    bool
	}
	logger *slog.Logger

	// eng is the single engine instance built at the composition root.
	eng     *engine.Engine
	adapter *platform.Adapter
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cuebell",
	Short: "Audio cue engine for interval workout timers",
	Long: `cuebell plays short, precisely-timed audio cues (bell, beep, warning,
announcements) for interval workout timers.

Playback degrades through three tiers - decoded buffers, a system media
player, and procedural tone synthesis - so a cue never fails loudly.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalOpts.noSynth {
			cfg.Audio.SynthEnabled = false
		}

		caps := platform.Detect(logger)
		eng = engine.New(cfg, logger,
			engine.WithGestureRequired(caps.RequiresUnlockGesture))
		adapter = platform.NewAdapter(caps, eng, logger,
			platform.WithContinueInBackground(cfg.Adapt.ContinueInBackground),
			platform.WithLowBatteryPercent(cfg.Adapt.LowBatteryPercent),
			platform.WithKeepaliveInterval(cfg.Adapt.Keepalive.Duration()))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if adapter != nil {
			adapter.Stop()
		}
		if eng != nil {
			eng.Dispose()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/cuebell/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.noSynth, "no-synth", false,
		"Disable the synthetic tone tier")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}
