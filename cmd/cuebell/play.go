package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuebell/cuebell/internal/assets"
)

var playOpts struct {
	when    time.Duration
	volume  int
	muted   bool
	linger  time.Duration
}

var playCmd = &cobra.Command{
	Use:   "play <bell|beep|warning|announce>",
	Short: "Play one audio cue",
	Long: `Play a single cue through the engine's tier cascade.

The --when flag schedules the cue at an offset from now, the same way a
timer schedules cues at phase transitions:

  cuebell play bell --when 500ms`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cue, err := assets.ParseCue(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := eng.Initialize(ctx); err != nil {
			return fmt.Errorf("engine unusable: %w", err)
		}
		adapter.Start()

		if cmd.Flags().Changed("volume") {
			eng.SetVolume(playOpts.volume)
		}
		eng.SetMuted(playOpts.muted)

		eng.Play(ctx, cue, playOpts.when)

		// Keep the process alive long enough for the cue to finish.
		wait := playOpts.when + playOpts.linger
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return context.Cause(ctx)
		}
		return nil
	},
}

func init() {
	playCmd.Flags().DurationVar(&playOpts.when, "when", 0,
		"Offset from now at which the cue starts")
	playCmd.Flags().IntVar(&playOpts.volume, "volume", 0,
		"Volume percent 0-100 (default: configured volume)")
	playCmd.Flags().BoolVar(&playOpts.muted, "muted", false,
		"Start muted (the cue is suppressed, useful for testing)")
	playCmd.Flags().DurationVar(&playOpts.linger, "linger", 2*time.Second,
		"Time to keep the process alive after the scheduled start")
	rootCmd.AddCommand(playCmd)
}
