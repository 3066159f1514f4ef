package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// EngineStatus is the JSON shape printed by the status command.
type EngineStatus struct {
	Volume                int    `json:"volume"`
	Muted                 bool   `json:"muted"`
	Initialized           bool   `json:"initialized"`
	HasNativeAudioSupport bool   `json:"hasNativeAudioSupport"`
	UsingSyntheticAudio   bool   `json:"usingSyntheticAudio"`
	Ready                 bool   `json:"ready"`
	CacheBustToken        string `json:"cacheBustToken"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the engine state as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.Initialize(cmd.Context()); err != nil {
			return fmt.Errorf("engine unusable: %w", err)
		}

		state := eng.GetState()
		out := EngineStatus{
			Volume:                state.Volume,
			Muted:                 state.Muted,
			Initialized:           state.Initialized,
			HasNativeAudioSupport: state.HasNativeAudioSupport,
			UsingSyntheticAudio:   state.UsingSyntheticAudio,
			Ready:                 eng.IsReady(),
			CacheBustToken:        eng.Registry().Token(),
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
