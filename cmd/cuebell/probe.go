package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuebell/cuebell/internal/platform"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Print detected platform capabilities and adaptation state",
	RunE: func(cmd *cobra.Command, args []string) error {
		caps := platform.Detect(logger)
		fmt.Printf("audio device:    %v\n", caps.HasAudioDevice)
		fmt.Printf("unlock gesture:  %v\n", caps.RequiresUnlockGesture)
		fmt.Printf("power probe:     %v\n", caps.HasPowerProbe)
		fmt.Printf("network probe:   %v\n", caps.HasNetworkProbe)

		if caps.HasPowerProbe {
			if probe, err := platform.NewPowerProbe(logger); err == nil {
				if state, err := probe.Read(); err == nil {
					fmt.Printf("battery:         %.0f%% (charging: %v)\n", state.Percent, state.Charging)
				}
				_ = probe.Close()
			}
		}
		if caps.HasNetworkProbe {
			if probe, err := platform.NewNetworkProbe(logger); err == nil {
				fmt.Printf("network class:   %s\n", probe.Classify())
				_ = probe.Close()
			}
		}

		tune := platform.ComputeTune(platform.NetUnknown, platform.BatteryState{}, cfg.Adapt.LowBatteryPercent)
		fmt.Printf("default tune:    preload_all=%v buffer=%s low_latency=%v\n",
			tune.PreloadAll, tune.BufferSize, tune.LowLatency)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
