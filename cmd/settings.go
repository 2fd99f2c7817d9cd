// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

var getJSON bool

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Read the unit's settings and status",
	Long: `Connect, read the settings, room temperature, timers and operating status
once, and print them.`,
	Args: cobra.NoArgs,
	RunE: runGet,
}

var (
	setPower    string
	setMode     string
	setTemp     float64
	setTempF    int
	setFan      string
	setVane     string
	setWideVane string
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the unit's settings",
	Long: `Connect, apply the given settings and send them as one differential update.
Only the flags given are changed.

Values:
  --power      ON, OFF
  --mode       HEAT, DRY, COOL, FAN, AUTO
  --temp       10-31 °C (whole degrees unless the unit reports half degrees)
  --temp-f     target in °F, converted to the nearest half degree Celsius
  --fan        AUTO, QUIET, 1, 2, 3, 4
  --vane       AUTO, 1, 2, 3, 4, 5, SWING
  --wide-vane  <<, <, |, >, >>, <>, SWING

Example:
  cn105 --port /dev/ttyUSB0 set --power on --mode heat --temp 21`,
	Args: cobra.NoArgs,
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().BoolVar(&getJSON, "json", false, "Print JSON instead of text")

	rootCmd.AddCommand(setCmd)
	setCmd.Flags().StringVar(&setPower, "power", "", "Power (ON, OFF)")
	setCmd.Flags().StringVar(&setMode, "mode", "", "Mode")
	setCmd.Flags().Float64Var(&setTemp, "temp", 0, "Target temperature in °C")
	setCmd.Flags().IntVar(&setTempF, "temp-f", 0, "Target temperature in °F")
	setCmd.Flags().StringVar(&setFan, "fan", "", "Fan speed")
	setCmd.Flags().StringVar(&setVane, "vane", "", "Vertical vane position")
	setCmd.Flags().StringVar(&setWideVane, "wide-vane", "", "Horizontal vane position")
	setCmd.MarkFlagsMutuallyExclusive("temp", "temp-f")
}

func runGet(cmd *cobra.Command, args []string) error {
	return withEngine(func(ctx context.Context, e *heatpump.Engine) error {
		for _, t := range []cn105.InfoType{cn105.InfoRoomTemp, cn105.InfoTimers, cn105.InfoStatus} {
			if _, err := e.Request(ctx, t); err != nil {
				return fmt.Errorf("failed to read %s: %w", t, err)
			}
		}

		if getJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Settings cn105.Settings `json:"settings"`
				Status   cn105.Status   `json:"status"`
			}{e.Settings(), e.Status()})
		}

		printSettings("Settings", e.Settings())
		printStatus(e.Status())
		return nil
	})
}

// wantedFromFlags validates the set flags before anything is sent
func wantedFromFlags(cmd *cobra.Command) (func(*heatpump.Engine) error, error) {
	var apply []func(*heatpump.Engine)
	flags := cmd.Flags()

	if flags.Changed("power") {
		v, err := choice("power", setPower, cn105.PowerMap)
		if err != nil {
			return nil, err
		}
		apply = append(apply, func(e *heatpump.Engine) { e.SetPower(v) })
	}
	if flags.Changed("mode") {
		v, err := choice("mode", setMode, cn105.ModeMap)
		if err != nil {
			return nil, err
		}
		apply = append(apply, func(e *heatpump.Engine) { e.SetMode(v) })
	}
	if flags.Changed("fan") {
		v, err := choice("fan", setFan, cn105.FanMap)
		if err != nil {
			return nil, err
		}
		apply = append(apply, func(e *heatpump.Engine) { e.SetFan(v) })
	}
	if flags.Changed("vane") {
		v, err := choice("vane", setVane, cn105.VaneMap)
		if err != nil {
			return nil, err
		}
		apply = append(apply, func(e *heatpump.Engine) { e.SetVane(v) })
	}
	if flags.Changed("wide-vane") {
		v, err := choice("wide vane", setWideVane, cn105.WideVaneMap)
		if err != nil {
			return nil, err
		}
		apply = append(apply, func(e *heatpump.Engine) { e.SetWideVane(v) })
	}

	temp := setTemp
	if flags.Changed("temp-f") {
		temp = cn105.FahrenheitToCelsius(setTempF)
	}
	hasTemp := flags.Changed("temp") || flags.Changed("temp-f")
	if hasTemp {
		if temp < cn105.MinTemperature || temp > cn105.MaxTemperature {
			return nil, fmt.Errorf("temperature %.1f°C out of range %.0f-%.0f", temp, cn105.MinTemperature, cn105.MaxTemperature)
		}
		apply = append(apply, func(e *heatpump.Engine) { e.SetTemperature(temp) })
	}

	if len(apply) == 0 {
		return nil, fmt.Errorf("nothing to set (see --help)")
	}
	// the usable range depends on the unit, so it is checked once connected
	return func(e *heatpump.Engine) error {
		if hasTemp {
			if err := cn105.CheckTemperature(temp, e.ExtendedTemperature()); err != nil {
				return err
			}
		}
		for _, fn := range apply {
			fn(e)
		}
		return nil
	}, nil
}

func runSet(cmd *cobra.Command, args []string) error {
	apply, err := wantedFromFlags(cmd)
	if err != nil {
		return err
	}

	return withEngine(func(ctx context.Context, e *heatpump.Engine) error {
		if err := apply(e); err != nil {
			return err
		}
		if !e.Pending() {
			fmt.Printf("Unit already matches: %s\n", e.Settings())
			return nil
		}
		if err := e.Update(ctx); err != nil {
			return err
		}
		fmt.Printf("Updated: %s\n", e.Settings())
		return nil
	})
}
