// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

var remoteTempCmd = &cobra.Command{
	Use:   "remote-temp CELSIUS",
	Short: "Report an external room temperature to the unit",
	Long: `Send a room temperature measured elsewhere, rounded to half a degree. The
unit regulates against it instead of its own return-air sensor.

A value of 0 or below hands control back to the unit's own sensor.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemoteTemp,
}

var sendCmd = &cobra.Command{
	Use:   "send HEX...",
	Short: "Send a custom frame",
	Long: `Frame the given bytes with the start byte and checksum and send them as-is.
The bytes start at the frame type, for example:

  cn105 --port /dev/ttyUSB0 send 42 01 30 10 02

No validation is done. A malformed frame can leave the unit in an undefined
state.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(remoteTempCmd, sendCmd)
}

func runRemoteTemp(cmd *cobra.Command, args []string) error {
	celsius, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid temperature %q: %w", args[0], err)
	}
	if celsius > cn105.MaxRemoteTemperature {
		return fmt.Errorf("temperature %.1f°C above %.0f°C", celsius, cn105.MaxRemoteTemperature)
	}

	return withEngine(func(ctx context.Context, e *heatpump.Engine) error {
		if err := e.SetRemoteTemperature(ctx, celsius); err != nil {
			return err
		}
		if celsius <= 0 {
			fmt.Printf("Unit returned to its own sensor\n")
		} else {
			fmt.Printf("Remote temperature set to %.1f°C\n", cn105.RoundHalf(celsius))
		}
		return nil
	})
}

// parseHex accepts bytes as separate arguments or run together
func parseHex(args []string) ([]byte, error) {
	joined := strings.ReplaceAll(strings.Join(args, ""), "0x", "")
	data, err := hex.DecodeString(joined)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no bytes given")
	}
	if len(data) > cn105.PacketLen-2 {
		return nil, fmt.Errorf("frame too long: %d bytes (max %d)", len(data), cn105.PacketLen-2)
	}
	return data, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	data, err := parseHex(args)
	if err != nil {
		return err
	}

	return withEngine(func(ctx context.Context, e *heatpump.Engine) error {
		unsubscribe := e.Observe(heatpump.ObserverFuncs{Packet: printFrame})
		defer unsubscribe()
		return e.SendCustomPacket(ctx, data)
	})
}
