// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

// withEngine connects to the unit, reads its settings once so the wanted view
// is initialised, then runs fn. Used by the one-shot commands.
func withEngine(fn func(ctx context.Context, e *heatpump.Engine) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine, conn, connInfo, err := newEngine()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := engine.Connect(ctx); err != nil {
		return fmt.Errorf("%s: %w", connInfo, err)
	}
	if _, err := engine.Request(ctx, cn105.InfoSettings); err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	return fn(ctx, engine)
}

// printSettings prints a settings block the way the get command shows it
func printSettings(title string, s cn105.Settings) {
	fmt.Printf("%s\n", title)
	fmt.Printf("  Power:       %s\n", s.Power)
	fmt.Printf("  Mode:        %s\n", s.Mode)
	fmt.Printf("  Temperature: %.1f°C\n", s.Temperature)
	fmt.Printf("  Fan:         %s\n", s.Fan)
	fmt.Printf("  Vane:        %s\n", s.Vane)
	fmt.Printf("  Wide Vane:   %s\n", s.WideVane)
	if s.ISee {
		fmt.Printf("  i-see:       active\n")
	}
}

func printStatus(s cn105.Status) {
	fmt.Printf("Status\n")
	fmt.Printf("  Room:        %.1f°C\n", s.RoomTemperature)
	fmt.Printf("  Operating:   %t\n", s.Operating)
	fmt.Printf("  Compressor:  %d Hz\n", s.CompressorFrequency)
	if s.Timers.Mode != cn105.TimerNone && s.Timers.Mode != "" {
		fmt.Printf("  Timers:      %s (on %d/%d min, off %d/%d min)\n", s.Timers.Mode,
			s.Timers.OnMinutesRemaining, s.Timers.OnMinutesSet,
			s.Timers.OffMinutesRemaining, s.Timers.OffMinutesSet)
	}
}

// choice validates v against a wire table, case-insensitively
func choice(name, v string, table cn105.ValueMap[string]) (string, error) {
	upper := strings.ToUpper(v)
	if table.Contains(upper) {
		return upper, nil
	}
	return "", fmt.Errorf("invalid %s %q (valid: %s)", name, v, strings.Join(table.Values(), ", "))
}
