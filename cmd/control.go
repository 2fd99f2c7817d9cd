// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/cn105/internal/logger"
	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling the heat pump",
	Long: `Control the heat pump via an interactive terminal UI.

Features:
  - Live settings (reported and wanted) and operating status
  - Edit every setting and send the change as one update
  - Link statistics and an event log
  - Automatic reconnection with backoff when the unit stops answering

Keys:
  up/down, k/j     select a setting
  left/right, h/l  change the selected setting
  space            toggle power
  t                type a target temperature
  enter            send the edited settings
  esc              discard edits
  r                re-read the settings
  q                quit

Supports serial, WebSocket and simulated connections.`,
	Args: cobra.NoArgs,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	engine, conn, connInfo, err := newEngine()
	if err != nil {
		return err
	}
	defer conn.Close()

	// Log lines would tear the alt screen
	logger.SetLevel(logger.OffLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := heatpump.NewRunner(engine, cfg.Server.SyncInterval)
	m := initialControlModel(ctx, runner, connInfo)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Observer callbacks run on the runner goroutine; Send is safe from there
	engine.Observe(heatpump.ObserverFuncs{
		Connect: func() {
			p.Send(controlEventMsg{text: fmt.Sprintf("Connected at %d baud", engine.BaudRate())})
		},
		SettingsChanged: func(s cn105.Settings) {
			p.Send(controlEventMsg{text: "Settings: " + s.String()})
		},
		RoomTemperatureChanged: func(t float64) {
			p.Send(controlEventMsg{text: fmt.Sprintf("Room temperature %.1f°C", t)})
		},
	})

	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- runner.Run(ctx)
	}()

	_, err = p.Run()
	cancel()
	<-runnerDone
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
