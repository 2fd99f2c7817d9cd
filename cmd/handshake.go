// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

var handshakeTimeout int

var handshakeCmd = &cobra.Command{
	Use:   "handshake",
	Short: "Test the link by performing the CN105 connect handshake",
	Long: `Send the connect frame, wait for the unit's acknowledgement and read the
settings once.

The handshake is tried at the configured baud rate, then at the fallback rate.

Exit codes:
  0 - Handshake acknowledged
  1 - Timeout reached without an acknowledgement
  2 - Connection error

Useful for checking wiring, or connectivity to a WebSocket serial bridge.`,
	RunE: runHandshake,
}

func init() {
	rootCmd.AddCommand(handshakeCmd)
	handshakeCmd.Flags().IntVar(&handshakeTimeout, "timeout", 15, "Timeout in seconds for the whole test")
}

func runHandshake(cmd *cobra.Command, args []string) error {
	engine, conn, connInfo, err := newEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("cn105 - Handshake Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", handshakeTimeout)
	fmt.Printf("Connecting...\n\n")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(handshakeTimeout)*time.Second)
	defer cancel()

	start := time.Now()
	err = engine.Connect(ctx)
	switch {
	case err == nil:
	case errors.Is(err, heatpump.ErrHandshakeTimeout), errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No acknowledgement within %d seconds\n", handshakeTimeout)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("SUCCESS: Handshake acknowledged after %s\n", time.Since(start).Truncate(time.Millisecond))
	fmt.Printf("  Baud rate: %d\n", engine.BaudRate())

	if _, err := engine.Request(ctx, cn105.InfoSettings); err != nil {
		fmt.Printf("  Settings:  not read (%v)\n", err)
	} else {
		fmt.Printf("  Settings:  %s\n", engine.Settings())
	}
	os.Exit(0)
	return nil
}
