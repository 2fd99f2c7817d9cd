// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/cn105/internal/config"
	"github.com/Thermoquad/cn105/internal/logger"
)

var (
	configPath string
	logLevel   string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Offline mode
	simulate bool

	// cfg is the merged file and flag configuration, set before any command runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cn105",
	Short: "Mitsubishi CN105 heat pump tool",
	Long: `cn105 - talk to a Mitsubishi heat pump over its CN105 serial connector.

Provides one-shot commands to read and change settings, a packet monitor,
an interactive control TUI and an HTTP API server.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 2400]
  WebSocket: --url ws://host/path [--username user]
  Offline:   --simulate

For WebSocket authentication, the password is read from the CN105_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, off)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 2400, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "Talk to a built-in simulated unit instead of hardware")
}

// loadConfig reads the config file, if any, and lets explicit flags override it
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if portName != "" {
		cfg.Serial.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Engine.BaudRate = baudRate
	}
	if wsURL != "" {
		cfg.WebSocket.URL = wsURL
	}
	if wsUsername != "" {
		cfg.WebSocket.Username = wsUsername
	}
	if wsNoSSLVerify {
		cfg.WebSocket.NoSSLVerify = true
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
