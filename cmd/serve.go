// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Thermoquad/cn105/internal/api"
	"github.com/Thermoquad/cn105/internal/history"
	"github.com/Thermoquad/cn105/internal/logger"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

var (
	serveAddr    string
	serveHistory bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a JSON HTTP API for the heat pump",
	Long: `Keep a connection to the unit open, poll it continuously and expose it over
HTTP:

  GET  /api/settings             current and wanted settings
  PUT  /api/settings             change settings (partial JSON object)
  GET  /api/status               room temperature, operation, link statistics
  PUT  /api/remote_temperature   {"celsius": 21.5}, 0 returns to the unit's sensor
  GET  /api/functions            function-code table (cached)
  PUT  /api/functions            {"codes": [{"code": 101, "value": 2}]}
  GET  /api/history              recorded changes (with --history)

Requests are rate limited per client address. With --history every settings
and status change is recorded to the database configured in the history
section of the config file (SQLite by default).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&serveHistory, "history", false, "Record changes to the history database")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveHistory {
		cfg.History.Enabled = true
	}

	engine, conn, connInfo, err := newEngine()
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("Using %s", connInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *gorm.DB
	var recorderDone chan struct{}
	if cfg.History.Enabled {
		db, err = history.Open(cfg.History)
		if err != nil {
			return err
		}
		recorder, err := history.NewRecorder(ctx, db, connInfo)
		if err != nil {
			return err
		}
		engine.Observe(recorder)
		recorderDone = make(chan struct{})
		go func() {
			defer close(recorderDone)
			recorder.Run(ctx)
		}()
		logger.Info("Recording history to %s (session %s)", cfg.History.Driver, recorder.SessionID())
	}

	runner := heatpump.NewRunner(engine, cfg.Server.SyncInterval)
	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- runner.Run(ctx)
	}()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(runner, db, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		fmt.Printf("cn105 - API server\n")
		fmt.Printf("Connection: %s\n", connInfo)
		fmt.Printf("Listening on %s\n", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping services...")
	case err := <-serverErr:
		stop()
		<-runnerDone
		if recorderDone != nil {
			<-recorderDone
		}
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	<-runnerDone
	if recorderDone != nil {
		<-recorderDone
	}
	fmt.Printf("Server stopped\n")
	return nil
}
