// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

var (
	passive         bool
	errorsOnly      bool
	statsInterval   int
	monitorDuration int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display the CN105 packet log in human-readable format",
	Long: `Connect to the heat pump, run the sync loop and print every frame sent and
received with its decoded payload.

Sent frames are shown in cyan, received frames in green and rejected frames
(checksum, truncation, framing) in red. Link statistics are printed at a
configurable interval.

With --passive nothing is transmitted: bytes on the line are decoded as they
arrive. Use it to sniff a link driven by another controller, or to check that
a WebSocket bridge stays up.

Supports serial, WebSocket and simulated connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&passive, "passive", false, "Only listen, never transmit")
	monitorCmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "Only print rejected frames")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics interval in seconds (0 disables)")
	monitorCmd.Flags().IntVar(&monitorDuration, "duration", 0, "Stop after N seconds (0 runs until interrupted)")
}

var (
	sentColor     = color.New(color.FgCyan)
	receivedColor = color.New(color.FgGreen)
	errorColor    = color.New(color.FgRed, color.Bold)
)

// printFrame prints one frame, coloured by direction
func printFrame(raw []byte, dir cn105.Direction) {
	if errorsOnly {
		return
	}
	c := receivedColor
	if dir == cn105.DirectionSent {
		c = sentColor
	}
	c.Print(cn105.FormatFrame(raw, dir, time.Now()))
}

func printFrameError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	errorColor.Printf("[%s] REJECTED: %v\n", timestamp, err)
}

// monitorContext is cancelled on interrupt or when --duration expires
func monitorContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if monitorDuration <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(monitorDuration)*time.Second)
	return ctx, func() {
		cancel()
		stop()
	}
}

func statsTicker() (<-chan time.Time, func()) {
	if statsInterval <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(time.Duration(statsInterval) * time.Second)
	return t.C, t.Stop
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("cn105 - Packet Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if passive {
		fmt.Printf("Mode: Passive\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, cancel := monitorContext()
	defer cancel()

	if passive {
		return runPassiveMonitor(ctx, conn)
	}
	return runActiveMonitor(ctx, conn)
}

// runActiveMonitor drives the engine and logs what it exchanges
func runActiveMonitor(ctx context.Context, conn Connection) error {
	engine := heatpump.New(conn, cfg.Engine.Options())
	engine.Observe(heatpump.ObserverFuncs{
		Packet: printFrame,
		Connect: func() {
			receivedColor.Printf("[CONNECTED] %d baud\n\n", engine.BaudRate())
		},
	})

	stats, stopStats := statsTicker()
	defer stopStats()

	syncTicker := time.NewTicker(cfg.Server.SyncInterval)
	defer syncTicker.Stop()

	var lastErrors uint64
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(engine.Statistics().String())
			return nil

		case <-stats:
			fmt.Println()
			fmt.Print(engine.Statistics().String())
			fmt.Println()

		case <-syncTicker.C:
			err := engine.Sync(ctx)
			if err != nil && ctx.Err() == nil && !errors.Is(err, heatpump.ErrNotConnected) {
				printFrameError(err)
			}
			// Dropped frames only surface through the counters
			if n := engine.Statistics().Errors(); n > lastErrors {
				printFrameError(fmt.Errorf("%d frame(s) dropped", n-lastErrors))
				lastErrors = n
			}
		}
	}
}

// runPassiveMonitor decodes the raw byte stream without sending anything
func runPassiveMonitor(ctx context.Context, conn Connection) error {
	if err := conn.SetReadTimeout(100 * time.Millisecond); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	decoder := cn105.NewDecoder()
	stats := cn105.NewStatistics()
	buf := make([]byte, 128)

	statsC, stopStats := statsTicker()
	defer stopStats()

	// Sync tracking - ignore decode errors until first valid frame
	synchronized := false
	skippedBeforeSync := 0

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(stats.String())
			return nil
		case <-statsC:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		default:
		}

		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				fmt.Printf("Connection closed\n")
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}

		for i := 0; i < n; i++ {
			packet, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				if synchronized {
					stats.Update(nil, decodeErr)
					printFrameError(decodeErr)
				}
				continue
			}
			if packet == nil {
				if !synchronized {
					skippedBeforeSync = decoder.Skipped()
				}
				continue
			}

			if !synchronized {
				synchronized = true
				if skippedBeforeSync > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", skippedBeforeSync)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}

			// Requests come from the other controller on the line
			switch packet.Type() {
			case cn105.FrameSetRequest, cn105.FrameInfoRequest, cn105.FrameConnectRequest:
				stats.RecordSent()
				printFrame(packet.Bytes(), cn105.DirectionSent)
				continue
			}

			msg, err := cn105.Decode(packet)
			stats.Update(msg, err)
			if err != nil {
				printFrameError(err)
				continue
			}
			printFrame(packet.Bytes(), cn105.DirectionReceived)
		}
	}
}
