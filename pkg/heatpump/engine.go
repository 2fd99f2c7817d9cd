// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package heatpump drives a CN105 heat pump: it performs the handshake, keeps
// the local settings view in sync with the unit, pushes wanted settings as
// differential updates and reads or writes the function-code table.
//
// An Engine is not safe for concurrent use. Use a Runner to share one between
// goroutines.
package heatpump

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/cn105/internal/logger"
	"github.com/Thermoquad/cn105/pkg/cn105"
)

var (
	ErrHandshakeTimeout      = errors.New("handshake timed out")
	ErrNotConnected          = errors.New("not connected")
	ErrUpdateNotAcknowledged = errors.New("update not acknowledged")
	ErrNoReply               = errors.New("no reply")
	ErrFunctionsIncomplete   = errors.New("function table incomplete")
)

// State is the engine's position in the connect/update/sync cycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSendingUpdate
	StateSendingInfoRequest
	StateAwaitingReply
)

var stateNames = [...]string{
	StateDisconnected:       "DISCONNECTED",
	StateConnecting:         "CONNECTING",
	StateConnected:          "CONNECTED",
	StateSendingUpdate:      "SENDING_UPDATE",
	StateSendingInfoRequest: "SENDING_INFO_REQUEST",
	StateAwaitingReply:      "AWAITING_REPLY",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Options configures an Engine. Start from DefaultOptions.
type Options struct {
	BaudRate         int
	FallbackBaudRate int

	// SendInterval is the minimum spacing between any two transmitted frames.
	SendInterval time.Duration
	// InfoInterval is the minimum spacing before a passive info request.
	InfoInterval time.Duration
	// ReconnectAfter is how many send intervals may pass without a reply
	// before Sync reconnects.
	ReconnectAfter int

	ConnectSettle      time.Duration
	ConnectRepeatDelay time.Duration
	ConnectTimeout     time.Duration
	ReplyTimeout       time.Duration
	PollInterval       time.Duration
	FrameTimeout       time.Duration

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// GracePeriod protects a local change from being overwritten by the
	// unit's state when external updates are tracked.
	GracePeriod time.Duration
	// FunctionReadRetries bounds the extra reads GetFunctions makes.
	FunctionReadRetries int

	AutoUpdate     bool
	ExternalUpdate bool
	FastSync       bool

	Clock Clock
}

// DefaultOptions returns the timing the unit is known to tolerate.
func DefaultOptions() Options {
	return Options{
		BaudRate:            2400,
		FallbackBaudRate:    9600,
		SendInterval:        1000 * time.Millisecond,
		InfoInterval:        2000 * time.Millisecond,
		ReconnectAfter:      10,
		ConnectSettle:       2000 * time.Millisecond,
		ConnectRepeatDelay:  1100 * time.Millisecond,
		ConnectTimeout:      2000 * time.Millisecond,
		ReplyTimeout:        2000 * time.Millisecond,
		PollInterval:        50 * time.Millisecond,
		FrameTimeout:        500 * time.Millisecond,
		BackoffInitial:      1 * time.Second,
		BackoffMax:          30 * time.Second,
		GracePeriod:         30 * time.Second,
		FunctionReadRetries: 5,
	}
}

// Engine is one session with one heat pump.
type Engine struct {
	port   Port
	opts   Options
	clock  Clock
	reader *frameReader
	store  *SettingsStore
	cursor *cn105.InfoCursor
	hub    *Hub
	stats  *cn105.Statistics

	status       cn105.Status
	functions    cn105.FunctionTable
	state        State
	connected    bool
	extendedTemp bool
	baudRate     int

	autoUpdate     bool
	externalUpdate bool

	lastSend    time.Time
	lastRecv    time.Time
	backoff     time.Duration
	nextAttempt time.Time
}

// New creates an engine on port. The port is not touched until Connect.
func New(port Port, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = defaults.FrameTimeout
	}
	if opts.ReconnectAfter <= 0 {
		opts.ReconnectAfter = defaults.ReconnectAfter
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = defaults.BackoffInitial
	}
	if opts.BackoffMax < opts.BackoffInitial {
		opts.BackoffMax = opts.BackoffInitial
	}

	e := &Engine{
		port:           port,
		opts:           opts,
		clock:          opts.Clock,
		store:          NewSettingsStore(opts.Clock, opts.GracePeriod),
		cursor:         cn105.NewInfoCursor(opts.FastSync),
		hub:            NewHub(),
		stats:          cn105.NewStatistics(),
		autoUpdate:     opts.AutoUpdate,
		externalUpdate: opts.ExternalUpdate,
	}
	e.reader = newFrameReader(port, e.clock, opts.PollInterval, opts.FrameTimeout, e.frameError)
	return e
}

// Observe subscribes o to engine notifications.
func (e *Engine) Observe(o Observer) (unsubscribe func()) {
	return e.hub.Subscribe(o)
}

// ============================================================
// Connect
// ============================================================

// Connect performs the handshake at the configured bit rate, then once more at
// the fallback rate. On failure the engine stays disconnected and Sync will
// retry with exponential backoff.
func (e *Engine) Connect(ctx context.Context) error {
	e.connected = false

	rates := []int{e.opts.BaudRate}
	if e.opts.FallbackBaudRate != 0 && e.opts.FallbackBaudRate != e.opts.BaudRate {
		rates = append(rates, e.opts.FallbackBaudRate)
	}

	var err error
	for _, rate := range rates {
		logger.Info("Connecting at %d baud", rate)
		if err = e.handshake(ctx, rate); err == nil {
			e.backoff = 0
			e.nextAttempt = time.Time{}
			e.store.Reset()
			logger.Info("Connected at %d baud", rate)
			e.hub.OnConnect()
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		logger.Warn("Handshake at %d baud failed: %v", rate, err)
	}

	e.state = StateDisconnected
	e.armBackoff()
	return err
}

func (e *Engine) handshake(ctx context.Context, rate int) error {
	e.state = StateConnecting

	if setter, ok := e.port.(BaudRateSetter); ok && rate > 0 {
		if err := setter.SetBaudRate(rate); err != nil {
			return fmt.Errorf("failed to set baud rate %d: %w", rate, err)
		}
	}
	if err := e.port.SetReadTimeout(e.opts.PollInterval); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	if err := e.clock.Sleep(ctx, e.opts.ConnectSettle); err != nil {
		return err
	}

	e.reader.reset()
	connect := cn105.BuildConnect()
	if err := e.write(connect); err != nil {
		return err
	}
	if err := e.clock.Sleep(ctx, e.opts.ConnectRepeatDelay); err != nil {
		return err
	}
	if err := e.write(connect); err != nil {
		return err
	}

	e.state = StateAwaitingReply
	msg, err := e.awaitReply(ctx, e.opts.ConnectTimeout, func(p *cn105.Packet) bool {
		return p.Type() == cn105.FrameConnectAck
	})
	if err != nil {
		return err
	}
	if msg == nil {
		e.state = StateConnecting
		return fmt.Errorf("%w at %d baud", ErrHandshakeTimeout, rate)
	}

	e.connected = true
	e.state = StateConnected
	e.baudRate = rate
	e.lastRecv = e.clock.Now()
	return nil
}

func (e *Engine) armBackoff() {
	if e.backoff == 0 {
		e.backoff = e.opts.BackoffInitial
	} else {
		e.backoff *= 2
		if e.backoff > e.opts.BackoffMax {
			e.backoff = e.opts.BackoffMax
		}
	}
	e.nextAttempt = e.clock.Now().Add(e.backoff)
	logger.Debug("Next connection attempt in %s", e.backoff)
}

// ============================================================
// Update and sync
// ============================================================

// CanSend reports whether a frame may be sent now. When it may not, the
// returned duration is how long to wait. info selects the longer interval used
// for passive info requests.
func (e *Engine) CanSend(info bool) (bool, time.Duration) {
	interval := e.opts.SendInterval
	if info {
		interval = e.opts.InfoInterval
	}
	if e.lastSend.IsZero() {
		return true, 0
	}
	elapsed := e.clock.Now().Sub(e.lastSend)
	if elapsed >= interval {
		return true, 0
	}
	return false, interval - elapsed
}

func (e *Engine) waitSend(ctx context.Context, info bool) error {
	if ok, wait := e.CanSend(info); !ok {
		return e.clock.Sleep(ctx, wait)
	}
	return nil
}

// Update sends the wanted settings as a differential frame and waits for the
// unit's acknowledgement. On success wanted is committed into current. On any
// other outcome both views are left as they were and Update may be retried.
func (e *Engine) Update(ctx context.Context) error {
	if !e.connected {
		return ErrNotConnected
	}
	if err := e.waitSend(ctx, false); err != nil {
		return err
	}
	if err := e.drain(ctx); err != nil {
		return err
	}

	wanted := e.store.Wanted()
	frame := cn105.BuildSettings(wanted, e.store.Current(), e.extendedTemp)
	e.state = StateSendingUpdate
	if err := e.write(frame); err != nil {
		return err
	}

	e.state = StateAwaitingReply
	msg, err := e.awaitReply(ctx, e.opts.ReplyTimeout, func(*cn105.Packet) bool { return true })
	e.settle()
	if err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("%w: %w", ErrUpdateNotAcknowledged, ErrNoReply)
	}
	if _, ok := msg.(*cn105.UpdateAck); !ok {
		return fmt.Errorf("%w: got %s", ErrUpdateNotAcknowledged, cn105.FormatFrameType(msg.Packet().Type(), msg.Packet().Command()))
	}

	logger.Info("Update acknowledged: %s", wanted)
	if e.store.Commit() {
		e.hub.OnSettingsChanged(e.store.Current())
	}

	if e.autoUpdate {
		if _, err := e.Request(ctx, cn105.InfoSettings); err != nil {
			logger.Warn("Settings refresh after update failed: %v", err)
		}
	}
	return nil
}

// Request sends one info request and waits for the matching reply, applying
// any other frames that arrive first.
func (e *Engine) Request(ctx context.Context, t cn105.InfoType) (cn105.Message, error) {
	if !e.connected {
		return nil, ErrNotConnected
	}
	if err := e.waitSend(ctx, true); err != nil {
		return nil, err
	}
	e.state = StateSendingInfoRequest
	if err := e.write(cn105.BuildInfoRequest(t)); err != nil {
		return nil, err
	}

	e.state = StateAwaitingReply
	msg, err := e.awaitReply(ctx, e.opts.ReplyTimeout, func(p *cn105.Packet) bool {
		return p.Type() == cn105.FrameInfoResponse && p.Command() == t.Code()
	})
	e.settle()
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("%w to %s request", ErrNoReply, t)
	}
	return msg, nil
}

// Sync is the periodic driver. Each call does at most one of: reconnect,
// apply a pending reply, push wanted settings, or send the next info request.
func (e *Engine) Sync(ctx context.Context) error {
	return e.sync(ctx, nil)
}

// SyncRequest is Sync with an explicit info request type instead of the rotation.
func (e *Engine) SyncRequest(ctx context.Context, t cn105.InfoType) error {
	return e.sync(ctx, &t)
}

func (e *Engine) sync(ctx context.Context, request *cn105.InfoType) error {
	now := e.clock.Now()
	silence := time.Duration(e.opts.ReconnectAfter) * e.opts.SendInterval
	if e.connected && now.Sub(e.lastRecv) > silence {
		logger.Warn("No reply for %s, reconnecting", now.Sub(e.lastRecv).Truncate(time.Millisecond))
		e.connected = false
		e.state = StateDisconnected
	}
	if !e.connected {
		if now.Before(e.nextAttempt) {
			return fmt.Errorf("%w: next attempt in %s", ErrNotConnected, e.nextAttempt.Sub(now))
		}
		return e.Connect(ctx)
	}

	packet, err := e.reader.next(ctx, 0)
	if err != nil {
		return err
	}
	if packet != nil {
		e.handle(packet)
		return nil
	}

	if request == nil && e.autoUpdate && e.store.Initialized() && e.store.Pending() {
		return e.Update(ctx)
	}

	if ok, _ := e.CanSend(true); ok {
		var t cn105.InfoType
		if request != nil {
			t = *request
		} else {
			t = e.cursor.Next()
		}
		e.state = StateSendingInfoRequest
		err := e.write(cn105.BuildInfoRequest(t))
		e.settle()
		return err
	}
	return nil
}

// drain applies every frame already waiting on the port.
func (e *Engine) drain(ctx context.Context) error {
	for {
		packet, err := e.reader.next(ctx, 0)
		if err != nil || packet == nil {
			return err
		}
		e.handle(packet)
	}
}

// awaitReply applies incoming frames until one satisfies match or timeout
// passes. It returns a nil message on timeout.
func (e *Engine) awaitReply(ctx context.Context, timeout time.Duration, match func(*cn105.Packet) bool) (cn105.Message, error) {
	deadline := e.clock.Now().Add(timeout)
	for {
		remaining := deadline.Sub(e.clock.Now())
		if remaining < 0 {
			remaining = 0
		}
		packet, err := e.reader.next(ctx, remaining)
		if err != nil {
			return nil, err
		}
		if packet == nil {
			return nil, nil
		}
		msg := e.handle(packet)
		if msg != nil && match(packet) {
			return msg, nil
		}
		if !e.clock.Now().Before(deadline) {
			return nil, nil
		}
	}
}

func (e *Engine) settle() {
	if e.connected {
		e.state = StateConnected
	}
}

// ============================================================
// Frame I/O
// ============================================================

func (e *Engine) write(frame []byte) error {
	if _, err := e.port.Write(frame); err != nil {
		e.connected = false
		e.state = StateDisconnected
		return fmt.Errorf("write failed: %w", err)
	}
	e.lastSend = e.clock.Now()
	e.stats.RecordSent()
	logger.Debug("-> % X", frame)
	e.hub.OnPacket(frame, cn105.DirectionSent)
	return nil
}

func (e *Engine) frameError(err error) {
	e.stats.Update(nil, err)
	logger.Debug("Dropped frame: %v", err)
}

// handle decodes a received packet and applies it. It returns nil for frames
// that could not be decoded.
func (e *Engine) handle(packet *cn105.Packet) cn105.Message {
	e.lastRecv = e.clock.Now()
	raw := packet.Bytes()
	logger.Debug("<- % X", raw)
	e.hub.OnPacket(raw, cn105.DirectionReceived)

	msg, err := cn105.Decode(packet)
	e.stats.Update(msg, err)
	if err != nil {
		logger.Debug("Ignoring frame: %v", err)
		return nil
	}

	switch m := msg.(type) {
	case *cn105.SettingsMessage:
		if m.Extended && !e.extendedTemp {
			logger.Info("Unit reports half-degree temperatures")
			e.extendedTemp = true
		}
		if e.store.ApplyReceived(m.Settings, e.autoUpdate && e.externalUpdate) {
			e.hub.OnSettingsChanged(m.Settings)
		}

	case *cn105.RoomTempMessage:
		if m.RoomTemperature != e.status.RoomTemperature {
			e.status.RoomTemperature = m.RoomTemperature
			e.hub.OnStatusChanged(e.status)
			e.hub.OnRoomTemperatureChanged(m.RoomTemperature)
		}

	case *cn105.TimersMessage:
		if m.Timers != e.status.Timers {
			e.status.Timers = m.Timers
			e.hub.OnStatusChanged(e.status)
		}

	case *cn105.StatusMessage:
		if m.Operating != e.status.Operating || m.CompressorFrequency != e.status.CompressorFrequency {
			e.status.Operating = m.Operating
			e.status.CompressorFrequency = m.CompressorFrequency
			e.hub.OnStatusChanged(e.status)
		}

	case *cn105.FunctionsMessage:
		e.functions.SetPart(m.Part, m.Data)
	}
	return msg
}

// ============================================================
// Function codes
// ============================================================

func isFunctionsReply(p *cn105.Packet) bool {
	return p.Type() == cn105.FrameInfoResponse &&
		(p.Command() == cn105.GetFunctionsPart1 || p.Command() == cn105.GetFunctionsPart2)
}

// GetFunctions reads both halves of the function-code table. If the table is
// still incomplete after the bounded extra reads, the partial table is
// returned with ErrFunctionsIncomplete.
func (e *Engine) GetFunctions(ctx context.Context) (cn105.FunctionTable, error) {
	if !e.connected {
		return cn105.FunctionTable{}, ErrNotConnected
	}
	e.functions.Clear()

	for _, part := range []int{1, 2} {
		if err := e.waitSend(ctx, false); err != nil {
			return e.functions, err
		}
		e.state = StateSendingInfoRequest
		if err := e.write(cn105.BuildFunctionsRequest(part)); err != nil {
			return e.functions, err
		}
		e.state = StateAwaitingReply
		_, err := e.awaitReply(ctx, e.opts.ReplyTimeout, isFunctionsReply)
		e.settle()
		if err != nil {
			return e.functions, err
		}
	}

	for i := 0; i < e.opts.FunctionReadRetries && !e.functions.Valid(); i++ {
		if _, err := e.awaitReply(ctx, e.opts.ReplyTimeout, isFunctionsReply); err != nil {
			return e.functions, err
		}
	}

	if !e.functions.Valid() {
		return e.functions, ErrFunctionsIncomplete
	}
	return e.functions, nil
}

// SetFunctions writes a complete table back to the unit. Acknowledgements are
// read but not required.
func (e *Engine) SetFunctions(ctx context.Context, table *cn105.FunctionTable) error {
	if !e.connected {
		return ErrNotConnected
	}
	frames, err := cn105.BuildFunctionsWrite(table)
	if err != nil {
		return err
	}

	for i, frame := range frames {
		if err := e.waitSend(ctx, false); err != nil {
			return err
		}
		e.state = StateSendingUpdate
		if err := e.write(frame); err != nil {
			return err
		}
		e.state = StateAwaitingReply
		msg, err := e.awaitReply(ctx, e.opts.ReplyTimeout, func(p *cn105.Packet) bool {
			return p.Type() == cn105.FrameSetResponse
		})
		e.settle()
		if err != nil {
			return err
		}
		if msg == nil {
			logger.Warn("No acknowledgement for function table part %d", i+1)
		}
	}
	e.functions = *table
	return nil
}

// Functions returns the table from the last GetFunctions.
func (e *Engine) Functions() cn105.FunctionTable {
	return e.functions
}

// ============================================================
// Other frames
// ============================================================

// SetRemoteTemperature reports an external room temperature to the unit. A
// value <= 0 returns control to the unit's own sensor.
func (e *Engine) SetRemoteTemperature(ctx context.Context, celsius float64) error {
	if !e.connected {
		return ErrNotConnected
	}
	if err := e.waitSend(ctx, false); err != nil {
		return err
	}
	return e.write(cn105.BuildRemoteTemperature(celsius))
}

// SendCustomPacket frames data with a start byte and checksum and sends it
// without validation. Malformed data can leave the unit in an undefined state.
func (e *Engine) SendCustomPacket(ctx context.Context, data []byte) error {
	if !e.connected {
		return ErrNotConnected
	}
	if err := e.waitSend(ctx, false); err != nil {
		return err
	}
	return e.write(cn105.BuildCustom(data))
}

// ============================================================
// Settings
// ============================================================

func (e *Engine) SetPower(v string) { e.store.SetPower(v) }
func (e *Engine) SetPowerOn(on bool) { e.store.SetPowerOn(on) }
func (e *Engine) SetMode(v string) { e.store.SetMode(v) }
func (e *Engine) SetFan(v string) { e.store.SetFan(v) }
func (e *Engine) SetVane(v string) { e.store.SetVane(v) }
func (e *Engine) SetWideVane(v string) { e.store.SetWideVane(v) }

// SetTemperature sets the wanted target in °C. Half degrees are kept once the
// unit has reported a half-degree temperature.
func (e *Engine) SetTemperature(celsius float64) {
	e.store.SetTemperature(celsius, e.extendedTemp)
}

// SetSettings replaces every writable wanted field.
func (e *Engine) SetSettings(s cn105.Settings) {
	e.store.SetSettings(s, e.extendedTemp)
}

// Settings returns the unit's last reported settings.
func (e *Engine) Settings() cn105.Settings { return e.store.Current() }

// WantedSettings returns the settings waiting to be pushed.
func (e *Engine) WantedSettings() cn105.Settings { return e.store.Wanted() }

// Pending reports whether wanted settings differ from the unit's.
func (e *Engine) Pending() bool { return e.store.Pending() }

func (e *Engine) Status() cn105.Status { return e.status }
func (e *Engine) RoomTemperature() float64 { return e.status.RoomTemperature }
func (e *Engine) Operating() bool { return e.status.Operating }
func (e *Engine) PowerOn() bool { return e.store.Current().Power == cn105.PowerOn }
func (e *Engine) ISee() bool { return e.store.Current().ISee }
func (e *Engine) Connected() bool { return e.connected }
func (e *Engine) State() State { return e.state }
func (e *Engine) BaudRate() int { return e.baudRate }
func (e *Engine) ExtendedTemperature() bool { return e.extendedTemp }
func (e *Engine) Statistics() *cn105.Statistics { return e.stats }

// EnableAutoUpdate makes Sync push pending settings on its own.
func (e *Engine) EnableAutoUpdate() { e.autoUpdate = true }

func (e *Engine) DisableAutoUpdate() { e.autoUpdate = false }

// EnableExternalUpdate lets changes made on another remote replace wanted
// settings once the grace period has passed. Only effective with auto-update.
func (e *Engine) EnableExternalUpdate() { e.externalUpdate = true }

func (e *Engine) DisableExternalUpdate() { e.externalUpdate = false }

// SetFastSync restricts the info rotation to settings, room temperature and status.
func (e *Engine) SetFastSync(fast bool) { e.cursor.SetFast(fast) }
