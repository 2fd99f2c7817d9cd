// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatpump

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump/heatpumptest"
)

func connectedEngine(t *testing.T, configure ...func(*Options)) (*Engine, *heatpumptest.Unit, *heatpumptest.Clock) {
	t.Helper()
	clock := heatpumptest.NewClock()
	unit := heatpumptest.NewUnit(clock)
	opts := testOptions(clock)
	for _, f := range configure {
		f(&opts)
	}
	e := New(unit.Port, opts)
	require.NoError(t, e.Connect(context.Background()))
	return e, unit, clock
}

// ============================================================
// Connect
// ============================================================

func TestConnect_Handshake(t *testing.T) {
	clock := heatpumptest.NewClock()
	unit := heatpumptest.NewUnit(clock)
	e := New(unit.Port, testOptions(clock))
	rec := &recorder{}
	e.Observe(rec.observer())

	assert.Equal(t, StateDisconnected, e.State())
	require.NoError(t, e.Connect(context.Background()))

	connects := unit.Port.SentOfType(cn105.FrameConnectRequest, 0)
	require.Len(t, connects, 2, "connect frame is sent twice")
	for _, f := range connects {
		assert.Equal(t, []byte{0xFC, 0x5A, 0x01, 0x30, 0x02, 0xCA, 0x01, 0xA8}, f)
	}
	assert.True(t, e.Connected())
	assert.Equal(t, StateConnected, e.State())
	assert.Equal(t, 2400, e.BaudRate())
	assert.Equal(t, []int{2400}, unit.Port.BaudRates)
	assert.Equal(t, 1, rec.connects)
}

func TestConnect_RepeatDelay(t *testing.T) {
	clock := heatpumptest.NewClock()
	unit := heatpumptest.NewUnit(clock)
	opts := testOptions(clock)
	opts.ConnectSettle = 2 * time.Second
	opts.ConnectRepeatDelay = 1100 * time.Millisecond
	e := New(unit.Port, opts)
	start := clock.Now()

	require.NoError(t, e.Connect(context.Background()))

	sent := unit.Port.Sent
	require.Len(t, sent, 2)
	assert.Equal(t, 2*time.Second, sent[0].At.Sub(start))
	assert.Equal(t, 1100*time.Millisecond, sent[1].At.Sub(sent[0].At))
}

func TestConnect_FallbackBaudRate(t *testing.T) {
	clock := heatpumptest.NewClock()
	unit := heatpumptest.NewUnit(clock)
	unit.Baud = 9600
	e := New(unit.Port, testOptions(clock))

	require.NoError(t, e.Connect(context.Background()))

	assert.Equal(t, []int{2400, 9600}, unit.Port.BaudRates)
	assert.Equal(t, 9600, e.BaudRate())
	assert.Len(t, unit.Port.SentOfType(cn105.FrameConnectRequest, 0), 4)
}

func TestConnect_FailureAndBackoff(t *testing.T) {
	ctx := context.Background()
	clock := heatpumptest.NewClock()
	unit := heatpumptest.NewUnit(clock)
	unit.Silent = true
	e := New(unit.Port, testOptions(clock))

	err := e.Connect(ctx)
	require.ErrorIs(t, err, ErrHandshakeTimeout)
	assert.False(t, e.Connected())
	assert.Equal(t, StateDisconnected, e.State())
	assert.Len(t, unit.Port.Sent, 4)

	// backoff 1s
	assert.ErrorIs(t, e.Sync(ctx), ErrNotConnected)
	assert.Len(t, unit.Port.Sent, 4)
	clock.Advance(time.Second)
	assert.ErrorIs(t, e.Sync(ctx), ErrHandshakeTimeout)
	assert.Len(t, unit.Port.Sent, 8)

	// backoff 2s
	clock.Advance(time.Second)
	assert.ErrorIs(t, e.Sync(ctx), ErrNotConnected)
	clock.Advance(time.Second)
	assert.ErrorIs(t, e.Sync(ctx), ErrHandshakeTimeout)
	assert.Len(t, unit.Port.Sent, 12)

	// backoff 4s, unit back online
	unit.Silent = false
	clock.Advance(4 * time.Second)
	require.NoError(t, e.Sync(ctx))
	assert.True(t, e.Connected())
}

func TestConnect_Cancelled(t *testing.T) {
	clock := heatpumptest.NewClock()
	unit := heatpumptest.NewUnit(clock)
	e := New(unit.Port, testOptions(clock))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Connect(ctx), context.Canceled)
	assert.False(t, e.Connected())
}

// ============================================================
// Update
// ============================================================

func TestUpdate_ModeAndFan(t *testing.T) {
	ctx := context.Background()
	e, unit, _ := connectedEngine(t)
	rec := &recorder{}
	e.Observe(rec.observer())

	_, err := e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)
	assert.Equal(t, cn105.Settings{
		Power: cn105.PowerOn, Mode: cn105.ModeHeat, Temperature: 22,
		Fan: cn105.FanAuto, Vane: cn105.VaneAuto, WideVane: cn105.WideVaneCenter,
	}, e.Settings())
	require.Len(t, rec.settings, 1)

	e.SetMode(cn105.ModeCool)
	e.SetFan(cn105.Fan2)
	assert.True(t, e.Pending())
	require.NoError(t, e.Update(ctx))

	updates := unit.Port.SentOfType(cn105.FrameSetRequest, cn105.SetSettings)
	require.Len(t, updates, 1)
	frame := updates[0]
	assert.Equal(t, byte(0x0A), frame[6], "control byte 1")
	assert.Equal(t, byte(0x00), frame[7], "control byte 2")
	assert.Equal(t, byte(0x03), frame[9], "mode")
	assert.Equal(t, byte(0x03), frame[11], "fan")
	for _, i := range []int{8, 10, 12, 18, 19} {
		assert.Zero(t, frame[i], "byte %d", i)
	}

	assert.Equal(t, cn105.ModeCool, e.Settings().Mode)
	assert.Equal(t, cn105.Fan2, e.Settings().Fan)
	assert.False(t, e.Pending())
	assert.Equal(t, byte(0x03), unit.Mode)
	assert.Equal(t, byte(0x03), unit.Fan)
	require.Len(t, rec.settings, 2)
	assert.Equal(t, cn105.ModeCool, rec.settings[1].Mode)
}

func TestUpdate_NotAcknowledged(t *testing.T) {
	ctx := context.Background()
	e, unit, _ := connectedEngine(t)
	_, err := e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)

	unit.IgnoreUpdates = true
	e.SetMode(cn105.ModeCool)
	err = e.Update(ctx)
	assert.ErrorIs(t, err, ErrUpdateNotAcknowledged)
	assert.ErrorIs(t, err, ErrNoReply)

	assert.Equal(t, cn105.ModeHeat, e.Settings().Mode)
	assert.Equal(t, cn105.ModeCool, e.WantedSettings().Mode)
	assert.True(t, e.Pending())
	assert.Equal(t, StateConnected, e.State())

	// safely retryable
	unit.IgnoreUpdates = false
	require.NoError(t, e.Update(ctx))
	assert.Equal(t, cn105.ModeCool, e.Settings().Mode)
}

func TestUpdate_DrainsStaleFrames(t *testing.T) {
	ctx := context.Background()
	e, unit, _ := connectedEngine(t)
	_, err := e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)

	// a late room temperature reply must not be taken as the update's ack
	unit.Port.Inject(heatpumptest.Reply(cn105.FrameInfoResponse, 0x03, 0, 0, 0x0C))
	e.SetPowerOn(false)
	require.NoError(t, e.Update(ctx))

	assert.Equal(t, 22.0, e.RoomTemperature())
	assert.False(t, e.PowerOn())
}

func TestUpdate_AutoUpdateRefreshesSettings(t *testing.T) {
	ctx := context.Background()
	e, unit, _ := connectedEngine(t, func(o *Options) { o.AutoUpdate = true })
	_, err := e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)
	before := len(unit.Port.SentOfType(cn105.FrameInfoRequest, 0x02))

	e.SetVane(cn105.VaneSwing)
	require.NoError(t, e.Update(ctx))

	assert.Len(t, unit.Port.SentOfType(cn105.FrameInfoRequest, 0x02), before+1)
	assert.Equal(t, cn105.VaneSwing, e.Settings().Vane)
}

func TestUpdate_ExtendedTemperature(t *testing.T) {
	ctx := context.Background()
	clock := heatpumptest.NewClock()
	unit := heatpumptest.NewUnit(clock)
	unit.Extended = true
	unit.ExtTemp = 0x94
	e := New(unit.Port, testOptions(clock))
	require.NoError(t, e.Connect(ctx))

	_, err := e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)
	assert.Equal(t, 10.0, e.Settings().Temperature)
	assert.True(t, e.ExtendedTemperature())

	e.SetTemperature(22.5)
	assert.Equal(t, 22.5, e.WantedSettings().Temperature)
	require.NoError(t, e.Update(ctx))

	frame := unit.Port.SentOfType(cn105.FrameSetRequest, cn105.SetSettings)[0]
	assert.Equal(t, byte(cn105.ControlTemp), frame[6])
	assert.Equal(t, byte(0xAD), frame[19])
	assert.Equal(t, byte(0xAD), unit.ExtTemp)
	assert.Equal(t, 22.5, e.Settings().Temperature)
}

func TestUpdate_Throttle(t *testing.T) {
	ctx := context.Background()
	e, unit, clock := connectedEngine(t)

	ok, wait := e.CanSend(false)
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)
	ok, wait = e.CanSend(true)
	assert.False(t, ok)
	assert.Equal(t, 2*time.Second, wait)

	clock.Advance(time.Second)
	ok, _ = e.CanSend(false)
	assert.True(t, ok)
	ok, wait = e.CanSend(true)
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	e.SetMode(cn105.ModeDry)
	require.NoError(t, e.Update(ctx))
	e.SetMode(cn105.ModeAuto)
	require.NoError(t, e.Update(ctx))

	updates := 0
	var last time.Time
	for _, f := range unit.Port.Sent {
		if f.Data[1] != cn105.FrameSetRequest {
			continue
		}
		if updates > 0 {
			assert.GreaterOrEqual(t, f.At.Sub(last), time.Second)
		}
		last = f.At
		updates++
	}
	assert.Equal(t, 2, updates)
}

func TestUpdate_Cancelled(t *testing.T) {
	e, _, _ := connectedEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e.SetMode(cn105.ModeCool)
	assert.ErrorIs(t, e.Update(ctx), context.Canceled)
	assert.Equal(t, cn105.ModeHeat, e.Settings().Mode)
}

func TestUpdate_WriteFailureDisconnects(t *testing.T) {
	e, unit, clock := connectedEngine(t)
	clock.Advance(time.Second)
	unit.Port.WriteErr = errors.New("unplugged")

	assert.Error(t, e.Update(context.Background()))
	assert.False(t, e.Connected())
}

// ============================================================
// Sync
// ============================================================

func syncCodes(t *testing.T, e *Engine, unit *heatpumptest.Unit, clock *heatpumptest.Clock, rounds int) []byte {
	t.Helper()
	for i := 0; i < rounds; i++ {
		require.NoError(t, e.Sync(context.Background()))
		clock.Advance(time.Second)
	}
	var codes []byte
	for _, f := range unit.Port.SentOfType(cn105.FrameInfoRequest, 0) {
		codes = append(codes, f[5])
	}
	return codes
}

func TestSync_Rotation(t *testing.T) {
	e, unit, clock := connectedEngine(t)
	unit.Operating = 1
	unit.Compressor = 40
	rec := &recorder{}
	e.Observe(rec.observer())

	codes := syncCodes(t, e, unit, clock, 16)
	require.GreaterOrEqual(t, len(codes), 7)
	assert.Equal(t, []byte{0x02, 0x03, 0x04, 0x05, 0x06, 0x09, 0x02}, codes[:7])

	assert.Equal(t, 20.0, e.RoomTemperature())
	assert.True(t, e.Operating())
	assert.Equal(t, byte(40), e.Status().CompressorFrequency)
	assert.Equal(t, []float64{20}, rec.roomTemps)
	assert.NotEmpty(t, rec.statuses)
}

func TestSync_FastRotation(t *testing.T) {
	e, unit, clock := connectedEngine(t, func(o *Options) { o.FastSync = true })
	codes := syncCodes(t, e, unit, clock, 16)
	require.GreaterOrEqual(t, len(codes), 7)
	assert.Equal(t, []byte{0x02, 0x03, 0x06, 0x02, 0x03, 0x06, 0x02}, codes[:7])
}

func TestSync_InfoInterval(t *testing.T) {
	e, unit, clock := connectedEngine(t)
	syncCodes(t, e, unit, clock, 12)

	var last time.Time
	for i, f := range unit.Port.Sent {
		if f.Data[1] != cn105.FrameInfoRequest {
			continue
		}
		if !last.IsZero() {
			assert.GreaterOrEqual(t, f.At.Sub(last), 2*time.Second, "request %d", i)
		}
		last = f.At
	}
}

func TestSync_ExplicitRequest(t *testing.T) {
	e, unit, clock := connectedEngine(t)
	clock.Advance(2 * time.Second)
	require.NoError(t, e.SyncRequest(context.Background(), cn105.InfoTimers))

	requests := unit.Port.SentOfType(cn105.FrameInfoRequest, 0)
	require.Len(t, requests, 1)
	assert.Equal(t, byte(0x05), requests[0][5])

	// an explicit request leaves the rotation where it was
	codes := syncCodes(t, e, unit, clock, 4)
	require.GreaterOrEqual(t, len(codes), 2)
	assert.Equal(t, []byte{0x05, 0x02}, codes[:2])
}

func TestSync_AutoUpdateTakesPriority(t *testing.T) {
	ctx := context.Background()
	e, unit, clock := connectedEngine(t, func(o *Options) { o.AutoUpdate = true })
	_, err := e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)

	e.SetPowerOn(false)
	clock.Advance(2 * time.Second)
	require.NoError(t, e.Sync(ctx))

	assert.Len(t, unit.Port.SentOfType(cn105.FrameSetRequest, cn105.SetSettings), 1)
	assert.False(t, e.PowerOn())
	assert.Equal(t, byte(0x00), unit.Power)
}

func TestSync_FirstReadInitialisesWanted(t *testing.T) {
	ctx := context.Background()
	e, unit, clock := connectedEngine(t, func(o *Options) { o.AutoUpdate = true })

	// a change made before the unit has reported is replaced by its state
	e.SetMode(cn105.ModeCool)
	clock.Advance(2 * time.Second)
	require.NoError(t, e.Sync(ctx))
	assert.Empty(t, unit.Port.SentOfType(cn105.FrameSetRequest, cn105.SetSettings))
	assert.Len(t, unit.Port.SentOfType(cn105.FrameInfoRequest, 0x02), 1)

	clock.Advance(time.Second)
	require.NoError(t, e.Sync(ctx))
	assert.Equal(t, cn105.ModeHeat, e.WantedSettings().Mode)
	assert.False(t, e.Pending())
}

func TestConnect_ReconnectReinitialisesWanted(t *testing.T) {
	ctx := context.Background()
	e, unit, _ := connectedEngine(t)
	_, err := e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)
	require.True(t, e.store.Initialized())

	e.SetPowerOn(false)
	require.True(t, e.Pending())

	require.NoError(t, e.Connect(ctx))
	assert.False(t, e.store.Initialized())

	_, err = e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)
	assert.Equal(t, cn105.PowerOn, e.WantedSettings().Power)
	assert.Equal(t, e.Settings(), e.WantedSettings())
	assert.False(t, e.Pending())
	assert.Empty(t, unit.Port.SentOfType(cn105.FrameSetRequest, cn105.SetSettings))
}

func TestSync_ReconnectAfterSilence(t *testing.T) {
	e, unit, clock := connectedEngine(t)
	rec := &recorder{}
	e.Observe(rec.observer())

	clock.Advance(11 * time.Second)
	require.NoError(t, e.Sync(context.Background()))

	assert.Len(t, unit.Port.SentOfType(cn105.FrameConnectRequest, 0), 4)
	assert.Equal(t, 1, rec.connects)
	assert.True(t, e.Connected())
}

func TestSync_CorruptChecksumIgnored(t *testing.T) {
	ctx := context.Background()
	e, unit, _ := connectedEngine(t)
	_, err := e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)
	before := e.Settings()

	unit.Mode = 0x03
	frame := unit.SettingsReply()
	frame[len(frame)-1] ^= 0x55
	unit.Port.Inject(frame)
	require.NoError(t, e.Sync(ctx))

	assert.Equal(t, before, e.Settings())
	assert.Equal(t, uint64(1), e.Statistics().ChecksumErrors)
}

func TestSync_ExternalChangeGracePeriod(t *testing.T) {
	ctx := context.Background()
	e, unit, clock := connectedEngine(t, func(o *Options) {
		o.AutoUpdate = true
		o.ExternalUpdate = true
	})
	_, err := e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)

	e.SetMode(cn105.ModeCool)
	unit.Mode = 0x07 // changed on the IR remote

	clock.Advance(5 * time.Second)
	_, err = e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)
	assert.Equal(t, cn105.ModeFan, e.Settings().Mode)
	assert.Equal(t, cn105.ModeCool, e.WantedSettings().Mode, "local change is protected")

	clock.Advance(30 * time.Second)
	_, err = e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)
	assert.Equal(t, cn105.ModeFan, e.WantedSettings().Mode, "external change wins after the grace period")
	assert.False(t, e.Pending())
}

// ============================================================
// Function codes
// ============================================================

func TestGetFunctions(t *testing.T) {
	e, unit, _ := connectedEngine(t)

	table, err := e.GetFunctions(context.Background())
	require.NoError(t, err)
	assert.True(t, table.Valid())
	assert.Equal(t, unit.Functions[0], table.Part(1))
	assert.Equal(t, unit.Functions[1], table.Part(2))
	assert.Equal(t, 1, table.Value(101))
	assert.Equal(t, 2, table.Value(115))
}

func TestGetFunctions_OutOfOrder(t *testing.T) {
	e, unit, _ := connectedEngine(t)
	unit.IgnoreFunction = map[byte]bool{cn105.GetFunctionsPart2: true}
	part := unit.Functions[1]
	unit.Port.Inject(heatpumptest.Reply(cn105.FrameInfoResponse, append([]byte{cn105.GetFunctionsPart2}, part[:]...)...))

	table, err := e.GetFunctions(context.Background())
	require.NoError(t, err)
	assert.True(t, table.Valid())
}

func TestGetFunctions_Incomplete(t *testing.T) {
	e, unit, _ := connectedEngine(t)
	unit.IgnoreFunction = map[byte]bool{cn105.GetFunctionsPart2: true}

	table, err := e.GetFunctions(context.Background())
	assert.ErrorIs(t, err, ErrFunctionsIncomplete)
	assert.False(t, table.Valid())
	assert.Equal(t, unit.Functions[0], table.Part(1))
}

func TestSetFunctions(t *testing.T) {
	ctx := context.Background()
	e, unit, _ := connectedEngine(t)

	table, err := e.GetFunctions(ctx)
	require.NoError(t, err)
	require.True(t, table.SetValue(101, 3))
	require.NoError(t, e.SetFunctions(ctx, &table))

	assert.Len(t, unit.Port.SentOfType(cn105.FrameSetRequest, cn105.SetFunctionsPart1), 1)
	assert.Len(t, unit.Port.SentOfType(cn105.FrameSetRequest, cn105.SetFunctionsPart2), 1)
	assert.Equal(t, byte(1<<2|3), unit.Functions[0][0])
	stored := e.Functions()
	assert.Equal(t, 3, stored.Value(101))

	var incomplete cn105.FunctionTable
	assert.ErrorIs(t, e.SetFunctions(ctx, &incomplete), cn105.ErrInvalidFunctions)
}

// ============================================================
// Other frames
// ============================================================

func TestSetRemoteTemperature(t *testing.T) {
	e, unit, _ := connectedEngine(t)
	require.NoError(t, e.SetRemoteTemperature(context.Background(), 21.5))
	assert.Equal(t, []byte{0x07, 0x01, 0x1A, 0xAB}, unit.RemoteTemp)

	require.NoError(t, e.SetRemoteTemperature(context.Background(), 0))
	assert.Equal(t, []byte{0x07, 0x00, 0x00, 0x80}, unit.RemoteTemp)
}

func TestSendCustomPacket(t *testing.T) {
	e, unit, _ := connectedEngine(t)
	data := []byte{0x42, 0x01, 0x30, 0x10, 0x06}
	require.NoError(t, e.SendCustomPacket(context.Background(), data))

	last := unit.Port.Sent[len(unit.Port.Sent)-1].Data
	assert.Equal(t, cn105.BuildCustom(data), last)
	assert.Len(t, last, len(data)+2)

	// a truncated settings command is sent as is and left unanswered
	temp, mode, power := unit.Temp, unit.Mode, unit.Power
	short := []byte{cn105.FrameSetRequest, 0x01, 0x30, 0x01, cn105.SetSettings}
	require.NoError(t, e.SendCustomPacket(context.Background(), short))
	assert.Equal(t, cn105.BuildCustom(short), unit.Port.Sent[len(unit.Port.Sent)-1].Data)
	assert.Equal(t, temp, unit.Temp)
	assert.Equal(t, mode, unit.Mode)
	assert.Equal(t, power, unit.Power)

	_, err := e.Request(context.Background(), cn105.InfoSettings)
	require.NoError(t, err)
	assert.Equal(t, 22.0, e.Settings().Temperature)
}

func TestNotConnected(t *testing.T) {
	ctx := context.Background()
	clock := heatpumptest.NewClock()
	e := New(heatpumptest.NewUnit(clock).Port, testOptions(clock))

	assert.ErrorIs(t, e.Update(ctx), ErrNotConnected)
	_, err := e.Request(ctx, cn105.InfoSettings)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = e.GetFunctions(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, e.SetRemoteTemperature(ctx, 20), ErrNotConnected)
	assert.ErrorIs(t, e.SendCustomPacket(ctx, []byte{0x01}), ErrNotConnected)
}

func TestPacketObserver(t *testing.T) {
	e, _, _ := connectedEngine(t)
	rec := &recorder{}
	unsubscribe := e.Observe(rec.observer())

	_, err := e.Request(context.Background(), cn105.InfoRoomTemp)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.sent)
	assert.Equal(t, 1, rec.recv)

	unsubscribe()
	_, err = e.Request(context.Background(), cn105.InfoStatus)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.sent)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AWAITING_REPLY", StateAwaitingReply.String())
	assert.Equal(t, "State(42)", State(42).String())
}
