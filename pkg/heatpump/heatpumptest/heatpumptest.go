// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package heatpumptest provides an in-memory indoor unit for exercising the
// engine without hardware: a manual clock, a port that records every frame
// written to it, and a Unit that answers frames the way a heat pump does.
//
// None of the types are safe for concurrent use. When the engine is driven by
// a Runner, touch the Unit only from inside Runner.Do.
package heatpumptest

import (
	"bytes"
	"context"
	"time"

	"github.com/Thermoquad/cn105/pkg/cn105"
)

// ============================================================
// Clock
// ============================================================

// Clock is a manual clock. Sleep advances it instantly.
type Clock struct {
	now time.Time
}

// NewClock returns a clock set to 2025-01-01 12:00 UTC.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time { return c.now }

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}

// Advance moves the clock by d, which may be negative.
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// ============================================================
// Port
// ============================================================

// Frame is one write to the port.
type Frame struct {
	Data []byte
	At   time.Time
}

// Port hands written frames to Respond and serves its replies on Read.
// Chunk > 0 limits how many bytes a single Read returns.
type Port struct {
	Clock     interface{ Now() time.Time }
	Sent      []Frame
	Respond   func(frame []byte) [][]byte
	Chunk     int
	Baud      int
	BaudRates []int
	ReadErr   error
	WriteErr  error

	inbox bytes.Buffer
}

func (p *Port) Read(b []byte) (int, error) {
	if p.ReadErr != nil {
		return 0, p.ReadErr
	}
	if p.inbox.Len() == 0 {
		return 0, nil
	}
	if p.Chunk > 0 && len(b) > p.Chunk {
		b = b[:p.Chunk]
	}
	return p.inbox.Read(b)
}

func (p *Port) Write(b []byte) (int, error) {
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}
	frame := append([]byte(nil), b...)
	var at time.Time
	if p.Clock != nil {
		at = p.Clock.Now()
	}
	p.Sent = append(p.Sent, Frame{Data: frame, At: at})
	if p.Respond != nil {
		for _, reply := range p.Respond(frame) {
			p.inbox.Write(reply)
		}
	}
	return len(b), nil
}

func (p *Port) SetReadTimeout(time.Duration) error { return nil }

func (p *Port) SetBaudRate(baud int) error {
	p.Baud = baud
	p.BaudRates = append(p.BaudRates, baud)
	return nil
}

// Inject queues raw bytes as if the unit had sent them.
func (p *Port) Inject(data []byte) { p.inbox.Write(data) }

// SentOfType returns every written frame with the given type and, unless
// command is zero, the given first payload byte.
func (p *Port) SentOfType(frameType, command byte) [][]byte {
	var out [][]byte
	for _, f := range p.Sent {
		if f.Data[1] == frameType && (command == 0 || f.Data[5] == command) {
			out = append(out, f.Data)
		}
	}
	return out
}

// ============================================================
// Unit
// ============================================================

// Unit answers frames the way an indoor unit does. It acknowledges the first
// connect frame of each handshake pair and keeps its own settings as wire
// bytes.
type Unit struct {
	Port *Port

	Baud           int // 0 answers at any rate
	Silent         bool
	IgnoreUpdates  bool
	IgnoreFunction map[byte]bool

	Power, Mode, Temp, Fan, Vane, WideVane byte
	ISee                                   bool
	Extended                               bool
	ExtTemp                                byte
	RoomTemp                               byte
	Operating                              byte
	Compressor                             byte
	Timers                                 [5]byte
	Functions                              [2][cn105.FunctionPartSize]byte
	RemoteTemp                             []byte

	skipConnect bool
}

// NewUnit returns a unit that is on, heating to 22 °C in a 20 °C room. Its
// function table holds codes 101-114 set to 1 and 115-128 set to 2.
func NewUnit(clock interface{ Now() time.Time }) *Unit {
	u := &Unit{
		Power:    0x01, // ON
		Mode:     0x01, // HEAT
		Temp:     0x09, // 22
		Fan:      0x00, // AUTO
		Vane:     0x00, // AUTO
		WideVane: 0x03, // |
		RoomTemp: 0x0A, // 20
	}
	for i := 0; i < cn105.FunctionPartSize-1; i++ {
		u.Functions[0][i] = byte((1+i)<<2 | 1)
		u.Functions[1][i] = byte((15+i)<<2 | 2)
	}
	u.Port = &Port{Clock: clock, Respond: u.respond}
	return u
}

// Reply builds an inbound frame with a 16-byte payload starting with fields.
func Reply(frameType byte, fields ...byte) []byte {
	payload := make([]byte, 16)
	copy(payload, fields)
	return cn105.NewPacket(frameType, payload).Bytes()
}

// SettingsReply is the unit's answer to a settings info request.
func (u *Unit) SettingsReply() []byte {
	mode := u.Mode
	if u.ISee {
		mode += 0x08
	}
	var ext byte
	if u.Extended {
		ext = u.ExtTemp
	}
	return Reply(cn105.FrameInfoResponse, 0x02, 0, 0, u.Power, mode, u.Temp, u.Fan, u.Vane, 0, 0, u.WideVane, ext)
}

func (u *Unit) respond(frame []byte) [][]byte {
	if u.Silent || (u.Baud != 0 && u.Port.Baud != u.Baud) {
		return nil
	}
	if len(frame) < 6 {
		return nil
	}

	switch frame[1] {
	case cn105.FrameConnectRequest:
		if u.skipConnect {
			u.skipConnect = false
			return nil
		}
		u.skipConnect = true
		return [][]byte{cn105.NewPacket(cn105.FrameConnectAck, []byte{0x00}).Bytes()}

	case cn105.FrameSetRequest:
		// short frames are not answered, as on a real unit
		payload := frame[cn105.HeaderSize : len(frame)-1]
		if len(payload) < 16 {
			return nil
		}
		switch payload[0] {
		case cn105.SetSettings:
			if u.IgnoreUpdates {
				return nil
			}
			u.applySettings(payload)
		case cn105.SetRemoteTemp:
			u.RemoteTemp = append([]byte(nil), payload[:4]...)
		case cn105.SetFunctionsPart1:
			copy(u.Functions[0][:], payload[1:])
		case cn105.SetFunctionsPart2:
			copy(u.Functions[1][:], payload[1:])
		}
		return [][]byte{Reply(cn105.FrameSetResponse)}

	case cn105.FrameInfoRequest:
		code := frame[5]
		switch code {
		case 0x02:
			return [][]byte{u.SettingsReply()}
		case 0x03:
			return [][]byte{Reply(cn105.FrameInfoResponse, 0x03, 0, 0, u.RoomTemp)}
		case 0x05:
			return [][]byte{Reply(cn105.FrameInfoResponse, append([]byte{0x05, 0, 0}, u.Timers[:]...)...)}
		case 0x06:
			return [][]byte{Reply(cn105.FrameInfoResponse, 0x06, 0, 0, u.Compressor, u.Operating)}
		case cn105.GetFunctionsPart1, cn105.GetFunctionsPart2:
			if u.IgnoreFunction[code] {
				return nil
			}
			part := u.Functions[0]
			if code == cn105.GetFunctionsPart2 {
				part = u.Functions[1]
			}
			return [][]byte{Reply(cn105.FrameInfoResponse, append([]byte{code}, part[:]...)...)}
		default:
			return [][]byte{Reply(cn105.FrameInfoResponse, code)}
		}
	}
	return nil
}

func (u *Unit) applySettings(payload []byte) {
	c1, c2 := payload[1], payload[2]
	if c1&cn105.ControlPower != 0 {
		u.Power = payload[3]
	}
	if c1&cn105.ControlMode != 0 {
		u.Mode = payload[4]
	}
	if c1&cn105.ControlTemp != 0 {
		if payload[14] != 0 {
			u.ExtTemp = payload[14]
		} else {
			u.Temp = payload[5]
		}
	}
	if c1&cn105.ControlFan != 0 {
		u.Fan = payload[6]
	}
	if c1&cn105.ControlVane != 0 {
		u.Vane = payload[7]
	}
	if c2&cn105.ControlWideVane != 0 {
		u.WideVane = payload[13]
	}
}
