// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cn105

import "fmt"

// Settings is the user-controllable state of the unit.
type Settings struct {
	Power       string  `json:"power"`
	Mode        string  `json:"mode"`
	Temperature float64 `json:"temperature"`
	Fan         string  `json:"fan"`
	Vane        string  `json:"vane"`
	WideVane    string  `json:"wideVane"`
	ISee        bool    `json:"iSee"` // read-only
}

// DefaultSettings returns the index-0 value of every table, used before the
// first settings frame has been read.
func DefaultSettings() Settings {
	return Settings{
		Power:       PowerMap.Default(),
		Mode:        ModeMap.Default(),
		Temperature: float64(TempMap.Default()),
		Fan:         FanMap.Default(),
		Vane:        VaneMap.Default(),
		WideVane:    WideVaneMap.Default(),
	}
}

// Timers is the on/off timer state reported by the unit.
type Timers struct {
	Mode                string `json:"mode"`
	OnMinutesSet        int    `json:"onMinutesSet"`
	OnMinutesRemaining  int    `json:"onMinutesRemaining"`
	OffMinutesSet       int    `json:"offMinutesSet"`
	OffMinutesRemaining int    `json:"offMinutesRemaining"`
}

// Status is the read-only operating state of the unit.
type Status struct {
	RoomTemperature     float64 `json:"roomTemperature"`
	Operating           bool    `json:"operating"`
	CompressorFrequency byte    `json:"compressorFrequency"`
	Timers              Timers  `json:"timers"`
}

// Message is a decoded inbound frame. The concrete types are *SettingsMessage,
// *RoomTempMessage, *TimersMessage, *StatusMessage, *FunctionsMessage,
// *UpdateAck, *ConnectAck and *UnknownMessage.
type Message interface {
	Packet() *Packet
}

type base struct {
	packet *Packet
}

func (b base) Packet() *Packet { return b.packet }

// SettingsMessage carries the settings reply (info 0x02).
type SettingsMessage struct {
	base
	Settings Settings
	// Extended is set when the unit reported a half-degree target temperature.
	Extended bool
}

// RoomTempMessage carries the room temperature reply (info 0x03).
type RoomTempMessage struct {
	base
	RoomTemperature float64
	Extended        bool
}

// TimersMessage carries the timer reply (info 0x05).
type TimersMessage struct {
	base
	Timers Timers
}

// StatusMessage carries the operating status reply (info 0x06).
type StatusMessage struct {
	base
	Operating           bool
	CompressorFrequency byte
}

// FunctionsMessage carries one half of the function table (info 0x20/0x22).
type FunctionsMessage struct {
	base
	Part int // 1 or 2
	Data [FunctionPartSize]byte
}

// UpdateAck acknowledges a set request.
type UpdateAck struct{ base }

// ConnectAck acknowledges the connect handshake.
type ConnectAck struct{ base }

// UnknownMessage is a well-formed info reply this package does not interpret
// (0x04, standby 0x09, and anything newer firmware sends).
type UnknownMessage struct{ base }

// Decode interprets a checksum-verified packet.
func Decode(p *Packet) (Message, error) {
	switch p.Type() {
	case FrameSetResponse:
		return &UpdateAck{base{p}}, nil
	case FrameConnectAck:
		return &ConnectAck{base{p}}, nil
	case FrameInfoResponse:
		return decodeInfo(p)
	default:
		return nil, newFrameError(ErrUnknownFrameType, p.Bytes(), "frame type 0x%02X", p.Type())
	}
}

func decodeInfo(p *Packet) (Message, error) {
	data := p.Payload()
	if len(data) == 0 {
		return nil, newFrameError(ErrFraming, p.Bytes(), "empty info reply")
	}

	need := func(n int) error {
		if len(data) < n {
			return newFrameError(ErrTruncatedFrame, p.Bytes(), "info 0x%02X needs %d payload bytes, have %d", data[0], n, len(data))
		}
		return nil
	}

	switch data[0] {
	case InfoSettings.Code():
		if err := need(12); err != nil {
			return nil, err
		}
		return decodeSettings(p), nil

	case InfoRoomTemp.Code():
		if err := need(7); err != nil {
			return nil, err
		}
		m := &RoomTempMessage{base: base{p}}
		if data[6] != 0 {
			m.RoomTemperature = halfDegrees(data[6])
			m.Extended = true
		} else {
			m.RoomTemperature = float64(RoomTempMap.Decode(data[3]))
		}
		return m, nil

	case InfoTimers.Code():
		if err := need(8); err != nil {
			return nil, err
		}
		return &TimersMessage{
			base: base{p},
			Timers: Timers{
				Mode:                TimerModeMap.Decode(data[3]),
				OnMinutesSet:        int(data[4]) * TimerIncrementMinutes,
				OffMinutesSet:       int(data[5]) * TimerIncrementMinutes,
				OnMinutesRemaining:  int(data[6]) * TimerIncrementMinutes,
				OffMinutesRemaining: int(data[7]) * TimerIncrementMinutes,
			},
		}, nil

	case InfoStatus.Code():
		if err := need(5); err != nil {
			return nil, err
		}
		return &StatusMessage{
			base:                base{p},
			CompressorFrequency: data[3],
			Operating:           data[4] != 0,
		}, nil

	case GetFunctionsPart1, GetFunctionsPart2:
		if len(data) != FunctionPartSize+1 {
			return &UnknownMessage{base{p}}, nil
		}
		m := &FunctionsMessage{base: base{p}, Part: 1}
		if data[0] == GetFunctionsPart2 {
			m.Part = 2
		}
		copy(m.Data[:], data[1:])
		return m, nil

	default:
		return &UnknownMessage{base{p}}, nil
	}
}

func decodeSettings(p *Packet) *SettingsMessage {
	data := p.Payload()
	m := &SettingsMessage{base: base{p}}
	s := &m.Settings

	s.Power = PowerMap.Decode(data[3])
	mode := data[4]
	if mode > 0x08 {
		s.ISee = true
		mode -= 0x08
	}
	s.Mode = ModeMap.Decode(mode)

	if data[11] != 0 {
		s.Temperature = halfDegrees(data[11])
		m.Extended = true
	} else {
		s.Temperature = float64(TempMap.Decode(data[5]))
	}

	s.Fan = FanMap.Decode(data[6])
	s.Vane = VaneMap.Decode(data[7])
	s.WideVane = WideVaneMap.Decode(data[10] & 0x0F)
	return m
}

// halfDegrees decodes the biased half-degree encoding: (b - 128) / 2.
func halfDegrees(b byte) float64 {
	return float64(int(b)-128) / 2
}

// encodeHalfDegrees is the inverse of halfDegrees.
func encodeHalfDegrees(t float64) byte {
	return byte(int(t*2) + 128)
}

// String implements fmt.Stringer for log output
func (s Settings) String() string {
	isee := ""
	if s.ISee {
		isee = " iSee"
	}
	return fmt.Sprintf("power=%s mode=%s temp=%.1f fan=%s vane=%s wideVane=%s%s",
		s.Power, s.Mode, s.Temperature, s.Fan, s.Vane, s.WideVane, isee)
}
