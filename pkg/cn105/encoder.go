// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cn105

import (
	"fmt"
	"math"
)

// InfoType selects what an info request asks the unit to report.
type InfoType int

// Info request types, in polling rotation order
const (
	InfoSettings InfoType = iota
	InfoRoomTemp
	InfoUnknown
	InfoTimers
	InfoStatus
	InfoStandby
)

var infoCodes = [...]byte{
	InfoSettings: 0x02,
	InfoRoomTemp: 0x03,
	InfoUnknown:  0x04,
	InfoTimers:   0x05,
	InfoStatus:   0x06,
	InfoStandby:  0x09,
}

var infoNames = [...]string{
	InfoSettings: "SETTINGS",
	InfoRoomTemp: "ROOM_TEMP",
	InfoUnknown:  "UNKNOWN",
	InfoTimers:   "TIMERS",
	InfoStatus:   "STATUS",
	InfoStandby:  "STANDBY",
}

// Code returns payload[0] of the request.
func (t InfoType) Code() byte {
	if t < 0 || int(t) >= len(infoCodes) {
		return infoCodes[InfoSettings]
	}
	return infoCodes[t]
}

func (t InfoType) String() string {
	if t < 0 || int(t) >= len(infoNames) {
		return fmt.Sprintf("InfoType(%d)", int(t))
	}
	return infoNames[t]
}

var (
	fullRotation = []InfoType{InfoSettings, InfoRoomTemp, InfoUnknown, InfoTimers, InfoStatus, InfoStandby}
	fastRotation = []InfoType{InfoSettings, InfoRoomTemp, InfoStatus}
)

// InfoCursor walks the info request rotation. The zero value walks the full
// rotation starting at InfoSettings.
type InfoCursor struct {
	index int
	fast  bool
}

// NewInfoCursor creates a cursor. The fast rotation only polls settings,
// room temperature and status.
func NewInfoCursor(fast bool) *InfoCursor {
	return &InfoCursor{fast: fast}
}

func (c *InfoCursor) rotation() []InfoType {
	if c.fast {
		return fastRotation
	}
	return fullRotation
}

// Next returns the request type to send and advances the cursor.
func (c *InfoCursor) Next() InfoType {
	r := c.rotation()
	if c.index >= len(r) {
		c.index = 0
	}
	t := r[c.index]
	c.index = (c.index + 1) % len(r)
	return t
}

// Peek returns the next request type without advancing.
func (c *InfoCursor) Peek() InfoType {
	r := c.rotation()
	return r[c.index%len(r)]
}

// SetFast switches rotation, restarting it from the beginning.
func (c *InfoCursor) SetFast(fast bool) {
	if c.fast != fast {
		c.fast = fast
		c.index = 0
	}
}

// BuildConnect returns the connect handshake frame.
func BuildConnect() []byte {
	return NewPacket(FrameConnectRequest, []byte{0xCA, 0x01}).Bytes()
}

func newFrame(frameType, command byte) []byte {
	frame := make([]byte, PacketLen)
	frame[0] = StartByte
	frame[1] = frameType
	frame[2] = Version1
	frame[3] = Version2
	frame[4] = payloadLen
	frame[HeaderSize+posCommand] = command
	return frame
}

func seal(frame []byte) []byte {
	frame[len(frame)-1] = Checksum(frame[:len(frame)-1])
	return frame
}

// BuildInfoRequest returns the info request frame for t.
func BuildInfoRequest(t InfoType) []byte {
	return seal(newFrame(FrameInfoRequest, t.Code()))
}

// BuildSettings returns a differential settings frame: only the fields that
// differ between wanted and current are written and flagged in the control bytes.
// With extendedTemp the target temperature is sent in half degrees.
func BuildSettings(wanted, current Settings, extendedTemp bool) []byte {
	frame := newFrame(FrameSetRequest, SetSettings)
	payload := frame[HeaderSize : HeaderSize+payloadLen]

	if wanted.Power != current.Power {
		payload[posPower] = PowerMap.Encode(wanted.Power)
		payload[posControl1] |= ControlPower
	}
	if wanted.Mode != current.Mode {
		payload[posMode] = ModeMap.Encode(wanted.Mode)
		payload[posControl1] |= ControlMode
	}
	if wanted.Temperature != current.Temperature {
		if extendedTemp {
			payload[posTempExtended] = encodeHalfDegrees(wanted.Temperature)
		} else {
			payload[posTemp] = TempMap.Encode(int(math.Round(wanted.Temperature)))
		}
		payload[posControl1] |= ControlTemp
	}
	if wanted.Fan != current.Fan {
		payload[posFan] = FanMap.Encode(wanted.Fan)
		payload[posControl1] |= ControlFan
	}
	if wanted.Vane != current.Vane {
		payload[posVane] = VaneMap.Encode(wanted.Vane)
		payload[posControl1] |= ControlVane
	}
	if wanted.WideVane != current.WideVane {
		payload[posWideVane] = WideVaneMap.Encode(wanted.WideVane)
		payload[posControl2] |= ControlWideVane
	}

	return seal(frame)
}

// BuildRemoteTemperature returns the frame that feeds an external room
// temperature reading to the unit. A value <= 0 returns control to the unit's
// own sensor.
func BuildRemoteTemperature(celsius float64) []byte {
	frame := newFrame(FrameSetRequest, SetRemoteTemp)
	payload := frame[HeaderSize : HeaderSize+payloadLen]
	if celsius > 0 {
		t := RoundHalf(celsius)
		payload[1] = 0x01
		payload[2] = byte(int(3 + (t-10)*2))
		payload[3] = encodeHalfDegrees(t)
	} else {
		payload[1] = 0x00
		payload[3] = 0x80
	}
	return seal(frame)
}

// BuildFunctionsRequest returns the info request for one half of the function table.
func BuildFunctionsRequest(part int) []byte {
	command := byte(GetFunctionsPart1)
	if part == 2 {
		command = GetFunctionsPart2
	}
	return seal(newFrame(FrameInfoRequest, command))
}

// BuildCustom prepends the start byte to data and appends a checksum. The
// result is capped at PacketLen bytes. No validation is done.
func BuildCustom(data []byte) []byte {
	n := len(data) + 2
	if n > PacketLen {
		n = PacketLen
	}
	frame := make([]byte, n)
	frame[0] = StartByte
	copy(frame[1:n-1], data)
	return seal(frame)
}

// RoundHalf rounds t to the nearest 0.5.
func RoundHalf(t float64) float64 {
	return math.Round(t*2) / 2
}

// FahrenheitToCelsius converts and rounds to the nearest 0.5 °C.
func FahrenheitToCelsius(f int) float64 {
	return RoundHalf(float64(f-32) / 1.8)
}

// CelsiusToFahrenheit converts and rounds to the nearest whole degree.
func CelsiusToFahrenheit(c float64) int {
	return int(math.Floor(c*1.8 + 32 + 0.5))
}
