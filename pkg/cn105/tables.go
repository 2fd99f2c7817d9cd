// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cn105

import (
	"errors"
	"fmt"
	"math"
)

// Power values
const (
	PowerOff = "OFF"
	PowerOn  = "ON"
)

// Mode values
const (
	ModeHeat = "HEAT"
	ModeDry  = "DRY"
	ModeCool = "COOL"
	ModeFan  = "FAN"
	ModeAuto = "AUTO"
)

// Fan values
const (
	FanAuto  = "AUTO"
	FanQuiet = "QUIET"
	Fan1     = "1"
	Fan2     = "2"
	Fan3     = "3"
	Fan4     = "4"
)

// Vane values
const (
	VaneAuto  = "AUTO"
	Vane1     = "1"
	Vane2     = "2"
	Vane3     = "3"
	Vane4     = "4"
	Vane5     = "5"
	VaneSwing = "SWING"
)

// Wide vane values
const (
	WideVaneFarLeft  = "<<"
	WideVaneLeft     = "<"
	WideVaneCenter   = "|"
	WideVaneRight    = ">"
	WideVaneFarRight = ">>"
	WideVaneSplit    = "<>"
	WideVaneSwing    = "SWING"
)

// Timer mode values
const (
	TimerNone = "NONE"
	TimerOff  = "OFF"
	TimerOn   = "ON"
	TimerBoth = "BOTH"
)

// Wire tables. These are shared, read-only data.
var (
	PowerMap = NewValueMap(
		[]string{PowerOff, PowerOn},
		[]byte{0x00, 0x01},
	)

	ModeMap = NewValueMap(
		[]string{ModeHeat, ModeDry, ModeCool, ModeFan, ModeAuto},
		[]byte{0x01, 0x02, 0x03, 0x07, 0x08},
	)

	TempMap = NewValueMap(
		[]int{31, 30, 29, 28, 27, 26, 25, 24, 23, 22, 21, 20, 19, 18, 17, 16},
		[]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F},
	)

	FanMap = NewValueMap(
		[]string{FanAuto, FanQuiet, Fan1, Fan2, Fan3, Fan4},
		[]byte{0x00, 0x01, 0x02, 0x03, 0x05, 0x06},
	)

	VaneMap = NewValueMap(
		[]string{VaneAuto, Vane1, Vane2, Vane3, Vane4, Vane5, VaneSwing},
		[]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x07},
	)

	WideVaneMap = NewValueMap(
		[]string{WideVaneFarLeft, WideVaneLeft, WideVaneCenter, WideVaneRight, WideVaneFarRight, WideVaneSplit, WideVaneSwing},
		[]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x08, 0x0C},
	)

	RoomTempMap = NewValueMap(
		[]int{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25,
			26, 27, 28, 29, 30, 31, 32, 33, 34, 35, 36, 37, 38, 39, 40, 41},
		[]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
			0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E, 0x1F},
	)

	TimerModeMap = NewValueMap(
		[]string{TimerNone, TimerOff, TimerOn, TimerBoth},
		[]byte{0x00, 0x01, 0x02, 0x03},
	)
)

// Extended temperature range (0.5 °C resolution)
const (
	MinTemperature = 10.0
	MaxTemperature = 31.0
)

// ErrTemperatureRange is returned for a target temperature the unit cannot
// represent in its current temperature mode.
var ErrTemperatureRange = errors.New("temperature out of range")

// CheckTemperature reports whether celsius can be sent as a target. Extended
// units accept MinTemperature to MaxTemperature in 0.5 °C steps. Legacy units
// only accept the whole degrees of TempMap.
func CheckTemperature(celsius float64, extended bool) error {
	if extended {
		if celsius < MinTemperature || celsius > MaxTemperature {
			return fmt.Errorf("%w: %.1f°C not in %.0f-%.0f", ErrTemperatureRange, celsius, MinTemperature, MaxTemperature)
		}
		return nil
	}
	if !TempMap.Contains(int(math.Round(celsius))) {
		values := TempMap.Values()
		return fmt.Errorf("%w: %.1f°C not in %d-%d on a legacy unit", ErrTemperatureRange, celsius, values[len(values)-1], values[0])
	}
	return nil
}

// MaxRemoteTemperature is the highest reading a remote-temperature frame can
// report, the top of the room temperature table.
const MaxRemoteTemperature = 41.0
