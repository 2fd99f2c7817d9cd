// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cn105

import (
	"errors"
	"fmt"
)

// Function table layout
const (
	FunctionPartSize  = 15
	FunctionCodeCount = 2 * FunctionPartSize
	MinFunctionCode   = 101
	MaxFunctionCode   = 128
	MinFunctionValue  = 1
	MaxFunctionValue  = 3
)

// ErrInvalidFunctions is returned when a function table cannot be written back.
var ErrInvalidFunctions = errors.New("invalid function table")

// FunctionCode is one decoded slot of the function table.
type FunctionCode struct {
	Code  int  `json:"code"`
	Value int  `json:"value"`
	Valid bool `json:"valid"`
}

// FunctionTable holds the extended configuration codes (101-128). Each raw byte
// packs the code in the high six bits (offset by 100) and the value in the low two.
type FunctionTable struct {
	raw    [FunctionCodeCount]byte
	valid1 bool
	valid2 bool
}

func slotCode(b byte) int  { return int(b>>2) + 100 }
func slotValue(b byte) int { return int(b & 0x03) }

// SetPart stores one half of the table (part 1 or 2) and marks it received.
func (f *FunctionTable) SetPart(part int, data [FunctionPartSize]byte) {
	switch part {
	case 1:
		copy(f.raw[:FunctionPartSize], data[:])
		f.valid1 = true
	case 2:
		copy(f.raw[FunctionPartSize:], data[:])
		f.valid2 = true
	}
}

// Part returns one half of the table.
func (f *FunctionTable) Part(part int) [FunctionPartSize]byte {
	var out [FunctionPartSize]byte
	if part == 2 {
		copy(out[:], f.raw[FunctionPartSize:])
	} else {
		copy(out[:], f.raw[:FunctionPartSize])
	}
	return out
}

// Valid reports whether both halves have been received.
func (f *FunctionTable) Valid() bool {
	return f.valid1 && f.valid2
}

// Clear empties the table and marks both halves missing.
func (f *FunctionTable) Clear() {
	*f = FunctionTable{}
}

// Value returns the value of code, or 0 when the code is out of range or absent.
func (f *FunctionTable) Value(code int) int {
	if code < MinFunctionCode || code > MaxFunctionCode {
		return 0
	}
	for _, b := range f.raw {
		if slotCode(b) == code {
			return slotValue(b)
		}
	}
	return 0
}

// SetValue changes the value of an existing code. Codes cannot be added.
func (f *FunctionTable) SetValue(code, value int) bool {
	if code < MinFunctionCode || code > MaxFunctionCode {
		return false
	}
	if value < MinFunctionValue || value > MaxFunctionValue {
		return false
	}
	for i, b := range f.raw {
		if slotCode(b) == code {
			f.raw[i] = byte((code-100)<<2 | value)
			return true
		}
	}
	return false
}

// Codes returns every slot in table order.
func (f *FunctionTable) Codes() []FunctionCode {
	out := make([]FunctionCode, 0, FunctionCodeCount)
	for _, b := range f.raw {
		code := slotCode(b)
		out = append(out, FunctionCode{
			Code:  code,
			Value: slotValue(b),
			Valid: code >= MinFunctionCode && code <= MaxFunctionCode,
		})
	}
	return out
}

// BuildFunctionsWrite returns the two set frames that write the table back.
// The last byte of each half is a sentinel that must be zero; every other byte
// must be set.
func BuildFunctionsWrite(f *FunctionTable) ([2][]byte, error) {
	var frames [2][]byte
	if !f.Valid() {
		return frames, fmt.Errorf("%w: table incomplete", ErrInvalidFunctions)
	}

	commands := [2]byte{SetFunctionsPart1, SetFunctionsPart2}
	for i := range frames {
		part := f.Part(i + 1)
		if part[FunctionPartSize-1] != 0 {
			return frames, fmt.Errorf("%w: part %d sentinel byte is 0x%02X", ErrInvalidFunctions, i+1, part[FunctionPartSize-1])
		}
		for j, b := range part[:FunctionPartSize-1] {
			if b == 0 {
				return frames, fmt.Errorf("%w: part %d byte %d is unset", ErrInvalidFunctions, i+1, j)
			}
		}

		frame := newFrame(FrameSetRequest, commands[i])
		copy(frame[HeaderSize+1:], part[:])
		frames[i] = seal(frame)
	}
	return frames, nil
}
