// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cn105

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// functionSnapshot is the CBOR backup format of a function table:
// {0: part1 bytes, 1: part2 bytes}
type functionSnapshot struct {
	Part1 []byte `cbor:"0,keyasint"`
	Part2 []byte `cbor:"1,keyasint"`
}

// MarshalFunctions encodes a complete function table as CBOR.
func MarshalFunctions(f *FunctionTable) ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: table incomplete", ErrInvalidFunctions)
	}
	p1, p2 := f.Part(1), f.Part(2)
	data, err := cbor.Marshal(functionSnapshot{Part1: p1[:], Part2: p2[:]})
	if err != nil {
		return nil, fmt.Errorf("failed to encode function table: %w", err)
	}
	return data, nil
}

// UnmarshalFunctions decodes a CBOR backup produced by MarshalFunctions.
func UnmarshalFunctions(data []byte) (*FunctionTable, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}

	var snap functionSnapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if len(snap.Part1) != FunctionPartSize || len(snap.Part2) != FunctionPartSize {
		return nil, fmt.Errorf("%w: expected two %d-byte parts, got %d and %d",
			ErrInvalidFunctions, FunctionPartSize, len(snap.Part1), len(snap.Part2))
	}

	var f FunctionTable
	var part [FunctionPartSize]byte
	copy(part[:], snap.Part1)
	f.SetPart(1, part)
	copy(part[:], snap.Part2)
	f.SetPart(2, part)
	return &f, nil
}
