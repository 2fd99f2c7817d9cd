// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package cn105 implements the wire side of the Mitsubishi CN105 serial protocol.
//
// CN105 is the UART connector on the indoor unit of Mitsubishi-type heat pumps. The
// protocol is undocumented; the frame layouts and value tables in this package are the
// reverse-engineered ones used by the community Arduino libraries. This package provides
// frame building, streaming decode with checksum validation, typed message decoding and
// the function-code table.
package cn105

// Protocol framing bytes
const (
	StartByte = 0xFC
	Version1  = 0x01
	Version2  = 0x30
)

// Frame size limits
const (
	HeaderSize     = 5
	MaxPayloadSize = 32
	MaxFrameSize   = HeaderSize + MaxPayloadSize + 1
	PacketLen      = 22 // settings, info and function frames
	payloadLen     = PacketLen - HeaderSize - 1
)

// Frame types (offset 1)
const (
	FrameSetRequest     = 0x41
	FrameInfoRequest    = 0x42
	FrameConnectRequest = 0x5A
	FrameSetResponse    = 0x61
	FrameInfoResponse   = 0x62
	FrameConnectAck     = 0x7A
)

// Set request commands (payload[0] of FrameSetRequest)
const (
	SetSettings       = 0x01
	SetRemoteTemp     = 0x07
	SetFunctionsPart1 = 0x1F
	SetFunctionsPart2 = 0x21
)

// Info request commands that are not part of the polling rotation
const (
	GetFunctionsPart1 = 0x20
	GetFunctionsPart2 = 0x22
)

// Control flags of a settings frame. The first five live in control byte 1,
// ControlWideVane in control byte 2.
const (
	ControlPower    = 0x01
	ControlMode     = 0x02
	ControlTemp     = 0x04
	ControlFan      = 0x08
	ControlVane     = 0x10
	ControlWideVane = 0x80
)

// Settings frame payload offsets
const (
	posCommand      = 0
	posControl1     = 1
	posControl2     = 2
	posPower        = 3
	posMode         = 4
	posTemp         = 5
	posFan          = 6
	posVane         = 7
	posWideVane     = 13
	posTempExtended = 14
)

// TimerIncrementMinutes is the unit of every timer byte.
const TimerIncrementMinutes = 10

// Decoder states (internal)
const (
	stateIdle = iota
	stateType
	stateVersion1
	stateVersion2
	stateLength
	statePayload
	stateChecksum
)

// Direction tells whether a frame was sent to or received from the unit.
type Direction int

const (
	DirectionSent Direction = iota
	DirectionReceived
)

func (d Direction) String() string {
	if d == DirectionSent {
		return "packetSent"
	}
	return "packetRecv"
}
