// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cn105

import "time"

// Packet represents a decoded CN105 frame
type Packet struct {
	frameType byte
	payload   []byte
	checksum  byte
	timestamp time.Time
}

// NewPacket creates a packet from its frame type and payload
func NewPacket(frameType byte, payload []byte) *Packet {
	p := &Packet{
		frameType: frameType,
		payload:   payload,
		timestamp: time.Now(),
	}
	p.checksum = Checksum(p.header()) - sumBytes(payload)
	return p
}

func sumBytes(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

func (p *Packet) header() []byte {
	return []byte{StartByte, p.frameType, Version1, Version2, byte(len(p.payload))}
}

// Type returns the frame type byte (offset 1)
func (p *Packet) Type() byte {
	return p.frameType
}

// Command returns payload[0], the discriminant of info and set frames
func (p *Packet) Command() byte {
	if len(p.payload) == 0 {
		return 0
	}
	return p.payload[0]
}

// Length returns the payload length
func (p *Packet) Length() int {
	return len(p.payload)
}

// Payload returns the raw payload bytes
func (p *Packet) Payload() []byte {
	return p.payload
}

// Checksum returns the packet's checksum byte
func (p *Packet) Checksum() byte {
	return p.checksum
}

// Timestamp returns the packet's decode timestamp
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// Bytes returns the full wire representation including header and checksum
func (p *Packet) Bytes() []byte {
	out := make([]byte, 0, HeaderSize+len(p.payload)+1)
	out = append(out, p.header()...)
	out = append(out, p.payload...)
	return append(out, p.checksum)
}
