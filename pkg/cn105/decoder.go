// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cn105

import (
	"errors"
	"fmt"
	"time"
)

// Frame errors. All of them are recoverable: the offending bytes are dropped
// and decoding resumes with the next start byte.
var (
	ErrFraming          = errors.New("framing error")
	ErrTruncatedFrame   = errors.New("truncated frame")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrUnknownFrameType = errors.New("unknown frame type")
)

// FrameError carries the raw bytes of a rejected frame
type FrameError struct {
	Err    error
	Detail string
	Data   []byte
}

// Error implements the error interface
func (e *FrameError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

// Unwrap returns the sentinel error
func (e *FrameError) Unwrap() error {
	return e.Err
}

func newFrameError(err error, data []byte, format string, args ...interface{}) *FrameError {
	raw := make([]byte, len(data))
	copy(raw, data)
	return &FrameError{Err: err, Detail: fmt.Sprintf(format, args...), Data: raw}
}

// Decoder implements the CN105 frame decoder state machine
type Decoder struct {
	state   int
	buffer  []byte // header and payload bytes of the current frame
	length  int
	packet  *Packet
	skipped int
}

// NewDecoder creates a new protocol decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateIdle,
		buffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset resets the decoder state to idle, dropping any partial frame
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.buffer = d.buffer[:0]
	d.length = 0
	d.packet = nil
}

// InFrame reports whether a frame has started but not yet completed
func (d *Decoder) InFrame() bool {
	return d.state != stateIdle
}

// GetRawBytes returns the bytes of the partial frame
func (d *Decoder) GetRawBytes() []byte {
	return d.buffer
}

// Skipped returns how many bytes were discarded while hunting for a start byte
// since the last completed packet.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed packet, or nil if the packet is incomplete
// Returns an error if the frame is rejected
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	switch d.state {
	case stateIdle:
		if b != StartByte {
			d.skipped++
			return nil, nil
		}
		d.buffer = append(d.buffer[:0], b)
		d.state = stateType
		return nil, nil

	case stateType:
		d.buffer = append(d.buffer, b)
		d.packet = &Packet{frameType: b}
		d.state = stateVersion1
		return nil, nil

	case stateVersion1, stateVersion2:
		want := byte(Version1)
		if d.state == stateVersion2 {
			want = Version2
		}
		if b != want {
			err := newFrameError(ErrFraming, append(d.buffer, b), "bad protocol version byte 0x%02X", b)
			d.resync(b)
			return nil, err
		}
		d.buffer = append(d.buffer, b)
		d.state++
		return nil, nil

	case stateLength:
		if int(b) > MaxPayloadSize {
			err := newFrameError(ErrFraming, append(d.buffer, b), "invalid length %d (max %d)", b, MaxPayloadSize)
			d.resync(b)
			return nil, err
		}
		d.buffer = append(d.buffer, b)
		d.length = int(b)
		d.packet.payload = make([]byte, 0, b)
		if d.length == 0 {
			d.state = stateChecksum
		} else {
			d.state = statePayload
		}
		return nil, nil

	case statePayload:
		d.buffer = append(d.buffer, b)
		d.packet.payload = append(d.packet.payload, b)
		if len(d.packet.payload) >= d.length {
			d.state = stateChecksum
		}
		return nil, nil

	case stateChecksum:
		expected := Checksum(d.buffer)
		if b != expected {
			err := newFrameError(ErrChecksumMismatch, append(d.buffer, b), "expected 0x%02X, got 0x%02X", expected, b)
			d.Reset()
			return nil, err
		}
		packet := d.packet
		packet.checksum = b
		packet.timestamp = time.Now()
		d.skipped = 0
		d.Reset()
		return packet, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid decoder state: %d", d.state)
	}
}

// resync drops the rejected start byte and rescans the header bytes seen after it,
// so a stray 0xFC in line noise does not swallow the real frame that follows.
// The tail is shorter than the smallest frame, so no packet can complete here.
func (d *Decoder) resync(b byte) {
	tail := make([]byte, 0, HeaderSize)
	tail = append(tail, d.buffer[1:]...)
	tail = append(tail, b)
	d.Reset()
	d.skipped++
	for _, t := range tail {
		d.DecodeByte(t)
	}
}

// ParseFrame decodes the first frame found in data.
//
// consumed is the number of bytes the caller may discard. On ErrTruncatedFrame it
// points at the start byte of the incomplete frame so the caller can retry once
// more bytes have arrived.
func ParseFrame(data []byte) (packet *Packet, consumed int, err error) {
	d := NewDecoder()
	start := -1
	for i, b := range data {
		if !d.InFrame() && b == StartByte {
			start = i
		}
		p, decodeErr := d.DecodeByte(b)
		if errors.Is(decodeErr, ErrFraming) {
			// only the rejected start byte is consumed; a rescan may find a frame after it
			return nil, start + 1, decodeErr
		}
		if decodeErr != nil {
			return nil, i + 1, decodeErr
		}
		if p != nil {
			return p, i + 1, nil
		}
	}
	if d.InFrame() {
		return nil, start, newFrameError(ErrTruncatedFrame, d.GetRawBytes(), "have %d bytes", len(d.GetRawBytes()))
	}
	return nil, len(data), newFrameError(ErrFraming, nil, "no start byte in %d bytes", len(data))
}
