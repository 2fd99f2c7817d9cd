// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatpump

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/cn105/pkg/cn105"
)

// Port is the byte transport to the unit. Read must return (0, nil) once the
// read timeout expires without data, as serial ports do.
type Port interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
}

// BaudRateSetter is implemented by ports whose line speed can be changed.
// The handshake falls back to a second bit rate only when it is available.
type BaudRateSetter interface {
	SetBaudRate(baud int) error
}

// frameReader turns port reads into packets. Completed packets are queued in
// wire order; a partial frame survives across polls until frameTimeout passes
// without new bytes, at which point it is dropped as truncated.
type frameReader struct {
	port         Port
	clock        Clock
	decoder      *cn105.Decoder
	buf          []byte
	queue        []*cn105.Packet
	pollInterval time.Duration
	frameTimeout time.Duration
	lastByte     time.Time
	onError      func(error)
}

func newFrameReader(port Port, clock Clock, pollInterval, frameTimeout time.Duration, onError func(error)) *frameReader {
	return &frameReader{
		port:         port,
		clock:        clock,
		decoder:      cn105.NewDecoder(),
		buf:          make([]byte, 64),
		pollInterval: pollInterval,
		frameTimeout: frameTimeout,
		onError:      onError,
	}
}

// reset drops any queued packets and partial frame
func (r *frameReader) reset() {
	r.decoder.Reset()
	r.queue = r.queue[:0]
}

func (r *frameReader) feed(data []byte) {
	for _, b := range data {
		packet, err := r.decoder.DecodeByte(b)
		if err != nil {
			r.onError(err)
			continue
		}
		if packet != nil {
			r.queue = append(r.queue, packet)
		}
	}
}

// next returns the next packet, waiting at most timeout for one to arrive.
// A zero timeout still performs one read. It returns (nil, nil) on timeout.
func (r *frameReader) next(ctx context.Context, timeout time.Duration) (*cn105.Packet, error) {
	deadline := r.clock.Now().Add(timeout)
	for {
		if len(r.queue) > 0 {
			packet := r.queue[0]
			r.queue = r.queue[1:]
			return packet, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.port.Read(r.buf)
		if err != nil {
			return nil, fmt.Errorf("read failed: %w", err)
		}
		now := r.clock.Now()
		if n > 0 {
			r.lastByte = now
			r.feed(r.buf[:n])
			if len(r.queue) > 0 {
				continue
			}
		} else if r.decoder.InFrame() && now.Sub(r.lastByte) >= r.frameTimeout {
			raw := append([]byte(nil), r.decoder.GetRawBytes()...)
			r.onError(&cn105.FrameError{
				Err:    cn105.ErrTruncatedFrame,
				Detail: fmt.Sprintf("no bytes for %s after %d bytes", r.frameTimeout, len(raw)),
				Data:   raw,
			})
			r.decoder.Reset()
		}

		if !now.Before(deadline) {
			return nil, nil
		}
		if n == 0 {
			wait := r.pollInterval
			if remaining := deadline.Sub(now); remaining < wait {
				wait = remaining
			}
			if err := r.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
}
