// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cn105

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks link quality of a CN105 connection
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	ValidFrames     uint64
	SentFrames      uint64
	ChecksumErrors  uint64
	FramingErrors   uint64
	TruncatedFrames uint64
	UnknownFrames   uint64
	UnknownMessages uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one received frame and its decode result
func (s *Statistics) Update(msg Message, err error) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	switch {
	case err == nil:
		s.ValidFrames++
		if _, ok := msg.(*UnknownMessage); ok {
			s.UnknownMessages++
		}
	case errors.Is(err, ErrChecksumMismatch):
		s.ChecksumErrors++
	case errors.Is(err, ErrTruncatedFrame):
		s.TruncatedFrames++
	case errors.Is(err, ErrUnknownFrameType):
		s.UnknownFrames++
	default:
		s.FramingErrors++
	}
}

// RecordSent counts one transmitted frame
func (s *Statistics) RecordSent() {
	s.SentFrames++
}

// Errors returns the total number of rejected frames
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.FramingErrors + s.TruncatedFrames + s.UnknownFrames
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Sent Frames:     %8d\n", s.SentFrames)
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))

	if s.UnknownMessages > 0 {
		result += fmt.Sprintf("  Uninterpreted:  %7d\n", s.UnknownMessages)
	}
	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d (%.1f%%)\n", s.FramingErrors, percent(s.FramingErrors))
	}
	if s.TruncatedFrames > 0 {
		result += fmt.Sprintf("Truncated:       %8d (%.1f%%)\n", s.TruncatedFrames, percent(s.TruncatedFrames))
	}
	if s.UnknownFrames > 0 {
		result += fmt.Sprintf("Unknown Types:   %8d (%.1f%%)\n", s.UnknownFrames, percent(s.UnknownFrames))
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
