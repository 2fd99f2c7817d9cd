// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatpump

import (
	"math"
	"time"

	"github.com/Thermoquad/cn105/pkg/cn105"
)

// SettingsStore holds two views of the unit's settings: current, the last state
// the unit reported, and wanted, the state the caller asked for. Setters only
// ever touch wanted; the unit only ever touches current.
type SettingsStore struct {
	clock       Clock
	gracePeriod time.Duration

	current     cn105.Settings
	wanted      cn105.Settings
	initialized bool
	lastWanted  time.Time
}

// NewSettingsStore creates a store with both views at library defaults.
func NewSettingsStore(clock Clock, gracePeriod time.Duration) *SettingsStore {
	if clock == nil {
		clock = SystemClock()
	}
	s := &SettingsStore{
		clock:       clock,
		gracePeriod: gracePeriod,
		current:     cn105.DefaultSettings(),
	}
	s.wanted = s.current
	return s
}

func (s *SettingsStore) touch() {
	now := s.clock.Now()
	if now.After(s.lastWanted) {
		s.lastWanted = now
	}
}

// SetPower sets the wanted power ("ON"/"OFF").
func (s *SettingsStore) SetPower(v string) {
	s.wanted.Power = cn105.PowerMap.Normalize(v)
	s.touch()
}

// SetPowerOn is the boolean form of SetPower.
func (s *SettingsStore) SetPowerOn(on bool) {
	if on {
		s.SetPower(cn105.PowerOn)
	} else {
		s.SetPower(cn105.PowerOff)
	}
}

func (s *SettingsStore) SetMode(v string) {
	s.wanted.Mode = cn105.ModeMap.Normalize(v)
	s.touch()
}

// SetTemperature sets the wanted target temperature. In extended mode the value
// is rounded to 0.5 °C and clamped to the supported range; otherwise it must be
// one of the 16 whole-degree table entries.
func (s *SettingsStore) SetTemperature(celsius float64, extended bool) {
	s.wanted.Temperature = normalizeTemperature(celsius, extended)
	s.touch()
}

func normalizeTemperature(celsius float64, extended bool) float64 {
	if extended {
		t := cn105.RoundHalf(celsius)
		return math.Max(cn105.MinTemperature, math.Min(cn105.MaxTemperature, t))
	}
	return float64(cn105.TempMap.Normalize(int(math.Round(celsius))))
}

func (s *SettingsStore) SetFan(v string) {
	s.wanted.Fan = cn105.FanMap.Normalize(v)
	s.touch()
}

func (s *SettingsStore) SetVane(v string) {
	s.wanted.Vane = cn105.VaneMap.Normalize(v)
	s.touch()
}

func (s *SettingsStore) SetWideVane(v string) {
	s.wanted.WideVane = cn105.WideVaneMap.Normalize(v)
	s.touch()
}

// SetSettings replaces every writable wanted field at once.
func (s *SettingsStore) SetSettings(v cn105.Settings, extended bool) {
	s.wanted.Power = cn105.PowerMap.Normalize(v.Power)
	s.wanted.Mode = cn105.ModeMap.Normalize(v.Mode)
	s.wanted.Temperature = normalizeTemperature(v.Temperature, extended)
	s.wanted.Fan = cn105.FanMap.Normalize(v.Fan)
	s.wanted.Vane = cn105.VaneMap.Normalize(v.Vane)
	s.wanted.WideVane = cn105.WideVaneMap.Normalize(v.WideVane)
	s.touch()
}

// Current returns the last settings reported by the unit.
func (s *SettingsStore) Current() cn105.Settings {
	return s.current
}

// Wanted returns the settings the caller asked for.
func (s *SettingsStore) Wanted() cn105.Settings {
	return s.wanted
}

// Initialized reports whether a settings frame has been received.
func (s *SettingsStore) Initialized() bool {
	return s.initialized
}

// Reset forgets the first settings report so the next one initialises wanted
// again. Called after every successful handshake.
func (s *SettingsStore) Reset() {
	s.initialized = false
}

// LastWanted returns the time of the most recent setter call.
func (s *SettingsStore) LastWanted() time.Time {
	return s.lastWanted
}

// ApplyReceived stores settings reported by the unit and reports whether they
// differ from the previous view.
//
// The first report initialises wanted so untouched fields are not reverted.
// With trackExternal, wanted also follows current once the grace period since
// the last setter call has passed, so changes made on another remote stick.
func (s *SettingsStore) ApplyReceived(v cn105.Settings, trackExternal bool) bool {
	changed := v != s.current
	s.current = v

	if !s.initialized || (trackExternal && s.clock.Now().Sub(s.lastWanted) >= s.gracePeriod) {
		s.wanted = v
		s.initialized = true
	}
	return changed
}

// Pending reports whether any writable field of wanted differs from current.
func (s *SettingsStore) Pending() bool {
	return writable(s.wanted) != writable(s.current)
}

// Commit copies the writable wanted fields into current after the unit has
// acknowledged them. It reports whether current changed.
func (s *SettingsStore) Commit() bool {
	next := writable(s.wanted)
	next.ISee = s.current.ISee
	changed := next != s.current
	s.current = next
	return changed
}

func writable(v cn105.Settings) cn105.Settings {
	v.ISee = false
	return v
}
