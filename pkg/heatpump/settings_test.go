// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatpump

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump/heatpumptest"
)

func reported(mode string) cn105.Settings {
	s := cn105.DefaultSettings()
	s.Power = cn105.PowerOn
	s.Mode = mode
	s.Temperature = 22
	return s
}

func TestSettingsStore_Defaults(t *testing.T) {
	s := NewSettingsStore(heatpumptest.NewClock(), 30*time.Second)
	assert.Equal(t, cn105.DefaultSettings(), s.Current())
	assert.Equal(t, cn105.DefaultSettings(), s.Wanted())
	assert.False(t, s.Initialized())
	assert.False(t, s.Pending())
}

func TestSettingsStore_SettersNormalise(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*SettingsStore)
		check func(cn105.Settings) any
		want  any
	}{
		{"mode", func(s *SettingsStore) { s.SetMode(cn105.ModeCool) }, func(v cn105.Settings) any { return v.Mode }, cn105.ModeCool},
		{"unknown mode", func(s *SettingsStore) { s.SetMode("FROST") }, func(v cn105.Settings) any { return v.Mode }, cn105.ModeHeat},
		{"unknown fan", func(s *SettingsStore) { s.SetFan("9") }, func(v cn105.Settings) any { return v.Fan }, cn105.FanAuto},
		{"power off", func(s *SettingsStore) { s.SetPowerOn(false) }, func(v cn105.Settings) any { return v.Power }, cn105.PowerOff},
		{"vane", func(s *SettingsStore) { s.SetVane(cn105.VaneSwing) }, func(v cn105.Settings) any { return v.Vane }, cn105.VaneSwing},
		{"wide vane", func(s *SettingsStore) { s.SetWideVane(cn105.WideVaneSplit) }, func(v cn105.Settings) any { return v.WideVane }, cn105.WideVaneSplit},
		{"whole degree rounds", func(s *SettingsStore) { s.SetTemperature(22.4, false) }, func(v cn105.Settings) any { return v.Temperature }, 22.0},
		{"whole degree out of table", func(s *SettingsStore) { s.SetTemperature(35, false) }, func(v cn105.Settings) any { return v.Temperature }, 31.0},
		{"half degree", func(s *SettingsStore) { s.SetTemperature(22.26, true) }, func(v cn105.Settings) any { return v.Temperature }, 22.5},
		{"half degree low clamp", func(s *SettingsStore) { s.SetTemperature(5, true) }, func(v cn105.Settings) any { return v.Temperature }, 10.0},
		{"half degree high clamp", func(s *SettingsStore) { s.SetTemperature(40, true) }, func(v cn105.Settings) any { return v.Temperature }, 31.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSettingsStore(heatpumptest.NewClock(), 0)
			tt.apply(s)
			assert.Equal(t, tt.want, tt.check(s.Wanted()))
			assert.Equal(t, cn105.DefaultSettings(), s.Current(), "setters never touch current")
		})
	}
}

func TestSettingsStore_SetSettings(t *testing.T) {
	s := NewSettingsStore(heatpumptest.NewClock(), 0)
	s.SetSettings(cn105.Settings{
		Power: cn105.PowerOn, Mode: cn105.ModeDry, Temperature: 24.4,
		Fan: cn105.FanQuiet, Vane: "bogus", WideVane: cn105.WideVaneLeft,
	}, false)

	assert.Equal(t, cn105.Settings{
		Power: cn105.PowerOn, Mode: cn105.ModeDry, Temperature: 24,
		Fan: cn105.FanQuiet, Vane: cn105.VaneAuto, WideVane: cn105.WideVaneLeft,
	}, s.Wanted())
}

func TestSettingsStore_LastWantedMonotonic(t *testing.T) {
	clock := heatpumptest.NewClock()
	s := NewSettingsStore(clock, 0)

	s.SetMode(cn105.ModeCool)
	first := s.LastWanted()
	assert.Equal(t, clock.Now(), first)

	clock.Advance(-time.Minute)
	s.SetMode(cn105.ModeDry)
	assert.Equal(t, first, s.LastWanted())

	clock.Advance(2 * time.Minute)
	s.SetMode(cn105.ModeAuto)
	assert.True(t, s.LastWanted().After(first))
}

func TestSettingsStore_FirstReportInitialisesWanted(t *testing.T) {
	s := NewSettingsStore(heatpumptest.NewClock(), 30*time.Second)
	s.SetMode(cn105.ModeCool)

	assert.True(t, s.ApplyReceived(reported(cn105.ModeHeat), false))
	assert.True(t, s.Initialized())
	assert.Equal(t, reported(cn105.ModeHeat), s.Wanted())
	assert.False(t, s.Pending())

	assert.False(t, s.ApplyReceived(reported(cn105.ModeHeat), false), "same report is not a change")
}

func TestSettingsStore_Reset(t *testing.T) {
	s := NewSettingsStore(heatpumptest.NewClock(), 30*time.Second)
	s.ApplyReceived(reported(cn105.ModeHeat), false)
	s.SetMode(cn105.ModeCool)
	assert.True(t, s.Pending())

	s.Reset()
	assert.False(t, s.Initialized())
	s.ApplyReceived(reported(cn105.ModeHeat), false)
	assert.Equal(t, cn105.ModeHeat, s.Wanted().Mode)
	assert.False(t, s.Pending())
}

func TestSettingsStore_ExternalChanges(t *testing.T) {
	tests := []struct {
		name          string
		trackExternal bool
		after         time.Duration
		wantMode      string
	}{
		{"not tracked", false, time.Hour, cn105.ModeCool},
		{"inside grace period", true, 29 * time.Second, cn105.ModeCool},
		{"grace period elapsed", true, 30 * time.Second, cn105.ModeFan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := heatpumptest.NewClock()
			s := NewSettingsStore(clock, 30*time.Second)
			s.ApplyReceived(reported(cn105.ModeHeat), false)

			s.SetMode(cn105.ModeCool)
			clock.Advance(tt.after)
			s.ApplyReceived(reported(cn105.ModeFan), tt.trackExternal)

			assert.Equal(t, cn105.ModeFan, s.Current().Mode)
			assert.Equal(t, tt.wantMode, s.Wanted().Mode)
		})
	}
}

func TestSettingsStore_PendingIgnoresISee(t *testing.T) {
	s := NewSettingsStore(heatpumptest.NewClock(), 0)
	v := reported(cn105.ModeHeat)
	v.ISee = true
	s.ApplyReceived(v, false)

	assert.False(t, s.Pending())
	s.SetFan(cn105.Fan3)
	assert.True(t, s.Pending())
}

func TestSettingsStore_Commit(t *testing.T) {
	s := NewSettingsStore(heatpumptest.NewClock(), 0)
	v := reported(cn105.ModeHeat)
	v.ISee = true
	s.ApplyReceived(v, false)

	assert.False(t, s.Commit(), "nothing to commit")

	s.SetMode(cn105.ModeCool)
	assert.True(t, s.Commit())
	assert.Equal(t, cn105.ModeCool, s.Current().Mode)
	assert.True(t, s.Current().ISee, "iSee is reported, never written")
	assert.False(t, s.Pending())
}
