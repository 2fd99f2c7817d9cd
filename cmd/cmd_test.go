// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
	"github.com/Thermoquad/cn105/pkg/heatpump/heatpumptest"
)

// simulatedEngine returns an engine connected to an in-memory unit with its
// settings already read
func simulatedEngine(t *testing.T) (*heatpump.Engine, *heatpumptest.Unit) {
	t.Helper()
	clock := heatpumptest.NewClock()
	unit := heatpumptest.NewUnit(clock)

	opts := heatpump.DefaultOptions()
	opts.Clock = clock
	opts.ConnectSettle = 0
	opts.ConnectRepeatDelay = 0

	e := heatpump.New(unit.Port, opts)
	ctx := context.Background()
	require.NoError(t, e.Connect(ctx))
	_, err := e.Request(ctx, cn105.InfoSettings)
	require.NoError(t, err)
	return e, unit
}

// ============================================================
// Argument parsing
// ============================================================

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"101=2", "128=3", "110=1"})
	require.NoError(t, err)
	assert.Equal(t, map[int]int{101: 2, 128: 3, 110: 1}, got)

	invalid := []struct {
		name string
		arg  string
	}{
		{"missing value", "101"},
		{"code below range", "100=1"},
		{"code above range", "129=1"},
		{"value below range", "101=0"},
		{"value above range", "101=4"},
		{"non-numeric code", "abc=1"},
		{"non-numeric value", "101=x"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAssignments([]string{tt.arg})
			assert.Error(t, err)
		})
	}
}

func TestParseHex(t *testing.T) {
	want := []byte{0x42, 0x01, 0x30, 0x10, 0x02}

	tests := []struct {
		name string
		args []string
	}{
		{"separate bytes", []string{"42", "01", "30", "10", "02"}},
		{"prefixed", []string{"0x42", "0x01", "0x30", "0x10", "0x02"}},
		{"run together", []string{"4201301002"}},
		{"mixed grouping", []string{"42013010", "02"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHex(tt.args)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := parseHex([]string{"zz"})
	assert.ErrorContains(t, err, "invalid hex")

	_, err = parseHex([]string{""})
	assert.ErrorContains(t, err, "no bytes")

	_, err = parseHex([]string{"4"})
	assert.Error(t, err, "odd digit count")

	_, err = parseHex([]string{strings.Repeat("00", cn105.PacketLen-1)})
	assert.ErrorContains(t, err, "too long")

	got, err := parseHex([]string{strings.Repeat("00", cn105.PacketLen-2)})
	require.NoError(t, err)
	assert.Len(t, got, cn105.PacketLen-2)
}

func TestChoice(t *testing.T) {
	v, err := choice("mode", "cool", cn105.ModeMap)
	require.NoError(t, err)
	assert.Equal(t, cn105.ModeCool, v)

	v, err = choice("wide vane", "<>", cn105.WideVaneMap)
	require.NoError(t, err)
	assert.Equal(t, cn105.WideVaneSplit, v)

	_, err = choice("mode", "warm", cn105.ModeMap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEAT, DRY, COOL, FAN, AUTO")
}

// ============================================================
// set flags
// ============================================================

// setFlags binds the set command's variables to a fresh flag set
func setFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "set"}
	f := c.Flags()
	f.StringVar(&setPower, "power", "", "")
	f.StringVar(&setMode, "mode", "", "")
	f.Float64Var(&setTemp, "temp", 0, "")
	f.IntVar(&setTempF, "temp-f", 0, "")
	f.StringVar(&setFan, "fan", "", "")
	f.StringVar(&setVane, "vane", "", "")
	f.StringVar(&setWideVane, "wide-vane", "", "")
	require.NoError(t, f.Parse(args))
	return c
}

func TestWantedFromFlags(t *testing.T) {
	t.Run("applies only given flags", func(t *testing.T) {
		apply, err := wantedFromFlags(setFlags(t, "--mode", "cool", "--temp", "21", "--fan", "quiet"))
		require.NoError(t, err)

		e, _ := simulatedEngine(t)
		before := e.Settings()
		require.NoError(t, apply(e))
		wanted := e.WantedSettings()
		assert.Equal(t, cn105.ModeCool, wanted.Mode)
		assert.Equal(t, 21.0, wanted.Temperature)
		assert.Equal(t, cn105.FanQuiet, wanted.Fan)
		assert.Equal(t, before.Power, wanted.Power)
		assert.Equal(t, before.Vane, wanted.Vane)
		assert.True(t, e.Pending())
	})

	t.Run("fahrenheit", func(t *testing.T) {
		apply, err := wantedFromFlags(setFlags(t, "--temp-f", "70"))
		require.NoError(t, err)

		e, _ := simulatedEngine(t)
		require.NoError(t, apply(e))
		assert.Equal(t, 21.0, e.WantedSettings().Temperature)
	})

	t.Run("below legacy table", func(t *testing.T) {
		apply, err := wantedFromFlags(setFlags(t, "--mode", "cool", "--temp", "12"))
		require.NoError(t, err, "12 °C is valid for extended units")

		e, unit := simulatedEngine(t)
		require.False(t, e.ExtendedTemperature())
		err = apply(e)
		assert.ErrorIs(t, err, cn105.ErrTemperatureRange)
		assert.ErrorContains(t, err, "16-31")
		assert.Equal(t, 22.0, e.WantedSettings().Temperature)
		assert.Equal(t, cn105.ModeHeat, e.WantedSettings().Mode, "nothing is applied")
		assert.False(t, e.Pending())
		assert.Empty(t, unit.Port.SentOfType(cn105.FrameSetRequest, cn105.SetSettings))
	})

	invalid := []struct {
		name string
		args []string
		want string
	}{
		{"nothing", nil, "nothing to set"},
		{"bad power", []string{"--power", "maybe"}, "invalid power"},
		{"bad fan", []string{"--fan", "9"}, "invalid fan"},
		{"bad vane", []string{"--vane", "6"}, "invalid vane"},
		{"bad wide vane", []string{"--wide-vane", "^"}, "invalid wide vane"},
		{"too hot", []string{"--temp", "35"}, "out of range"},
		{"too cold", []string{"--temp", "5"}, "out of range"},
		{"too hot in fahrenheit", []string{"--temp-f", "95"}, "out of range"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wantedFromFlags(setFlags(t, tt.args...))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
