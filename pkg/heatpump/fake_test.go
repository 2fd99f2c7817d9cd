// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatpump

import (
	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump/heatpumptest"
)

// testOptions is DefaultOptions without the physical settle delays.
func testOptions(clock *heatpumptest.Clock) Options {
	opts := DefaultOptions()
	opts.ConnectSettle = 0
	opts.ConnectRepeatDelay = 0
	opts.Clock = clock
	return opts
}

// recorder counts observer notifications
type recorder struct {
	connects   int
	settings   []cn105.Settings
	statuses   []cn105.Status
	roomTemps  []float64
	sent, recv int
}

func (r *recorder) observer() Observer {
	return ObserverFuncs{
		Connect:                func() { r.connects++ },
		SettingsChanged:        func(s cn105.Settings) { r.settings = append(r.settings, s) },
		StatusChanged:          func(s cn105.Status) { r.statuses = append(r.statuses, s) },
		RoomTemperatureChanged: func(t float64) { r.roomTemps = append(r.roomTemps, t) },
		Packet: func(_ []byte, dir cn105.Direction) {
			if dir == cn105.DirectionSent {
				r.sent++
			} else {
				r.recv++
			}
		},
	}
}
