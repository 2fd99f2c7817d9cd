// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatpump

import (
	"sync"

	"github.com/Thermoquad/cn105/pkg/cn105"
)

// Observer receives engine notifications. Calls are made synchronously from
// the goroutine driving the engine, after the engine state has been updated.
type Observer interface {
	// OnConnect fires once per successful handshake.
	OnConnect()
	// OnSettingsChanged fires when the unit's settings differ from the previous view.
	OnSettingsChanged(settings cn105.Settings)
	// OnStatusChanged fires when room temperature, operating state or timers change.
	OnStatusChanged(status cn105.Status)
	// OnRoomTemperatureChanged is the narrow form of OnStatusChanged.
	OnRoomTemperatureChanged(celsius float64)
	// OnPacket fires for every frame sent or received.
	OnPacket(raw []byte, dir cn105.Direction)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Connect                func()
	SettingsChanged        func(cn105.Settings)
	StatusChanged          func(cn105.Status)
	RoomTemperatureChanged func(float64)
	Packet                 func([]byte, cn105.Direction)
}

func (f ObserverFuncs) OnConnect() {
	if f.Connect != nil {
		f.Connect()
	}
}

func (f ObserverFuncs) OnSettingsChanged(s cn105.Settings) {
	if f.SettingsChanged != nil {
		f.SettingsChanged(s)
	}
}

func (f ObserverFuncs) OnStatusChanged(s cn105.Status) {
	if f.StatusChanged != nil {
		f.StatusChanged(s)
	}
}

func (f ObserverFuncs) OnRoomTemperatureChanged(t float64) {
	if f.RoomTemperatureChanged != nil {
		f.RoomTemperatureChanged(t)
	}
}

func (f ObserverFuncs) OnPacket(raw []byte, dir cn105.Direction) {
	if f.Packet != nil {
		f.Packet(raw, dir)
	}
}

// Hub fans notifications out to every subscribed observer, in subscription order.
type Hub struct {
	mu        sync.RWMutex
	observers map[int]Observer
	order     []int
	next      int
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{observers: make(map[int]Observer)}
}

// Subscribe adds o and returns a function that removes it again.
func (h *Hub) Subscribe(o Observer) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	h.observers[id] = o
	h.order = append(h.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.observers, id)
			for i, v := range h.order {
				if v == id {
					h.order = append(h.order[:i], h.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Len returns the number of subscribers
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}

func (h *Hub) snapshot() []Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Observer, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.observers[id])
	}
	return out
}

func (h *Hub) OnConnect() {
	for _, o := range h.snapshot() {
		o.OnConnect()
	}
}

func (h *Hub) OnSettingsChanged(s cn105.Settings) {
	for _, o := range h.snapshot() {
		o.OnSettingsChanged(s)
	}
}

func (h *Hub) OnStatusChanged(s cn105.Status) {
	for _, o := range h.snapshot() {
		o.OnStatusChanged(s)
	}
}

func (h *Hub) OnRoomTemperatureChanged(t float64) {
	for _, o := range h.snapshot() {
		o.OnRoomTemperatureChanged(t)
	}
}

func (h *Hub) OnPacket(raw []byte, dir cn105.Direction) {
	for _, o := range h.snapshot() {
		o.OnPacket(raw, dir)
	}
}
