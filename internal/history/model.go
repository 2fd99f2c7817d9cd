// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package history

import (
	"time"

	"github.com/Thermoquad/cn105/pkg/cn105"
)

// Session is one run of the recorder against one unit.
type Session struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Device    string    `gorm:"not null" json:"device"`
	StartedAt time.Time `gorm:"not null" json:"startedAt"`
	Connects  int       `gorm:"not null;default:0" json:"connects"`
}

// SettingsChange is a settings report that differed from the previous one.
type SettingsChange struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID   string    `gorm:"not null;index;size:36" json:"sessionId"`
	ObservedAt  time.Time `gorm:"not null;index" json:"observedAt"`
	Power       string    `gorm:"not null" json:"power"`
	Mode        string    `gorm:"not null" json:"mode"`
	Temperature float64   `gorm:"not null" json:"temperature"`
	Fan         string    `gorm:"not null" json:"fan"`
	Vane        string    `gorm:"not null" json:"vane"`
	WideVane    string    `gorm:"not null" json:"wideVane"`
	ISee        bool      `gorm:"not null" json:"iSee"`
}

// StatusChange is a status report that differed from the previous one.
type StatusChange struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID           string    `gorm:"not null;index;size:36" json:"sessionId"`
	ObservedAt          time.Time `gorm:"not null;index" json:"observedAt"`
	RoomTemperature     float64   `gorm:"not null" json:"roomTemperature"`
	Operating           bool      `gorm:"not null" json:"operating"`
	CompressorFrequency int       `gorm:"not null" json:"compressorFrequency"`
	TimerMode           string    `gorm:"not null" json:"timerMode"`
}

func newSettingsChange(session string, at time.Time, s cn105.Settings) *SettingsChange {
	return &SettingsChange{
		SessionID:   session,
		ObservedAt:  at,
		Power:       s.Power,
		Mode:        s.Mode,
		Temperature: s.Temperature,
		Fan:         s.Fan,
		Vane:        s.Vane,
		WideVane:    s.WideVane,
		ISee:        s.ISee,
	}
}

func newStatusChange(session string, at time.Time, s cn105.Status) *StatusChange {
	return &StatusChange{
		SessionID:           session,
		ObservedAt:          at,
		RoomTemperature:     s.RoomTemperature,
		Operating:           s.Operating,
		CompressorFrequency: int(s.CompressorFrequency),
		TimerMode:           s.Timers.Mode,
	}
}
