// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Thermoquad/cn105/internal/config"
	"github.com/Thermoquad/cn105/pkg/cn105"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.HistoryConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "history.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	return db
}

func newTestRecorder(t *testing.T, db *gorm.DB) *Recorder {
	t.Helper()
	r, err := NewRecorder(context.Background(), db, "/dev/ttyUSB0")
	require.NoError(t, err)

	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		at = at.Add(time.Second)
		return at
	}
	return r
}

// flush drains the queue synchronously
func flush(r *Recorder) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.HistoryConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported")
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r := newTestRecorder(t, db)
	assert.Len(t, r.SessionID(), 36)

	settings := cn105.DefaultSettings()
	settings.Power = cn105.PowerOn
	r.OnConnect()
	r.OnSettingsChanged(settings)
	settings.Mode = cn105.ModeCool
	r.OnSettingsChanged(settings)
	r.OnStatusChanged(cn105.Status{RoomTemperature: 21.5, Operating: true, CompressorFrequency: 38})
	r.OnRoomTemperatureChanged(21.5)
	r.OnPacket([]byte{0xFC}, cn105.DirectionSent)
	r.OnConnect()
	flush(r)

	session, err := GetSession(ctx, db, r.SessionID())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", session.Device)
	assert.Equal(t, 2, session.Connects)

	changes, err := List(ctx, db, Query{SessionID: r.SessionID()})
	require.NoError(t, err)
	require.Len(t, changes.Settings, 2)
	assert.Equal(t, cn105.ModeCool, changes.Settings[0].Mode, "newest first")
	assert.Equal(t, cn105.ModeHeat, changes.Settings[1].Mode)
	assert.Equal(t, cn105.PowerOn, changes.Settings[1].Power)

	require.Len(t, changes.Status, 1)
	assert.Equal(t, 21.5, changes.Status[0].RoomTemperature)
	assert.True(t, changes.Status[0].Operating)
	assert.Equal(t, 38, changes.Status[0].CompressorFrequency)
}

func TestList_Filters(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	first := newTestRecorder(t, db)
	second := newTestRecorder(t, db)

	for i := 0; i < 5; i++ {
		first.OnStatusChanged(cn105.Status{RoomTemperature: float64(20 + i)})
	}
	second.OnStatusChanged(cn105.Status{RoomTemperature: 30})
	flush(first)
	flush(second)

	all, err := List(ctx, db, Query{})
	require.NoError(t, err)
	assert.Len(t, all.Status, 6)
	assert.Empty(t, all.Settings)

	limited, err := List(ctx, db, Query{SessionID: first.SessionID(), Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited.Status, 2)
	assert.Equal(t, 24.0, limited.Status[0].RoomTemperature)
	assert.Equal(t, 23.0, limited.Status[1].RoomTemperature)

	since, err := List(ctx, db, Query{
		SessionID: first.SessionID(),
		Since:     time.Date(2025, 1, 1, 12, 0, 4, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, since.Status, 2)
}

func TestRecorder_QueueFull(t *testing.T) {
	db := openTestDB(t)
	r := newTestRecorder(t, db)

	for i := 0; i < cap(r.queue)+10; i++ {
		r.OnStatusChanged(cn105.Status{RoomTemperature: float64(i)})
	}
	flush(r)

	changes, err := List(context.Background(), db, Query{SessionID: r.SessionID()})
	require.NoError(t, err)
	assert.Len(t, changes.Status, cap(r.queue))
}

func TestGetSession_NotFound(t *testing.T) {
	_, err := GetSession(context.Background(), openTestDB(t), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
