// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package history records the settings and status changes an engine observes.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Thermoquad/cn105/internal/logger"
	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

// ErrQueueFull is logged when the writer falls behind and a change is dropped.
var ErrQueueFull = errors.New("history queue full")

type connectEvent struct{}

// Recorder is a heatpump.Observer that writes changes to the database on its
// own goroutine, so the engine is never blocked on a slow disk.
type Recorder struct {
	db      *gorm.DB
	session Session
	now     func() time.Time
	queue   chan any
}

var _ heatpump.Observer = (*Recorder)(nil)

// NewRecorder starts a new session for device.
func NewRecorder(ctx context.Context, db *gorm.DB, device string) (*Recorder, error) {
	r := &Recorder{
		db:    db,
		now:   time.Now,
		queue: make(chan any, 64),
	}
	r.session = Session{
		ID:        uuid.New().String(),
		Device:    device,
		StartedAt: r.now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&r.session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	logger.Info("History session %s for %s", r.session.ID, device)
	return r, nil
}

// SessionID returns the id stamped on every row of this session.
func (r *Recorder) SessionID() string {
	return r.session.ID
}

func (r *Recorder) enqueue(event any) {
	select {
	case r.queue <- event:
	default:
		logger.Warn("%v, dropping %T", ErrQueueFull, event)
	}
}

func (r *Recorder) OnConnect() {
	r.enqueue(connectEvent{})
}

func (r *Recorder) OnSettingsChanged(s cn105.Settings) {
	r.enqueue(newSettingsChange(r.session.ID, r.now().UTC(), s))
}

func (r *Recorder) OnStatusChanged(s cn105.Status) {
	r.enqueue(newStatusChange(r.session.ID, r.now().UTC(), s))
}

// OnRoomTemperatureChanged is covered by OnStatusChanged.
func (r *Recorder) OnRoomTemperatureChanged(float64) {}

// OnPacket is not recorded.
func (r *Recorder) OnPacket([]byte, cn105.Direction) {}

// Run writes queued changes until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case event := <-r.queue:
			r.write(context.Background(), event)
		case <-ctx.Done():
			for {
				select {
				case event := <-r.queue:
					r.write(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context, event any) {
	db := r.db.WithContext(ctx)
	var err error
	switch e := event.(type) {
	case connectEvent:
		err = db.Model(&Session{}).Where("id = ?", r.session.ID).
			UpdateColumn("connects", gorm.Expr("connects + ?", 1)).Error
	case *SettingsChange:
		err = db.Create(e).Error
	case *StatusChange:
		err = db.Create(e).Error
	}
	if err != nil {
		logger.Error("Failed to record %T: %v", event, err)
	}
}
