// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package history

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Query selects recorded changes, newest first.
type Query struct {
	SessionID string
	Since     time.Time
	Limit     int
}

// Changes is the result of a history query.
type Changes struct {
	Settings []SettingsChange `json:"settings"`
	Status   []StatusChange   `json:"status"`
}

const maxLimit = 1000

func (q Query) apply(db *gorm.DB) *gorm.DB {
	if q.SessionID != "" {
		db = db.Where("session_id = ?", q.SessionID)
	}
	if !q.Since.IsZero() {
		db = db.Where("observed_at >= ?", q.Since)
	}
	limit := q.Limit
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	return db.Order("observed_at DESC").Order("id DESC").Limit(limit)
}

// List returns the recorded changes matching q.
func List(ctx context.Context, db *gorm.DB, q Query) (*Changes, error) {
	out := &Changes{
		Settings: []SettingsChange{},
		Status:   []StatusChange{},
	}
	if err := q.apply(db.WithContext(ctx)).Find(&out.Settings).Error; err != nil {
		return nil, err
	}
	if err := q.apply(db.WithContext(ctx)).Find(&out.Status).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession returns one session by id.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*Session, error) {
	var s Session
	if err := db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
