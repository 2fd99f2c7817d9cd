// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatpump

import (
	"context"
	"errors"
	"time"

	"github.com/Thermoquad/cn105/internal/logger"
)

type call struct {
	fn   func(*Engine) error
	done chan error
}

// Runner owns an Engine on a single goroutine. It ticks Sync at a fixed
// interval and runs functions submitted through Do between ticks, so HTTP
// handlers and UIs can share one engine safely.
type Runner struct {
	engine   *Engine
	interval time.Duration
	calls    chan call
}

// NewRunner creates a runner that calls Sync every interval.
func NewRunner(engine *Engine, interval time.Duration) *Runner {
	return &Runner{
		engine:   engine,
		interval: interval,
		calls:    make(chan call),
	}
}

// Run drives the engine until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case c := <-r.calls:
			c.done <- c.fn(r.engine)

		case <-ticker.C:
			if err := r.engine.Sync(ctx); err != nil && ctx.Err() == nil {
				if errors.Is(err, ErrNotConnected) {
					logger.Debug("Sync: %v", err)
				} else {
					logger.Warn("Sync: %v", err)
				}
			}
		}
	}
}

// Do runs fn on the runner goroutine and returns its error. fn must not
// retain the engine after it returns.
func (r *Runner) Do(ctx context.Context, fn func(*Engine) error) error {
	c := call{fn: fn, done: make(chan error, 1)}
	select {
	case r.calls <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
