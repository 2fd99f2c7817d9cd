// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatpump

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump/heatpumptest"
)

func TestSystemClock_Sleep(t *testing.T) {
	clock := SystemClock()
	start := clock.Now()
	require.NoError(t, clock.Sleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, clock.Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, clock.Sleep(ctx, 0), context.Canceled)
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.Clock = SystemClock()
	opts.ConnectSettle = 0
	opts.ConnectRepeatDelay = 0
	opts.ConnectTimeout = 100 * time.Millisecond
	opts.ReplyTimeout = 100 * time.Millisecond
	opts.SendInterval = 5 * time.Millisecond
	opts.InfoInterval = 10 * time.Millisecond
	opts.ReconnectAfter = 1000
	opts.PollInterval = time.Millisecond
	return opts
}

func TestRunner(t *testing.T) {
	unit := heatpumptest.NewUnit(heatpumptest.NewClock())
	runner := NewRunner(New(unit.Port, fastOptions()), 2*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	require.NoError(t, runner.Do(ctx, func(e *Engine) error { return e.Connect(ctx) }))

	sentinel := errors.New("boom")
	assert.ErrorIs(t, runner.Do(ctx, func(*Engine) error { return sentinel }), sentinel)

	// ticks keep the engine synced in the background
	require.Eventually(t, func() bool {
		var initialised bool
		_ = runner.Do(ctx, func(e *Engine) error {
			initialised = e.store.Initialized()
			return nil
		})
		return initialised
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, runner.Do(ctx, func(e *Engine) error {
		e.SetMode(cn105.ModeCool)
		return e.Update(ctx)
	}))
	var mode byte
	require.NoError(t, runner.Do(ctx, func(*Engine) error {
		mode = unit.Mode
		return nil
	}))
	assert.Equal(t, byte(0x03), mode)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
	assert.ErrorIs(t, runner.Do(ctx, func(*Engine) error { return nil }), context.Canceled)
}
