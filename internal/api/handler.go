// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api serves a JSON HTTP interface to one heat pump.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

// Device runs fn against the engine on the goroutine that owns it.
// heatpump.Runner implements it.
type Device interface {
	Do(ctx context.Context, fn func(*heatpump.Engine) error) error
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	device Device
	db     *gorm.DB // nil when history is disabled
	cache  *cache.Cache
}

// NewHandler creates a new API handler. db may be nil.
func NewHandler(device Device, db *gorm.DB, responses *cache.Cache) *Handler {
	return &Handler{
		device: device,
		db:     db,
		cache:  responses,
	}
}

// badRequestError marks an error found while applying a request on the engine.
type badRequestError struct{ msg string }

func (e badRequestError) Error() string { return e.msg }

// abortWithDeviceError maps engine errors to HTTP statuses.
func abortWithDeviceError(c *gin.Context, err error) {
	var bad badRequestError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &bad):
		status = http.StatusBadRequest
	case errors.Is(err, heatpump.ErrNotConnected):
		status = http.StatusServiceUnavailable
	case errors.Is(err, heatpump.ErrUpdateNotAcknowledged),
		errors.Is(err, heatpump.ErrNoReply),
		errors.Is(err, heatpump.ErrFunctionsIncomplete):
		status = http.StatusGatewayTimeout
	case errors.Is(err, cn105.ErrInvalidFunctions):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
