// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

type linkStatistics struct {
	Uptime          string  `json:"uptime"`
	TotalFrames     uint64  `json:"totalFrames"`
	ValidFrames     uint64  `json:"validFrames"`
	SentFrames      uint64  `json:"sentFrames"`
	ChecksumErrors  uint64  `json:"checksumErrors"`
	FramingErrors   uint64  `json:"framingErrors"`
	TruncatedFrames uint64  `json:"truncatedFrames"`
	UnknownFrames   uint64  `json:"unknownFrames"`
	FrameRate       float64 `json:"frameRate"`
	ErrorRate       float64 `json:"errorRate"`
}

type statusResponse struct {
	cn105.Status
	Connected  bool           `json:"connected"`
	State      string         `json:"state"`
	BaudRate   int            `json:"baudRate"`
	ISee       bool           `json:"iSee"`
	Statistics linkStatistics `json:"statistics"`
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	var resp statusResponse
	err := h.device.Do(c.Request.Context(), func(e *heatpump.Engine) error {
		stats := *e.Statistics()
		stats.CalculateRates()
		resp = statusResponse{
			Status:    e.Status(),
			Connected: e.Connected(),
			State:     e.State().String(),
			BaudRate:  e.BaudRate(),
			ISee:      e.ISee(),
			Statistics: linkStatistics{
				Uptime:          time.Since(stats.StartTime).Truncate(time.Second).String(),
				TotalFrames:     stats.TotalFrames,
				ValidFrames:     stats.ValidFrames,
				SentFrames:      stats.SentFrames,
				ChecksumErrors:  stats.ChecksumErrors,
				FramingErrors:   stats.FramingErrors,
				TruncatedFrames: stats.TruncatedFrames,
				UnknownFrames:   stats.UnknownFrames,
				FrameRate:       stats.FrameRate,
				ErrorRate:       stats.ErrorRate,
			},
		}
		return nil
	})
	if err != nil {
		abortWithDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type putRemoteTemperatureRequest struct {
	Celsius *float64 `json:"celsius" binding:"required"`
}

// PutRemoteTemperature handles PUT /api/remote_temperature. A value of zero
// returns control to the unit's own sensor.
func (h *Handler) PutRemoteTemperature(c *gin.Context) {
	var req putRemoteTemperatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Celsius > cn105.MaxRemoteTemperature {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("celsius above %.0f", cn105.MaxRemoteTemperature)})
		return
	}

	ctx := c.Request.Context()
	err := h.device.Do(ctx, func(e *heatpump.Engine) error {
		return e.SetRemoteTemperature(ctx, *req.Celsius)
	})
	if err != nil {
		abortWithDeviceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
