// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

type settingsResponse struct {
	Current             cn105.Settings `json:"current"`
	Wanted              cn105.Settings `json:"wanted"`
	Pending             bool           `json:"pending"`
	Connected           bool           `json:"connected"`
	ExtendedTemperature bool           `json:"extendedTemperature"`
}

func newSettingsResponse(e *heatpump.Engine) settingsResponse {
	return settingsResponse{
		Current:             e.Settings(),
		Wanted:              e.WantedSettings(),
		Pending:             e.Pending(),
		Connected:           e.Connected(),
		ExtendedTemperature: e.ExtendedTemperature(),
	}
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(c *gin.Context) {
	var resp settingsResponse
	err := h.device.Do(c.Request.Context(), func(e *heatpump.Engine) error {
		resp = newSettingsResponse(e)
		return nil
	})
	if err != nil {
		abortWithDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type putSettingsRequest struct {
	Power       *string  `json:"power"`
	Mode        *string  `json:"mode"`
	Temperature *float64 `json:"temperature"`
	Fan         *string  `json:"fan"`
	Vane        *string  `json:"vane"`
	WideVane    *string  `json:"wideVane"`
}

func checkValue(field string, v *string, m cn105.ValueMap[string]) error {
	if v != nil && !m.Contains(*v) {
		return fmt.Errorf("invalid %s %q, want one of %v", field, *v, m.Values())
	}
	return nil
}

func (r *putSettingsRequest) validate() error {
	for _, check := range []error{
		checkValue("power", r.Power, cn105.PowerMap),
		checkValue("mode", r.Mode, cn105.ModeMap),
		checkValue("fan", r.Fan, cn105.FanMap),
		checkValue("vane", r.Vane, cn105.VaneMap),
		checkValue("wideVane", r.WideVane, cn105.WideVaneMap),
	} {
		if check != nil {
			return check
		}
	}
	if r.Temperature != nil && (*r.Temperature < cn105.MinTemperature || *r.Temperature > cn105.MaxTemperature) {
		return fmt.Errorf("temperature %.1f out of range %.0f-%.0f", *r.Temperature, cn105.MinTemperature, cn105.MaxTemperature)
	}
	return nil
}

// apply checks the temperature against the unit's temperature mode before
// touching any field.
func (r *putSettingsRequest) apply(e *heatpump.Engine) error {
	if r.Temperature != nil {
		if err := cn105.CheckTemperature(*r.Temperature, e.ExtendedTemperature()); err != nil {
			return badRequestError{err.Error()}
		}
	}
	if r.Power != nil {
		e.SetPower(*r.Power)
	}
	if r.Mode != nil {
		e.SetMode(*r.Mode)
	}
	if r.Temperature != nil {
		e.SetTemperature(*r.Temperature)
	}
	if r.Fan != nil {
		e.SetFan(*r.Fan)
	}
	if r.Vane != nil {
		e.SetVane(*r.Vane)
	}
	if r.WideVane != nil {
		e.SetWideVane(*r.WideVane)
	}
	return nil
}

// PutSettings handles PUT /api/settings. Only the fields present in the body
// are changed; the update is pushed before the handler returns.
func (h *Handler) PutSettings(c *gin.Context) {
	var req putSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var resp settingsResponse
	err := h.device.Do(ctx, func(e *heatpump.Engine) error {
		if !e.Connected() {
			return heatpump.ErrNotConnected
		}
		if err := req.apply(e); err != nil {
			return err
		}
		if e.Pending() {
			if err := e.Update(ctx); err != nil {
				return err
			}
		}
		resp = newSettingsResponse(e)
		return nil
	})
	if err != nil {
		abortWithDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
