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

type functionsResponse struct {
	Codes []cn105.FunctionCode `json:"codes"`
}

// GetFunctions handles GET /api/functions. Reading the table takes several
// seconds, so the router caches this route.
func (h *Handler) GetFunctions(c *gin.Context) {
	ctx := c.Request.Context()
	var resp functionsResponse
	err := h.device.Do(ctx, func(e *heatpump.Engine) error {
		table, err := e.GetFunctions(ctx)
		if err != nil {
			return err
		}
		resp.Codes = table.Codes()
		return nil
	})
	if err != nil {
		abortWithDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type putFunctionsRequest struct {
	Codes []struct {
		Code  int `json:"code" binding:"required"`
		Value int `json:"value" binding:"required"`
	} `json:"codes" binding:"required,min=1,dive"`
}

// PutFunctions handles PUT /api/functions. The current table is read back
// from the unit, the listed codes are changed and the whole table is written.
func (h *Handler) PutFunctions(c *gin.Context) {
	var req putFunctionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var resp functionsResponse
	err := h.device.Do(ctx, func(e *heatpump.Engine) error {
		table, err := e.GetFunctions(ctx)
		if err != nil {
			return err
		}
		for _, fc := range req.Codes {
			if !table.SetValue(fc.Code, fc.Value) {
				return badRequestError{fmt.Sprintf("cannot set function %d to %d", fc.Code, fc.Value)}
			}
		}
		if err := e.SetFunctions(ctx, &table); err != nil {
			return err
		}
		resp.Codes = table.Codes()
		return nil
	})
	if err != nil {
		abortWithDeviceError(c, err)
		return
	}
	if h.cache != nil {
		h.cache.Flush()
	}
	c.JSON(http.StatusOK, resp)
}
