// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mw

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Thermoquad/cn105/internal/logger"
)

// Logger logs one line per request through the application logger.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		switch {
		case status >= 500:
			logger.Error("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
		case status >= 400:
			logger.Warn("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
		default:
			logger.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
		}
	}
}
