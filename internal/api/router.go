// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/Thermoquad/cn105/internal/config"
	"github.com/Thermoquad/cn105/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(device Device, db *gorm.DB, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger())

	responses := cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	handler := NewHandler(device, db, responses)
	caching := mw.Cache(responses, cfg.CacheTTL)

	api := r.Group("/api")
	api.Use(mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst))
	{
		api.GET("/settings", handler.GetSettings)
		api.PUT("/settings", handler.PutSettings)
		api.GET("/status", handler.GetStatus)
		api.PUT("/remote_temperature", handler.PutRemoteTemperature)

		// function table reads hold the line for seconds
		api.GET("/functions", caching, handler.GetFunctions)
		api.PUT("/functions", handler.PutFunctions)

		api.GET("/history", handler.GetHistory)
	}

	return r
}
