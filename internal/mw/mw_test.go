// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(0.001), 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/").Code)
	w := serve(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestIPRateLimiter_ForgetsIdleClients(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 1)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.Equal(t, 2, limiter.Len())

	now = now.Add(11 * time.Minute)
	assert.True(t, limiter.Allow("10.0.0.3"))
	assert.Equal(t, 1, limiter.Len())
}

func TestCache(t *testing.T) {
	calls := 0
	r := gin.New()
	r.Use(Cache(cache.New(time.Minute, time.Minute), time.Minute))
	r.GET("/ok", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/fail", func(c *gin.Context) {
		calls++
		c.Status(http.StatusServiceUnavailable)
	})
	r.POST("/ok", func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})

	first := serve(r, http.MethodGet, "/ok")
	second := serve(r, http.MethodGet, "/ok")
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	serve(r, http.MethodGet, "/fail")
	serve(r, http.MethodGet, "/fail")
	assert.Equal(t, 3, calls, "errors are not cached")

	serve(r, http.MethodPost, "/ok")
	assert.Equal(t, 4, calls, "only GET is cached")
}
