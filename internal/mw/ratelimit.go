// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client address. Buckets idle for
// longer than idleTimeout are forgotten on the next sweep.
type IPRateLimiter struct {
	mu          sync.Mutex
	clients     map[string]*client
	r           rate.Limit
	b           int
	idleTimeout time.Duration
	lastSweep   time.Time
	now         func() time.Time
}

// NewIPRateLimiter creates a limiter allowing r requests per second with burst b.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		clients:     make(map[string]*client),
		r:           r,
		b:           b,
		idleTimeout: 10 * time.Minute,
		now:         time.Now,
	}
}

// Allow reports whether ip may make a request now.
func (i *IPRateLimiter) Allow(ip string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	if now.Sub(i.lastSweep) > i.idleTimeout {
		for k, c := range i.clients {
			if now.Sub(c.lastSeen) > i.idleTimeout {
				delete(i.clients, k)
			}
		}
		i.lastSweep = now
	}

	c, ok := i.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(i.r, i.b)}
		i.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.clients)
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	return RateLimitWith(NewIPRateLimiter(r, b))
}

// RateLimitWith is RateLimiter with a caller-owned limiter.
func RateLimitWith(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
