// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Thermoquad/cn105/internal/history"
)

type historyQuery struct {
	Session string    `form:"session"`
	Since   time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit   int       `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// GetHistory handles GET /api/history?session=&since=&limit=.
func (h *Handler) GetHistory(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}

	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	changes, err := history.List(c.Request.Context(), h.db, history.Query{
		SessionID: q.Session,
		Since:     q.Since,
		Limit:     q.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, changes)
}
