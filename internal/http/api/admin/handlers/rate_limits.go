package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimitHandler exposes stored admission windows.
type RateLimitHandler struct {
	limiter *ratelimit.GormLimiter
}

// NewRateLimitHandler constructs a rate limit handler.
func NewRateLimitHandler(limiter *ratelimit.GormLimiter) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter}
}

// Get returns the admission window of one identity.
func (h *RateLimitHandler) Get(c *gin.Context) {
	identity, errParse := strconv.ParseInt(strings.TrimSpace(c.Param("identity")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity"})
		return
	}
	record, errRecord := h.limiter.Record(c.Request.Context(), identity)
	if errRecord != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	policy := ratelimit.LoadSettingsConfig().Policy()
	remaining := policy.MaxPerWindow - record.Count
	if remaining < 0 {
		remaining = 0
	}
	c.JSON(http.StatusOK, gin.H{
		"identity":       record.Identity,
		"window_start":   record.WindowStart.UTC(),
		"count":          record.Count,
		"max_per_window": policy.MaxPerWindow,
		"remaining":      remaining,
		"reset_at":       record.WindowStart.Add(policy.Window).UTC(),
	})
}
