package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/models"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/store"
	"github.com/gin-gonic/gin"
)

// QueryHandler exposes the query log.
type QueryHandler struct {
	queries *store.QueryLog
}

// NewQueryHandler constructs a query log handler.
func NewQueryHandler(queries *store.QueryLog) *QueryHandler {
	return &QueryHandler{queries: queries}
}

// Stats returns global aggregates.
func (h *QueryHandler) Stats(c *gin.Context) {
	topN := 10
	if raw := strings.TrimSpace(c.Query("top")); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid top"})
			return
		}
		topN = parsed
	}
	summary, errSummary := h.queries.Summary(c.Request.Context(), topN)
	if errSummary != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query stats failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// List returns query records newest first, filtered by identity and handle.
func (h *QueryHandler) List(c *gin.Context) {
	var filter store.ListFilter
	if raw := strings.TrimSpace(c.Query("identity")); raw != "" {
		identity, errParse := strconv.ParseInt(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity"})
			return
		}
		filter.Identity = &identity
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, errParse := strconv.Atoi(raw)
		if errParse != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = limit
	}
	if raw := strings.TrimSpace(c.Query("before_id")); raw != "" {
		beforeID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before_id"})
			return
		}
		filter.BeforeID = beforeID
	}
	filter.Handle = c.Query("handle")

	rows, errList := h.queries.List(c.Request.Context(), filter)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list queries failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatQueryRecord(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"queries": out})
}

func formatQueryRecord(r *models.QueryRecord) gin.H {
	handles := json.RawMessage(r.Handles)
	if len(handles) == 0 {
		handles = json.RawMessage("[]")
	}
	return gin.H{
		"id":              r.ID,
		"request_id":      r.RequestID,
		"identity":        r.Identity,
		"target_handle":   r.TargetHandle,
		"outcome":         r.Outcome,
		"summary":         r.Summary,
		"basis":           r.Basis,
		"estimated_count": r.EstimatedCount,
		"handles":         handles,
		"created_at":      r.CreatedAt.UTC().Format(time.RFC3339),
	}
}
