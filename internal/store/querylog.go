package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QueryLog persists completed lookups and aggregates them for /stats.
type QueryLog struct {
	db  *gorm.DB
	now func() time.Time
}

// NewQueryLog constructs a QueryLog backed by GORM.
func NewQueryLog(db *gorm.DB) *QueryLog {
	return &QueryLog{db: db, now: time.Now}
}

// Entry is the data recorded for one completed lookup.
type Entry struct {
	RequestID      string
	Identity       int64
	TargetHandle   string
	Outcome        string
	Summary        string
	Basis          string
	EstimatedCount int
	Handles        []string
}

// Record appends one entry to the log.
func (l *QueryLog) Record(ctx context.Context, entry Entry) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("query log: not initialized")
	}
	requestID := strings.TrimSpace(entry.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	handles := entry.Handles
	if handles == nil {
		handles = []string{}
	}
	payload, errMarshal := json.Marshal(handles)
	if errMarshal != nil {
		return fmt.Errorf("query log: marshal handles: %w", errMarshal)
	}

	row := models.QueryRecord{
		RequestID:      requestID,
		Identity:       entry.Identity,
		TargetHandle:   strings.ToLower(strings.TrimSpace(entry.TargetHandle)),
		Outcome:        entry.Outcome,
		Summary:        entry.Summary,
		Basis:          entry.Basis,
		EstimatedCount: entry.EstimatedCount,
		Handles:        datatypes.JSON(payload),
		CreatedAt:      l.now().UTC(),
	}
	if errCreate := l.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return fmt.Errorf("query log: create: %w", errCreate)
	}
	return nil
}

// Stats is the per-identity aggregate shown by /stats.
type Stats struct {
	Total          int64
	TopHandle      string
	TopHandleCount int64
}

// HasTopHandle reports whether at least one query was recorded.
func (s Stats) HasTopHandle() bool {
	return s.Total > 0 && s.TopHandle != ""
}

// Stats returns the total query count and most-checked handle for identity.
// Ties are broken alphabetically.
func (l *QueryLog) Stats(ctx context.Context, identity int64) (Stats, error) {
	if l == nil || l.db == nil {
		return Stats{}, fmt.Errorf("query log: not initialized")
	}
	var stats Stats
	if errCount := l.db.WithContext(ctx).Model(&models.QueryRecord{}).
		Where("identity = ?", identity).
		Count(&stats.Total).Error; errCount != nil {
		return Stats{}, fmt.Errorf("query log: count: %w", errCount)
	}
	if stats.Total == 0 {
		return stats, nil
	}

	top, errTop := l.topHandles(ctx, l.db.WithContext(ctx).Where("identity = ?", identity), 1)
	if errTop != nil {
		return Stats{}, errTop
	}
	if len(top) > 0 {
		stats.TopHandle = top[0].Handle
		stats.TopHandleCount = top[0].Count
	}
	return stats, nil
}

// HandleCount pairs a handle with the number of lookups for it.
type HandleCount struct {
	Handle string `json:"handle"`
	Count  int64  `json:"count"`
}

// Summary is the global aggregate used by the admin API.
type Summary struct {
	TotalQueries    int64         `json:"total_queries"`
	DistinctUsers   int64         `json:"distinct_users"`
	NotFoundQueries int64         `json:"not_found_queries"`
	TopHandles      []HandleCount `json:"top_handles"`
}

// Summary aggregates the whole log.
func (l *QueryLog) Summary(ctx context.Context, topN int) (Summary, error) {
	if l == nil || l.db == nil {
		return Summary{}, fmt.Errorf("query log: not initialized")
	}
	if topN <= 0 {
		topN = 10
	}
	var summary Summary
	base := l.db.WithContext(ctx).Model(&models.QueryRecord{})
	if errCount := base.Session(&gorm.Session{}).Count(&summary.TotalQueries).Error; errCount != nil {
		return Summary{}, fmt.Errorf("query log: count: %w", errCount)
	}
	if errDistinct := base.Session(&gorm.Session{}).Distinct("identity").Count(&summary.DistinctUsers).Error; errDistinct != nil {
		return Summary{}, fmt.Errorf("query log: count users: %w", errDistinct)
	}
	if errNotFound := base.Session(&gorm.Session{}).
		Where("outcome = ?", models.QueryOutcomeNotFound).
		Count(&summary.NotFoundQueries).Error; errNotFound != nil {
		return Summary{}, fmt.Errorf("query log: count not found: %w", errNotFound)
	}
	top, errTop := l.topHandles(ctx, l.db.WithContext(ctx), topN)
	if errTop != nil {
		return Summary{}, errTop
	}
	summary.TopHandles = top
	return summary, nil
}

func (l *QueryLog) topHandles(ctx context.Context, scope *gorm.DB, limit int) ([]HandleCount, error) {
	var rows []HandleCount
	if errTop := scope.WithContext(ctx).Model(&models.QueryRecord{}).
		Select("target_handle AS handle, COUNT(*) AS count").
		Group("target_handle").
		Order("COUNT(*) DESC, target_handle ASC").
		Limit(limit).
		Scan(&rows).Error; errTop != nil {
		return nil, fmt.Errorf("query log: top handles: %w", errTop)
	}
	return rows, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Identity *int64
	Handle   string
	Limit    int
	BeforeID uint64
}

// List returns log entries newest first.
func (l *QueryLog) List(ctx context.Context, filter ListFilter) ([]models.QueryRecord, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("query log: not initialized")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := l.db.WithContext(ctx).Model(&models.QueryRecord{})
	if filter.Identity != nil {
		q = q.Where("identity = ?", *filter.Identity)
	}
	if handle := strings.ToLower(strings.TrimSpace(filter.Handle)); handle != "" {
		q = q.Where("target_handle = ?", strings.TrimPrefix(handle, "@"))
	}
	if filter.BeforeID > 0 {
		q = q.Where("id < ?", filter.BeforeID)
	}
	var rows []models.QueryRecord
	if errFind := q.Order("id DESC").Limit(limit).Find(&rows).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return []models.QueryRecord{}, nil
		}
		return nil, fmt.Errorf("query log: list: %w", errFind)
	}
	return rows, nil
}
