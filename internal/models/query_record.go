package models

import (
	"time"

	"gorm.io/datatypes"
)

// Query outcomes persisted in QueryRecord.Outcome.
const (
	QueryOutcomeEstimated = "estimated"
	QueryOutcomeNotFound  = "not_found"
)

// QueryRecord is an append-only log entry for one completed handle lookup.
type QueryRecord struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`        // Primary key.
	RequestID string `gorm:"type:varchar(64);not null;index"` // Correlation id of the request.

	Identity     int64  `gorm:"not null;index:idx_query_records_identity_created_at,priority:1"` // Requester identity.
	TargetHandle string `gorm:"type:varchar(64);not null;index"`                                 // Normalized handle that was checked.

	Outcome        string         `gorm:"type:varchar(32);not null"` // estimated or not_found.
	Summary        string         `gorm:"type:text;not null"`        // Human readable outcome summary.
	Basis          string         `gorm:"type:varchar(32)"`          // Estimate basis when estimated.
	EstimatedCount int            `gorm:"not null;default:0"`        // Estimated rename count.
	Handles        datatypes.JSON `gorm:"type:jsonb"`                // Detected previous handles.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_query_records_identity_created_at,priority:2"` // Record timestamp.
}
