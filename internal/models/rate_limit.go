package models

import "time"

// RateLimitRecord tracks the fixed admission window of one requester.
// Rows are created on first request and updated in place afterwards.
type RateLimitRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Identity    int64     `gorm:"not null;uniqueIndex:idx_rate_limit_records_identity"` // Requester identity.
	WindowStart time.Time `gorm:"not null"`                                             // Start of the current window.
	Count       int       `gorm:"not null;default:0"`                                   // Requests admitted in the window.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
