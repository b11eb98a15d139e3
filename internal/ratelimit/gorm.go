package ratelimit

import (
	"context"
	"fmt"
	"time"

	internaldb "github.com/Xcertik-Realist/X-name-change-bot/internal/db"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/models"
	"gorm.io/gorm"
)

// GormLimiter persists admission windows in the rate_limit_records table.
// Calls for the same identity are serialized in-process by a keyed mutex and
// across processes by the row lock and unique identity index.
type GormLimiter struct {
	db    *gorm.DB
	locks *KeyedMutex
}

// NewGormLimiter constructs a GormLimiter.
func NewGormLimiter(db *gorm.DB) *GormLimiter {
	return &GormLimiter{db: db, locks: NewKeyedMutex()}
}

// Allow checks and records one request for identity.
func (l *GormLimiter) Allow(ctx context.Context, identity int64, policy Policy, now time.Time) (Result, error) {
	if l == nil || l.db == nil {
		return Result{}, fmt.Errorf("rate limit db: not initialized")
	}
	unlock := l.locks.Lock(identity)
	defer unlock()

	now = now.UTC()
	result, errAllow := l.allowOnce(ctx, identity, policy, now)
	if errAllow != nil && internaldb.IsUniqueViolation(errAllow) {
		// Another process created the first record concurrently; the row exists now.
		result, errAllow = l.allowOnce(ctx, identity, policy, now)
	}
	if errAllow != nil {
		return Result{}, fmt.Errorf("rate limit db: %w", errAllow)
	}
	return result, nil
}

func (l *GormLimiter) allowOnce(ctx context.Context, identity int64, policy Policy, now time.Time) (Result, error) {
	var result Result
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.RateLimitRecord
		if errFind := internaldb.LockForUpdate(tx).
			Where("identity = ?", identity).
			Limit(1).
			Find(&rows).Error; errFind != nil {
			return errFind
		}

		state := windowState{}
		if len(rows) > 0 {
			state = windowState{exists: true, start: rows[0].WindowStart.UTC(), count: rows[0].Count}
		}
		next, decision := decide(state, policy, now)
		result = decision
		if !decision.Allowed || !next.exists {
			return nil
		}

		if len(rows) == 0 {
			return tx.Create(&models.RateLimitRecord{
				Identity:    identity,
				WindowStart: next.start,
				Count:       next.count,
				CreatedAt:   now,
				UpdatedAt:   now,
			}).Error
		}
		return tx.Model(&models.RateLimitRecord{}).
			Where("id = ?", rows[0].ID).
			Updates(map[string]any{
				"window_start": next.start,
				"count":        next.count,
				"updated_at":   now,
			}).Error
	})
	return result, errTx
}

// Record returns the stored window for identity, or nil when none exists.
func (l *GormLimiter) Record(ctx context.Context, identity int64) (*models.RateLimitRecord, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("rate limit db: not initialized")
	}
	var rows []models.RateLimitRecord
	if errFind := l.db.WithContext(ctx).Where("identity = ?", identity).Limit(1).Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("rate limit db: find record: %w", errFind)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
