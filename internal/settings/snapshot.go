package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type dbConfigSnapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var (
	snapshotMu sync.RWMutex
	snapshot   = dbConfigSnapshot{values: map[string]json.RawMessage{}}
)

// StoreDBConfig replaces the in-memory settings snapshot.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		next[key] = append(json.RawMessage(nil), value...)
	}
	snapshotMu.Lock()
	snapshot = dbConfigSnapshot{updatedAt: updatedAt, values: next}
	snapshotMu.Unlock()
}

// DBConfigValue returns the raw JSON value for key from the snapshot.
func DBConfigValue(key string) (json.RawMessage, bool) {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	value, ok := snapshot.values[key]
	if !ok || len(value) == 0 {
		return nil, false
	}
	return value, true
}

// DBConfigUpdatedAt reports the newest update timestamp in the snapshot.
func DBConfigUpdatedAt() time.Time {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	return snapshot.updatedAt
}

// Refresh rebuilds the in-memory settings snapshot from the DB.
func Refresh(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("settings: nil db")
	}
	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return fmt.Errorf("settings: load: %w", errFind)
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = json.RawMessage(row.Value)
		if rowUpdatedAt := row.UpdatedAt.UTC(); rowUpdatedAt.After(maxUpdatedAt) {
			maxUpdatedAt = rowUpdatedAt
		}
	}

	StoreDBConfig(maxUpdatedAt, values)
	return nil
}

const defaultRefreshInterval = time.Minute

// Refresher periodically reloads the settings snapshot so that edits made by
// other processes sharing the database are picked up.
type Refresher struct {
	db       *gorm.DB
	interval time.Duration
}

// NewRefresher constructs a settings refresher.
func NewRefresher(db *gorm.DB, interval time.Duration) *Refresher {
	if db == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &Refresher{db: db, interval: interval}
}

// Start runs the refresh loop in the background.
func (r *Refresher) Start(ctx context.Context) {
	if r == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go r.run(ctx)
	log.Infof("settings refresher started (interval=%s)", r.interval)
}

func (r *Refresher) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := Refresh(refreshCtx, r.db); err != nil {
				log.WithError(err).Warn("settings refresher: refresh failed")
			}
			cancel()
		}
	}
}
