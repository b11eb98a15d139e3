package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSQLitePath is the database file used when no DSN is configured.
const DefaultSQLitePath = "namebot.db"

// Open connects to the database described by dsn.
// DSNs starting with "file:" (or ending in .db) use SQLite, everything else PostgreSQL.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}
	cfg := &gorm.Config{Logger: logger.New(log.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})}

	var dialector gorm.Dialector
	if isSQLiteDSN(trimmed) {
		dialector = sqlite.Open(trimmed)
	} else {
		dialector = postgres.Open(trimmed)
	}
	conn, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	if IsSQLite(conn) {
		sqlDB, errDB := conn.DB()
		if errDB != nil {
			return nil, fmt.Errorf("db: sql handle: %w", errDB)
		}
		// SQLite allows one writer at a time.
		sqlDB.SetMaxOpenConns(1)
	}
	return conn, nil
}

// SQLiteDSN constructs a SQLite DSN with default parameters.
func SQLiteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = DefaultSQLitePath
	}
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = "file:" + dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join([]string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
		"_foreign_keys=on",
		"_synchronous=NORMAL",
	}, "&")
}

func isSQLiteDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "file:") || lower == ":memory:" {
		return true
	}
	if idx := strings.Index(lower, "?"); idx >= 0 {
		lower = lower[:idx]
	}
	return strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite")
}

// postgresUniqueViolation is the SQLSTATE for unique_violation.
const postgresUniqueViolation = "23505"

// IsUniqueViolation reports whether err was caused by a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
