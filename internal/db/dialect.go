package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dialect identifiers supported by the database layer.
const (
	// DialectPostgres is the PostgreSQL dialect name.
	DialectPostgres = "postgres"
	// DialectSQLite is the SQLite dialect name.
	DialectSQLite = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// LockForUpdate adds a row lock on dialects that support SELECT ... FOR UPDATE.
// SQLite serializes writers on its own and rejects the clause.
func LockForUpdate(conn *gorm.DB) *gorm.DB {
	if conn == nil || IsSQLite(conn) {
		return conn
	}
	return conn.Clauses(clause.Locking{Strength: "UPDATE"})
}
