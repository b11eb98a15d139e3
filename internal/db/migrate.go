package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/models"
	internalsettings "github.com/Xcertik-Realist/X-name-change-bot/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	var errMigrate error
	switch DialectName(conn) {
	case DialectSQLite:
		errMigrate = migrateSQLite(conn)
	case DialectPostgres, "":
		errMigrate = migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
	if errMigrate != nil {
		return errMigrate
	}

	if errSeed := ensureIntSetting(conn, internalsettings.RateLimitMaxPerWindowKey, internalsettings.DefaultRateLimitMaxPerWindow); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureIntSetting(conn, internalsettings.RateLimitWindowSecondsKey, internalsettings.DefaultRateLimitWindowSeconds); errSeed != nil {
		return errSeed
	}
	return nil
}

// migratePostgres applies the schema through AutoMigrate plus explicit indexes.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(
		&models.RateLimitRecord{},
		&models.QueryRecord{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errIdentityUnique := conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_rate_limit_records_identity
		ON rate_limit_records (identity)
	`).Error; errIdentityUnique != nil {
		return fmt.Errorf("db: create rate limit identity index: %w", errIdentityUnique)
	}
	if errHandleIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_query_records_identity_handle
		ON query_records (identity, target_handle)
	`).Error; errHandleIndex != nil {
		return fmt.Errorf("db: create query handle index: %w", errHandleIndex)
	}
	return nil
}

// sqliteTable is the SQLite schema of one model.
// JSON columns are TEXT: a jsonb column gets NUMERIC affinity in SQLite and
// would turn a stored 10 into an integer that datatypes.JSON cannot scan.
type sqliteTable struct {
	name    string
	create  string
	indexes []string
}

var sqliteTables = []sqliteTable{
	{
		name: "rate_limit_records",
		create: `CREATE TABLE IF NOT EXISTS rate_limit_records (
			id integer PRIMARY KEY AUTOINCREMENT,
			identity integer NOT NULL,
			window_start datetime NOT NULL,
			count integer NOT NULL DEFAULT 0,
			created_at datetime NOT NULL,
			updated_at datetime NOT NULL
		)`,
		indexes: []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_rate_limit_records_identity ON rate_limit_records (identity)`,
		},
	},
	{
		name: "query_records",
		create: `CREATE TABLE IF NOT EXISTS query_records (
			id integer PRIMARY KEY AUTOINCREMENT,
			request_id varchar(64) NOT NULL,
			identity integer NOT NULL,
			target_handle varchar(64) NOT NULL,
			outcome varchar(32) NOT NULL,
			summary text NOT NULL,
			basis varchar(32),
			estimated_count integer NOT NULL DEFAULT 0,
			handles text,
			created_at datetime NOT NULL
		)`,
		indexes: []string{
			`CREATE INDEX IF NOT EXISTS idx_query_records_request_id ON query_records (request_id)`,
			`CREATE INDEX IF NOT EXISTS idx_query_records_target_handle ON query_records (target_handle)`,
			`CREATE INDEX IF NOT EXISTS idx_query_records_identity_created_at ON query_records (identity, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_query_records_identity_handle ON query_records (identity, target_handle)`,
		},
	},
	{
		name: "settings",
		create: `CREATE TABLE IF NOT EXISTS settings (
			"key" varchar(255) PRIMARY KEY,
			value text,
			created_at datetime NOT NULL,
			updated_at datetime NOT NULL
		)`,
	},
}

// migrateSQLite creates the SQLite schema, rebuilding tables left with JSON-typed columns.
func migrateSQLite(conn *gorm.DB) error {
	for _, table := range sqliteTables {
		if errRebuild := rebuildSQLiteTableIfNeeded(conn, table); errRebuild != nil {
			return errRebuild
		}
		if errCreate := conn.Exec(table.create).Error; errCreate != nil {
			return fmt.Errorf("db: create sqlite table %s: %w", table.name, errCreate)
		}
		for _, index := range table.indexes {
			if errIndex := conn.Exec(index).Error; errIndex != nil {
				return fmt.Errorf("db: create sqlite index on %s: %w", table.name, errIndex)
			}
		}
	}
	return nil
}

// sqliteTableInfo mirrors PRAGMA table_info output.
type sqliteTableInfo struct {
	Cid          int            `gorm:"column:cid"`        // Column index.
	Name         string         `gorm:"column:name"`       // Column name.
	Type         string         `gorm:"column:type"`       // Column type.
	NotNull      int            `gorm:"column:notnull"`    // Not-null flag.
	DefaultValue sql.NullString `gorm:"column:dflt_value"` // Default value string.
	PK           int            `gorm:"column:pk"`         // Primary key flag.
}

// rebuildSQLiteTableIfNeeded recreates a table whose columns were declared as json/jsonb.
// Copying into the TEXT column stores numbers as their text form again.
func rebuildSQLiteTableIfNeeded(conn *gorm.DB, table sqliteTable) error {
	migrator := conn.Migrator()
	if !migrator.HasTable(table.name) {
		return nil
	}

	var info []sqliteTableInfo
	pragmaSQL := fmt.Sprintf("PRAGMA table_info(%s)", quoteSQLiteIdentifier(table.name))
	if errQuery := conn.Raw(pragmaSQL).Scan(&info).Error; errQuery != nil {
		return fmt.Errorf("db: read sqlite table info %s: %w", table.name, errQuery)
	}

	needsRebuild := false
	oldColumns := make([]string, 0, len(info))
	for _, col := range info {
		if col.Name == "" {
			continue
		}
		oldColumns = append(oldColumns, col.Name)
		if strings.Contains(strings.ToLower(col.Type), "json") {
			needsRebuild = true
		}
	}
	if !needsRebuild {
		return nil
	}

	legacyName := uniqueSQLiteLegacyName(migrator, table.name)
	if errRename := migrator.RenameTable(table.name, legacyName); errRename != nil {
		return fmt.Errorf("db: rename sqlite table %s: %w", table.name, errRename)
	}
	// Index names are global in SQLite and moved with the renamed table.
	for _, index := range sqliteIndexNames(conn, legacyName) {
		if errDrop := conn.Exec("DROP INDEX IF EXISTS " + quoteSQLiteIdentifier(index)).Error; errDrop != nil {
			return fmt.Errorf("db: drop sqlite index %s: %w", index, errDrop)
		}
	}
	if errCreate := conn.Exec(table.create).Error; errCreate != nil {
		return fmt.Errorf("db: recreate sqlite table %s: %w", table.name, errCreate)
	}

	var newInfo []sqliteTableInfo
	if errQuery := conn.Raw(pragmaSQL).Scan(&newInfo).Error; errQuery != nil {
		return fmt.Errorf("db: read sqlite table info %s: %w", table.name, errQuery)
	}
	newColumns := make(map[string]struct{}, len(newInfo))
	for _, col := range newInfo {
		newColumns[col.Name] = struct{}{}
	}
	quotedColumns := make([]string, 0, len(oldColumns))
	for _, col := range oldColumns {
		if _, ok := newColumns[col]; ok {
			quotedColumns = append(quotedColumns, quoteSQLiteIdentifier(col))
		}
	}
	if len(quotedColumns) > 0 {
		columnList := strings.Join(quotedColumns, ", ")
		copySQL := fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s",
			quoteSQLiteIdentifier(table.name),
			columnList,
			columnList,
			quoteSQLiteIdentifier(legacyName),
		)
		if errCopy := conn.Exec(copySQL).Error; errCopy != nil {
			return fmt.Errorf("db: copy sqlite data for %s: %w", table.name, errCopy)
		}
	}
	if errDrop := migrator.DropTable(legacyName); errDrop != nil {
		return fmt.Errorf("db: drop sqlite legacy table %s: %w", legacyName, errDrop)
	}
	return nil
}

// sqliteIndexNames lists the named indexes of a table.
func sqliteIndexNames(conn *gorm.DB, tableName string) []string {
	var names []string
	_ = conn.Raw(
		"SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL",
		tableName,
	).Scan(&names).Error
	return names
}

// uniqueSQLiteLegacyName builds a non-conflicting legacy table name.
func uniqueSQLiteLegacyName(migrator gorm.Migrator, tableName string) string {
	base := tableName + "_legacy"
	name := base
	for i := 1; migrator.HasTable(name); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	return name
}

// quoteSQLiteIdentifier quotes a SQLite identifier safely.
func quoteSQLiteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ensureIntSetting ensures an integer setting exists and defaults when empty.
func ensureIntSetting(conn *gorm.DB, key string, value int) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}

	var existing models.Setting
	if errFind := conn.Where("key = ?", key).First(&existing).Error; errFind == nil {
		trimmed := strings.TrimSpace(string(existing.Value))
		if len(existing.Value) == 0 || trimmed == "" || trimmed == "null" {
			if errUpdate := conn.Model(&existing).Updates(map[string]any{
				"value":      datatypes.JSON(payload),
				"updated_at": time.Now().UTC(),
			}).Error; errUpdate != nil {
				return fmt.Errorf("db: update %s setting: %w", key, errUpdate)
			}
		}
		return nil
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query %s setting: %w", key, errFind)
	}

	now := time.Now().UTC()
	setting := models.Setting{
		Key:       key,
		Value:     datatypes.JSON(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create %s setting: %w", key, errCreate)
	}
	return nil
}
