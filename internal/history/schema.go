package history

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

const currentSchemaVersion = 1

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

// last_used holds Unix nanoseconds so ordering never depends on string
// formatting of timestamps.
const queriesTable = `
CREATE TABLE IF NOT EXISTS queries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel TEXT NOT NULL,
	query TEXT NOT NULL,
	use_count INTEGER NOT NULL DEFAULT 1,
	last_used INTEGER NOT NULL,
	UNIQUE(channel, query)
);

CREATE INDEX IF NOT EXISTS idx_queries_recent ON queries(channel, last_used DESC);
`

// initSchema brings the database up to currentSchemaVersion.
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		version = 0
	} else if err != nil {
		return fmt.Errorf("failed to check schema version: %w", err)
	}

	if version >= currentSchemaVersion {
		log.Debug("History schema is up to date", "version", version)
		return nil
	}

	log.Debug("Migrating history schema", "from", version, "to", currentSchemaVersion)
	if version < 1 {
		if err := migrateV1(db); err != nil {
			return fmt.Errorf("failed to migrate to v1: %w", err)
		}
	}
	return nil
}

func migrateV1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(queriesTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", 1); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return tx.Commit()
}
