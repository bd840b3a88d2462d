package query

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Database wraps the sqlx handle so repository methods hang off one type.
type Database struct {
	*sqlx.DB
}

const tableDatabaseVersion = "database_version"

// InitDatabase opens (or creates) the SQLite database at path and brings the
// schema up to the current version.
func InitDatabase(path string) (*Database, error) {
	raw, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("InitDatabase: %w", err)
	}
	// Single writer; SQLite serializes anyway and this avoids SQLITE_BUSY.
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)

	db := &Database{raw}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("InitDatabase: %w", err)
	}

	exists, err := db.TableExists(tableDatabaseVersion)
	if err != nil {
		return nil, fmt.Errorf("InitDatabase: %w", err)
	}
	if !exists {
		if err := db.createSchema(); err != nil {
			return nil, err
		}
	}
	if err := db.migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

// TableExists reports whether a table of the given name is present.
func (db *Database) TableExists(name string) (bool, error) {
	var count int
	err := db.Get(&count, `
		SELECT count(name)
		FROM sqlite_master
		WHERE type='table' AND name=?`, name)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DbVersion returns the current schema version.
func (db *Database) DbVersion() (int, error) {
	var v int
	if err := db.Get(&v, "SELECT db_version FROM database_version LIMIT 1"); err != nil {
		return 0, fmt.Errorf("DbVersion: %w", err)
	}
	return v, nil
}

func (db *Database) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			path TEXT NOT NULL UNIQUE,
			platform TEXT NOT NULL DEFAULT 'Unknown',
			enabled BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS gaming_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id),
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			duration_seconds INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_start ON gaming_sessions(user_id, start_time)`,
		`CREATE TABLE IF NOT EXISTS limits (
			user_id INTEGER NOT NULL REFERENCES users(id),
			day TEXT NOT NULL,
			limit_seconds INTEGER NOT NULL,
			PRIMARY KEY (user_id, day)
		)`,
		`CREATE TABLE IF NOT EXISTS preferences (
			user_id INTEGER PRIMARY KEY REFERENCES users(id),
			stop_on_unfocus BOOLEAN NOT NULL DEFAULT TRUE,
			notify_new_game BOOLEAN NOT NULL DEFAULT TRUE,
			notify_game_started BOOLEAN NOT NULL DEFAULT TRUE,
			notify_game_stopped BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS database_version (db_version INTEGER DEFAULT 0)`,
		`INSERT INTO database_version VALUES (1)`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("createSchema: %w", err)
		}
	}
	return nil
}

// migrate applies incremental schema upgrades. Each step bumps db_version
// inside one transaction so a failed upgrade leaves the old schema intact.
func (db *Database) migrate() error {
	version, err := db.DbVersion()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	// Version 1 is current; future ALTERs go here:
	//
	//	if version < 2 { ... UPDATE database_version SET db_version=2 }
	_ = version
	return nil
}

// formatTime and parseTime pin the stored timestamp representation. All
// times are persisted as RFC3339 UTC text.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
