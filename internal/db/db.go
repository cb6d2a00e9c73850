// Package db stores the evaluation history in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

// timeFormat sorts lexicographically in chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a SQLite connection holding the history tables.
type DB struct {
	*sql.DB
	path string
}

// migrations are applied in order; PRAGMA user_version records progress.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS evaluations (
		id              TEXT PRIMARY KEY,
		created_at      TEXT NOT NULL,
		query           TEXT NOT NULL DEFAULT '',
		command         TEXT NOT NULL,
		is_safe         INTEGER NOT NULL,
		confidence      REAL NOT NULL,
		source          TEXT NOT NULL,
		rationale       TEXT NOT NULL DEFAULT '',
		matched_pattern TEXT NOT NULL DEFAULT '',
		gated           INTEGER NOT NULL DEFAULT 0,
		executed        INTEGER NOT NULL DEFAULT 0,
		exit_code       INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at)`,
}

// Open opens the database at path without migrating it.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA journal_mode = WAL`,
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("configuring database: %w", err)
		}
	}
	return &DB{DB: conn, path: path}, nil
}

// OpenAndMigrate opens the database and applies pending migrations.
func OpenAndMigrate(path string) (*DB, error) {
	database, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

// Migrate applies pending schema migrations.
func (db *DB) Migrate() error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("starting migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", i+1, err)
		}
	}
	return nil
}

// SchemaVersion returns the applied migration count.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}
