// Package storage provides the local SQLite cache of indexed LMS records.
// Rows are keyed by their upstream natural identifiers and written with
// upsert-on-conflict semantics; last_indexed tracks the most recent
// successful write for the freshness checks.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Store wraps the SQLite database holding indexed course content.
type Store struct {
	db *sql.DB
}

// Open initializes the SQLite database at baseDir/canvas-mcp.db, creating
// the directory and schema as needed. Idempotent.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	dbPath := filepath.Join(baseDir, "canvas-mcp.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0o600)

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS courses (
		  id             INTEGER PRIMARY KEY,
		  name           TEXT NOT NULL,
		  course_code    TEXT NOT NULL,
		  workflow_state TEXT NOT NULL,
		  raw_json       TEXT NOT NULL,
		  last_indexed   INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS assignments (
		  course_id    INTEGER NOT NULL,
		  id           INTEGER NOT NULL,
		  name         TEXT NOT NULL,
		  due_at       INTEGER,
		  description  TEXT,
		  raw_json     TEXT NOT NULL,
		  last_indexed INTEGER NOT NULL,
		  PRIMARY KEY (course_id, id)
		);

		CREATE TABLE IF NOT EXISTS files (
		  course_id    INTEGER NOT NULL,
		  id           INTEGER NOT NULL,
		  display_name TEXT NOT NULL,
		  content_type TEXT,
		  url          TEXT,
		  raw_json     TEXT NOT NULL,
		  last_indexed INTEGER NOT NULL,
		  PRIMARY KEY (course_id, id)
		);

		CREATE TABLE IF NOT EXISTS syllabi (
		  course_id    INTEGER PRIMARY KEY,
		  body         TEXT NOT NULL,
		  last_indexed INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_assignments_course
		ON assignments(course_id, last_indexed DESC);

		CREATE INDEX IF NOT EXISTS idx_files_course
		ON files(course_id, last_indexed DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("apply schema v1: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", 1)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}
