// Package database stores run history and the thread exclusion list in sqlite.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
        run_id TEXT PRIMARY KEY,
        started_at INTEGER,
        finished_at INTEGER,
        active INTEGER,
        archived INTEGER,
        merged INTEGER,
        posts INTEGER,
        degraded INTEGER,
        dropped INTEGER,
        output TEXT,
        error TEXT
    );`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at);`,
	`CREATE TABLE IF NOT EXISTS thread_outcomes (
        run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
        thread_id TEXT NOT NULL,
        kind TEXT NOT NULL,
        reasons TEXT,
        PRIMARY KEY (run_id, thread_id)
    );`,
	`CREATE TABLE IF NOT EXISTS exclusions (
        thread_id TEXT PRIMARY KEY,
        channel_id TEXT,
        reason TEXT,
        timestamp INTEGER
    );`,
}

// InitDB opens the history database at dbPath, creating the file, its
// directory and the schema when missing.
func InitDB(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Foreign keys are per connection in sqlite; the DSN applies it to every one.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return db, nil
}
