package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const inMemory = ":memory:"

// Open opens the leaseworks SQLite database at dbPath, creating its parent
// directory when needed. It enables WAL, foreign keys (offer lines cascade
// with their offer) and a busy timeout, then validates connectivity.
func Open(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("open sqlite database: empty path")
	}
	if dbPath != inMemory && !strings.HasPrefix(dbPath, "file:") {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", dbPath, err)
	}
	// Pragmas are per connection, and an in-memory database only lives on one.
	db.SetMaxOpenConns(1)

	journal := "WAL"
	if dbPath == inMemory {
		journal = "MEMORY"
	}
	if _, err := db.Exec(fmt.Sprintf(`
		PRAGMA journal_mode = %s;
		PRAGMA foreign_keys = ON;
		PRAGMA busy_timeout = 5000;
	`, journal)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set sqlite pragmas: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return db, nil
}
