// Package db owns the lifecycle of the SQLite store: opening it with the
// pragmas every process must agree on, and bringing its schema up to date.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/rig/internal/ports/secondary"
)

// BusyTimeout is how long a connection waits on another process's write
// lock before failing with SQLITE_BUSY.
const BusyTimeout = 5 * time.Second

// dsnParams are applied to every connection.
// _txlock=immediate makes BEGIN take the write lock up front, so two
// read-then-write transactions queue on the busy timeout instead of
// failing when both try to upgrade.
var dsnParams = fmt.Sprintf("_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate",
	BusyTimeout.Milliseconds())

// DefaultPath returns the path of the shared database file
// ($XDG_CONFIG_HOME/rig/rig.db).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, "rig", "rig.db"), nil
}

// Open opens the database at path, creating it and its parent directory if
// needed, and runs pending migrations. Failures match
// secondary.ErrStoreUnavailable.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create database directory: %w", secondary.ErrStoreUnavailable, err)
	}

	database, err := sql.Open("sqlite3", path+"?"+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", secondary.ErrStoreUnavailable, err)
	}

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("%w: failed to open database %s: %w", secondary.ErrStoreUnavailable, path, err)
	}

	if err := InitSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema: %w", secondary.ErrStoreUnavailable, err)
	}

	return database, nil
}

// OpenMemory opens a private in-memory database with the current schema.
// Every connection to ":memory:" is a separate database, so the pool is
// pinned to one connection.
func OpenMemory() (*sql.DB, error) {
	database, err := sql.Open("sqlite3", ":memory:?"+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", secondary.ErrStoreUnavailable, err)
	}
	database.SetMaxOpenConns(1)

	if err := InitSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema: %w", secondary.ErrStoreUnavailable, err)
	}
	return database, nil
}
