// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup goes through the db package, so tests run against the
// authoritative schema and never declare their own tables.
package sqlite_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/example/rig/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// setupFileDB opens n independent handles on one database file, the way
// separate processes would.
func setupFileDB(t *testing.T, n int) []*sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rig.db")
	handles := make([]*sql.DB, 0, n)
	for i := 0; i < n; i++ {
		h, err := db.Open(path)
		if err != nil {
			t.Fatalf("failed to open handle %d: %v", i, err)
		}
		handles = append(handles, h)
	}

	t.Cleanup(func() {
		for _, h := range handles {
			h.Close()
		}
	})

	return handles
}

// seedProject inserts a project and returns its ID.
func seedProject(t *testing.T, db *sql.DB, repositoryID string, highest int) int64 {
	t.Helper()
	if repositoryID == "" {
		repositoryID = "github.com/acme/app"
	}
	res, err := db.Exec("INSERT INTO project (repository_id, highest_plan_id) VALUES (?, ?)", repositoryID, highest)
	if err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

// seedWorkspace inserts a workspace and returns its ID.
func seedWorkspace(t *testing.T, db *sql.DB, projectID int64, path, createdAt string) int64 {
	t.Helper()
	if createdAt == "" {
		createdAt = "2025-01-01T00:00:00.000Z"
	}
	res, err := db.Exec("INSERT INTO workspace (project_id, workspace_path, created_at, updated_at) VALUES (?, ?, ?, ?)",
		projectID, path, createdAt, createdAt)
	if err != nil {
		t.Fatalf("failed to seed workspace: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

// seedLock inserts a lock row.
func seedLock(t *testing.T, db *sql.DB, workspaceID int64, lockType string, pid int, startedAt string) {
	t.Helper()
	var pidArg any
	if pid != 0 {
		pidArg = pid
	}
	_, err := db.Exec("INSERT INTO workspace_lock (workspace_id, lock_type, pid, started_at, hostname, command) VALUES (?, ?, ?, ?, 'host', 'cmd')",
		workspaceID, lockType, pidArg, startedAt)
	if err != nil {
		t.Fatalf("failed to seed lock: %v", err)
	}
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}
