package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for fresh installs.
// It reflects the state after all migrations.
//
// This is the single source of truth for the schema. Tests load it through
// GetSchemaSQL() instead of declaring their own tables, so a repository that
// references a missing column fails at test time.
//
// Column names and constraints are shared with every other tool that opens
// the same database file. Change them only through a migration.
//
// Timestamps are TEXT in UTC, formatted by clock.Format, so they sort
// lexically.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS project (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repository_id TEXT NOT NULL UNIQUE,
	remote_url TEXT,
	last_git_root TEXT,
	highest_plan_id INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS workspace (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL,
	task_id TEXT,
	workspace_path TEXT NOT NULL UNIQUE,
	original_plan_file_path TEXT,
	branch TEXT,
	name TEXT,
	description TEXT,
	plan_id TEXT,
	plan_title TEXT,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	FOREIGN KEY (project_id) REFERENCES project(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_workspace_project ON workspace(project_id);

CREATE TABLE IF NOT EXISTS workspace_issue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	workspace_id INTEGER NOT NULL,
	issue_url TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	UNIQUE(workspace_id, issue_url),
	FOREIGN KEY (workspace_id) REFERENCES workspace(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS workspace_lock (
	workspace_id INTEGER PRIMARY KEY,
	lock_type TEXT NOT NULL CHECK(lock_type IN ('persistent', 'pid')),
	pid INTEGER,
	started_at TEXT NOT NULL,
	hostname TEXT NOT NULL,
	command TEXT NOT NULL,
	FOREIGN KEY (workspace_id) REFERENCES workspace(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS assignment (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL,
	plan_uuid TEXT NOT NULL,
	plan_id INTEGER,
	workspace_id INTEGER,
	claimed_by_user TEXT,
	status TEXT NOT NULL DEFAULT 'claimed',
	assigned_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	UNIQUE(project_id, plan_uuid),
	FOREIGN KEY (project_id) REFERENCES project(id) ON DELETE CASCADE,
	FOREIGN KEY (workspace_id) REFERENCES workspace(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_assignment_workspace ON assignment(workspace_id);

CREATE TABLE IF NOT EXISTS plan (
	uuid TEXT PRIMARY KEY,
	project_id INTEGER NOT NULL,
	plan_id INTEGER,
	title TEXT,
	status TEXT,
	parent_uuid TEXT,
	filename TEXT,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	FOREIGN KEY (project_id) REFERENCES project(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_plan_project ON plan(project_id);

CREATE TABLE IF NOT EXISTS plan_dependency (
	plan_uuid TEXT NOT NULL,
	depends_on_uuid TEXT NOT NULL,
	PRIMARY KEY (plan_uuid, depends_on_uuid),
	FOREIGN KEY (plan_uuid) REFERENCES plan(uuid) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// InitSchema brings the schema of db up to date.
// A fresh database gets SchemaSQL directly with every migration marked as
// applied; an existing one runs its pending migrations.
func InitSchema(db *sql.DB) error {
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	if tableCount > 0 {
		return RunMigrations(db)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	// Another process may have created the schema while we waited for the
	// write lock.
	err = tx.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if tableCount > 0 {
		if err := tx.Commit(); err != nil {
			return err
		}
		return RunMigrations(db)
	}

	if _, err := tx.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	for _, m := range migrations {
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return tx.Commit()
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
