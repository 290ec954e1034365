package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_project_workspace_lock_assignment",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_plan_and_plan_dependency",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_workspace_metadata_and_issues",
		Up:      migrationV3,
	},
}

// LatestVersion returns the schema version a fully migrated database has.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// RunMigrations executes all pending migrations, each in its own transaction.
func RunMigrations(db *sql.DB) error {
	for _, migration := range migrations {
		if err := runMigration(db, migration); err != nil {
			return err
		}
	}
	return nil
}

func runMigration(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
	}
	defer tx.Rollback()

	// Checked inside the transaction so concurrent processes apply each
	// migration once.
	var applied int
	err = tx.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", migration.Version).Scan(&applied)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if applied > 0 {
		return nil
	}

	if err := migration.Up(tx); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
	}

	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}
	return nil
}

// migrationV1 creates the coordination tables.
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
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
			plan_id TEXT,
			plan_title TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
			FOREIGN KEY (project_id) REFERENCES project(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_workspace_project ON workspace(project_id);

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
	`)
	if err != nil {
		return fmt.Errorf("failed to create core tables: %w", err)
	}
	return nil
}

// migrationV2 adds plan metadata reconciled from plan files.
func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(`
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
	`)
	if err != nil {
		return fmt.Errorf("failed to create plan tables: %w", err)
	}
	return nil
}

// migrationV3 adds workspace name/description and linked issues.
func migrationV3(tx *sql.Tx) error {
	for _, column := range []string{"name", "description"} {
		exists, err := columnExists(tx, "workspace", column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE workspace ADD COLUMN %s TEXT", column)); err != nil {
			return fmt.Errorf("failed to add workspace.%s: %w", column, err)
		}
	}

	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS workspace_issue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workspace_id INTEGER NOT NULL,
			issue_url TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
			UNIQUE(workspace_id, issue_url),
			FOREIGN KEY (workspace_id) REFERENCES workspace(id) ON DELETE CASCADE
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create workspace_issue table: %w", err)
	}
	return nil
}

func columnExists(tx *sql.Tx, table, column string) (bool, error) {
	var count int
	err := tx.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s columns: %w", table, err)
	}
	return count > 0, nil
}
