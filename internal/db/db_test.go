package db

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/rig/internal/ports/secondary"
)

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rig.db")

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer database.Close()

	for _, table := range []string{"project", "workspace", "workspace_issue", "workspace_lock", "assignment", "plan", "plan_dependency"} {
		if !tableExists(t, database, table) {
			t.Errorf("table %s missing", table)
		}
	}

	var version int
	if err := database.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("failed to read schema version: %v", err)
	}
	if version != LatestVersion() {
		t.Errorf("schema version = %d, want %d", version, LatestVersion())
	}
}

func TestOpenTwiceIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer second.Close()

	var rows int
	if err := second.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&rows); err != nil {
		t.Fatalf("failed to count versions: %v", err)
	}
	if rows != len(migrations) {
		t.Errorf("schema_version rows = %d, want %d", rows, len(migrations))
	}
}

func TestOpenEnablesForeignKeysAndWAL(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "rig.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer database.Close()

	var fk int
	if err := database.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}

	var mode string
	if err := database.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestMigrateFromVersionOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	raw, err := sql.Open("sqlite3", path+"?"+dsnParams)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := raw.Exec("CREATE TABLE schema_version (version INTEGER PRIMARY KEY, applied_at DATETIME DEFAULT CURRENT_TIMESTAMP)"); err != nil {
		t.Fatalf("create schema_version: %v", err)
	}
	tx, err := raw.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := migrationV1(tx); err != nil {
		t.Fatalf("migrationV1: %v", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
		t.Fatalf("record v1: %v", err)
	}
	if _, err := tx.Exec("INSERT INTO project (repository_id) VALUES ('github.com/acme/app')"); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	raw.Close()

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer database.Close()

	if !tableExists(t, database, "plan") || !tableExists(t, database, "workspace_issue") {
		t.Fatal("expected plan and workspace_issue tables after migration")
	}

	tx2, err := database.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx2.Rollback()
	hasName, err := columnExists(tx2, "workspace", "name")
	if err != nil {
		t.Fatalf("columnExists: %v", err)
	}
	if !hasName {
		t.Error("expected workspace.name after migration")
	}

	var repo string
	if err := tx2.QueryRow("SELECT repository_id FROM project").Scan(&repo); err != nil {
		t.Fatalf("existing data lost: %v", err)
	}
	if repo != "github.com/acme/app" {
		t.Errorf("repository_id = %q", repo)
	}
}

func TestOpenMemory(t *testing.T) {
	database, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	defer database.Close()

	if !tableExists(t, database, "assignment") {
		t.Error("assignment table missing")
	}
}

func tableExists(t *testing.T, database *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count)
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	return count > 0
}

func TestOpenFailuresAreStoreUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string) string
	}{
		{"parent is a file", func(t *testing.T, dir string) string {
			parent := filepath.Join(dir, "file")
			if err := os.WriteFile(parent, []byte("x"), 0644); err != nil {
				t.Fatal(err)
			}
			return filepath.Join(parent, "rig.db")
		}},
		{"not a database", func(t *testing.T, dir string) string {
			path := filepath.Join(dir, "rig.db")
			if err := os.WriteFile(path, []byte(strings.Repeat("not a database ", 64)), 0644); err != nil {
				t.Fatal(err)
			}
			return path
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t, t.TempDir())
			database, err := Open(path)
			if err == nil {
				database.Close()
				t.Fatal("expected Open to fail")
			}
			if !errors.Is(err, secondary.ErrStoreUnavailable) {
				t.Errorf("expected ErrStoreUnavailable, got %v", err)
			}
		})
	}
}
