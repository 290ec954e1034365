package wire

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/rig/internal/config"
	"github.com/example/rig/internal/ports/primary"
)

func TestNew_WiresServicesAgainstOneStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := New(ctx, Options{
		Cwd:          dir,
		DBPath:       filepath.Join(dir, "rig.db"),
		RepositoryID: "github.com/acme/app",
		Config:       &config.Config{},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if a.RepoRoot != dir {
		t.Errorf("expected repo root %s, got %s", dir, a.RepoRoot)
	}

	p, err := a.Projects.EnsureProject(ctx, dir)
	if err != nil {
		t.Fatalf("EnsureProject failed: %v", err)
	}
	ws, err := a.Workspaces.RecordWorkspace(ctx, primary.RecordWorkspaceRequest{ProjectID: p.ID, Path: dir})
	if err != nil {
		t.Fatalf("RecordWorkspace failed: %v", err)
	}
	if _, err := a.Locks.AcquireLock(ctx, primary.AcquireLockRequest{WorkspacePath: ws.Path, Type: "pid"}); err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Closing released the pid lock held by this process
	b, err := New(ctx, Options{
		Cwd:          dir,
		DBPath:       filepath.Join(dir, "rig.db"),
		RepositoryID: "github.com/acme/app",
		Config:       &config.Config{},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	lock, err := b.Locks.GetLock(ctx, dir)
	if err != nil {
		t.Fatalf("GetLock failed: %v", err)
	}
	if lock != nil {
		t.Errorf("expected lock to be released on close, got %+v", lock)
	}
}

func TestNew_ConfigDBPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "store.db")

	a, err := New(context.Background(), Options{
		Cwd:          dir,
		RepositoryID: "github.com/acme/app",
		Config:       &config.Config{DBPath: path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	var file string
	if err := a.DB.QueryRow("SELECT file FROM pragma_database_list WHERE name = 'main'").Scan(&file); err != nil {
		t.Fatalf("failed to query database path: %v", err)
	}
	if filepath.Base(file) != "store.db" {
		t.Errorf("expected the configured database, got %s", file)
	}
}
