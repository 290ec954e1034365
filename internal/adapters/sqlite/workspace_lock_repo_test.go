package sqlite_test

import (
	"context"
	"testing"

	"github.com/example/rig/internal/adapters/sqlite"
	"github.com/example/rig/internal/ports/secondary"
)

func TestWorkspaceLockRepository_InsertGet(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewWorkspaceLockRepository(db)
	ctx := context.Background()
	wsID := seedWorkspace(t, db, seedProject(t, db, "", 0), "/ws/a", "")

	none, err := repo.Get(ctx, wsID)
	if err != nil || none != nil {
		t.Fatalf("Get(unlocked) = %v, %v; want nil, nil", none, err)
	}

	lock := &secondary.WorkspaceLockRecord{
		WorkspaceID: wsID,
		LockType:    "pid",
		PID:         4242,
		StartedAt:   "2025-01-01T00:00:00.000Z",
		Hostname:    "box",
		Command:     "rig run",
	}
	if err := repo.Insert(ctx, lock); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.Get(ctx, wsID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.WorkspacePath != "/ws/a" || got.PID != 4242 || got.LockType != "pid" || got.Hostname != "box" {
		t.Errorf("got %+v", got)
	}

	err = repo.Insert(ctx, &secondary.WorkspaceLockRecord{WorkspaceID: wsID, LockType: "persistent", StartedAt: "x"})
	if !isConflict(err) {
		t.Errorf("second Insert error = %v, want ErrConflict", err)
	}
}

func TestWorkspaceLockRepository_RejectsUnknownType(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewWorkspaceLockRepository(db)
	wsID := seedWorkspace(t, db, seedProject(t, db, "", 0), "/ws/a", "")

	err := repo.Insert(context.Background(), &secondary.WorkspaceLockRecord{WorkspaceID: wsID, LockType: "exclusive", StartedAt: "x"})
	if err == nil {
		t.Error("expected CHECK constraint failure")
	}
}

func TestWorkspaceLockRepository_DeleteExact(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewWorkspaceLockRepository(db)
	ctx := context.Background()
	projectID := seedProject(t, db, "", 0)
	pidWS := seedWorkspace(t, db, projectID, "/ws/pid", "")
	persistentWS := seedWorkspace(t, db, projectID, "/ws/persistent", "")
	seedLock(t, db, pidWS, "pid", 77, "2025-01-01T00:00:00.000Z")
	seedLock(t, db, persistentWS, "persistent", 0, "2025-01-01T00:00:00.000Z")

	t.Run("observed lock was replaced", func(t *testing.T) {
		removed, err := repo.DeleteExact(ctx, &secondary.WorkspaceLockRecord{
			WorkspaceID: pidWS, LockType: "pid", PID: 76, StartedAt: "2025-01-01T00:00:00.000Z",
		})
		if err != nil {
			t.Fatalf("DeleteExact failed: %v", err)
		}
		if removed {
			t.Error("expected mismatched delete to be a no-op")
		}
	})

	t.Run("matching pid lock", func(t *testing.T) {
		removed, err := repo.DeleteExact(ctx, &secondary.WorkspaceLockRecord{
			WorkspaceID: pidWS, LockType: "pid", PID: 77, StartedAt: "2025-01-01T00:00:00.000Z",
		})
		if err != nil || !removed {
			t.Errorf("DeleteExact = %v, %v; want true, nil", removed, err)
		}
	})

	t.Run("matching persistent lock with null pid", func(t *testing.T) {
		removed, err := repo.DeleteExact(ctx, &secondary.WorkspaceLockRecord{
			WorkspaceID: persistentWS, LockType: "persistent", StartedAt: "2025-01-01T00:00:00.000Z",
		})
		if err != nil || !removed {
			t.Errorf("DeleteExact = %v, %v; want true, nil", removed, err)
		}
	})
}

func TestWorkspaceLockRepository_ListByType(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewWorkspaceLockRepository(db)
	ctx := context.Background()
	projectID := seedProject(t, db, "", 0)
	seedLock(t, db, seedWorkspace(t, db, projectID, "/ws/b", ""), "pid", 1, "2025-01-01T00:00:00.000Z")
	seedLock(t, db, seedWorkspace(t, db, projectID, "/ws/a", ""), "pid", 2, "2025-01-01T00:00:00.000Z")
	seedLock(t, db, seedWorkspace(t, db, projectID, "/ws/c", ""), "persistent", 0, "2025-01-01T00:00:00.000Z")

	pidLocks, err := repo.ListByType(ctx, "pid")
	if err != nil {
		t.Fatalf("ListByType failed: %v", err)
	}
	if len(pidLocks) != 2 || pidLocks[0].WorkspacePath != "/ws/a" {
		t.Errorf("pid locks = %+v", pidLocks)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(List) = %d, want 3", len(all))
	}
}
