package sqlite_test

import (
	"context"
	"testing"

	"github.com/example/rig/internal/adapters/sqlite"
)

func TestProjectRepository_GetOrCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectRepository(db)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, "github.com/acme/app")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if first.HighestPlanID != 0 {
		t.Errorf("HighestPlanID = %d, want 0", first.HighestPlanID)
	}

	second, err := repo.GetOrCreate(ctx, "github.com/acme/app")
	if err != nil {
		t.Fatalf("second GetOrCreate failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("GetOrCreate returned new row %d, want %d", second.ID, first.ID)
	}

	if n := countRows(t, db, "SELECT COUNT(*) FROM project"); n != 1 {
		t.Errorf("project rows = %d, want 1", n)
	}
}

func TestProjectRepository_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectRepository(db)

	got, err := repo.GetByRepositoryID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByRepositoryID failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestProjectRepository_ReservePlanIDs(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectRepository(db)
	ctx := context.Background()
	id := seedProject(t, db, "", 5)

	t.Run("stored mark wins over lower local max", func(t *testing.T) {
		end, err := repo.ReservePlanIDs(ctx, id, 3, 2)
		if err != nil {
			t.Fatalf("ReservePlanIDs failed: %v", err)
		}
		if end != 7 {
			t.Errorf("end = %d, want 7", end)
		}
	})

	t.Run("local max wins over lower stored mark", func(t *testing.T) {
		end, err := repo.ReservePlanIDs(ctx, id, 20, 1)
		if err != nil {
			t.Fatalf("ReservePlanIDs failed: %v", err)
		}
		if end != 21 {
			t.Errorf("end = %d, want 21", end)
		}
	})

	t.Run("missing project", func(t *testing.T) {
		if _, err := repo.ReservePlanIDs(ctx, 999, 0, 1); err == nil {
			t.Error("expected error for missing project")
		}
	})
}

func TestProjectRepository_RaiseHighestPlanIDNeverLowers(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectRepository(db)
	ctx := context.Background()
	id := seedProject(t, db, "", 10)

	if err := repo.RaiseHighestPlanID(ctx, id, 4); err != nil {
		t.Fatalf("RaiseHighestPlanID failed: %v", err)
	}
	got, _ := repo.GetByID(ctx, id)
	if got.HighestPlanID != 10 {
		t.Errorf("HighestPlanID = %d, want 10", got.HighestPlanID)
	}

	if err := repo.RaiseHighestPlanID(ctx, id, 12); err != nil {
		t.Fatalf("RaiseHighestPlanID failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, id)
	if got.HighestPlanID != 12 {
		t.Errorf("HighestPlanID = %d, want 12", got.HighestPlanID)
	}
}

func TestProjectRepository_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectRepository(db)
	ctx := context.Background()
	id := seedProject(t, db, "", 0)
	wsID := seedWorkspace(t, db, id, "/ws/one", "")
	seedLock(t, db, wsID, "persistent", 0, "2025-01-01T00:00:00.000Z")

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM workspace"); n != 0 {
		t.Errorf("workspace rows = %d, want 0", n)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM workspace_lock"); n != 0 {
		t.Errorf("lock rows = %d, want 0", n)
	}
}

func TestProjectRepository_UpdateLocation(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectRepository(db)
	ctx := context.Background()
	id := seedProject(t, db, "", 0)

	if err := repo.UpdateLocation(ctx, id, "git@github.com:acme/app.git", "/src/app"); err != nil {
		t.Fatalf("UpdateLocation failed: %v", err)
	}
	got, _ := repo.GetByID(ctx, id)
	if got.RemoteURL != "git@github.com:acme/app.git" || got.LastGitRoot != "/src/app" {
		t.Errorf("got %+v", got)
	}
}
