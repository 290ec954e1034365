package sqlite_test

import (
	"context"
	"testing"

	"github.com/example/rig/internal/adapters/sqlite"
	"github.com/example/rig/internal/ports/secondary"
)

func TestAssignmentRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAssignmentRepository(db)
	ctx := context.Background()
	projectID := seedProject(t, db, "", 0)
	wsID := seedWorkspace(t, db, projectID, "/ws/a", "")

	a := &secondary.AssignmentRecord{
		ProjectID:     projectID,
		PlanUUID:      "uuid-1",
		PlanID:        12,
		WorkspaceID:   wsID,
		ClaimedByUser: "alice",
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.Get(ctx, projectID, "uuid-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != "claimed" || got.WorkspacePath != "/ws/a" || got.PlanID != 12 || got.ClaimedByUser != "alice" {
		t.Errorf("got %+v", got)
	}

	dup := &secondary.AssignmentRecord{ProjectID: projectID, PlanUUID: "uuid-1", ClaimedByUser: "bob"}
	if err := repo.Create(ctx, dup); !isConflict(err) {
		t.Errorf("duplicate Create error = %v, want ErrConflict", err)
	}

	got.WorkspaceID = 0
	got.ClaimedByUser = "bob"
	got.PlanID = 0
	if err := repo.UpdateClaim(ctx, got); err != nil {
		t.Fatalf("UpdateClaim failed: %v", err)
	}
	updated, _ := repo.Get(ctx, projectID, "uuid-1")
	if updated.WorkspaceID != 0 || updated.ClaimedByUser != "bob" {
		t.Errorf("after UpdateClaim got %+v", updated)
	}
	if updated.PlanID != 12 {
		t.Errorf("PlanID = %d, want 12 kept", updated.PlanID)
	}

	ok, err := repo.UpdateStatus(ctx, projectID, "uuid-1", "in_progress")
	if err != nil || !ok {
		t.Fatalf("UpdateStatus = %v, %v", ok, err)
	}

	removed, err := repo.Delete(ctx, projectID, "uuid-1")
	if err != nil || !removed {
		t.Fatalf("Delete = %v, %v", removed, err)
	}
	removed, err = repo.Delete(ctx, projectID, "uuid-1")
	if err != nil || removed {
		t.Errorf("second Delete = %v, %v; want false, nil", removed, err)
	}
}

func TestAssignmentRepository_ListByWorkspace(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAssignmentRepository(db)
	ctx := context.Background()
	projectID := seedProject(t, db, "", 0)
	wsA := seedWorkspace(t, db, projectID, "/ws/a", "")
	wsB := seedWorkspace(t, db, projectID, "/ws/b", "")

	for _, a := range []*secondary.AssignmentRecord{
		{ProjectID: projectID, PlanUUID: "p1", WorkspaceID: wsA},
		{ProjectID: projectID, PlanUUID: "p2", WorkspaceID: wsA, ClaimedByUser: "alice"},
		{ProjectID: projectID, PlanUUID: "p3", WorkspaceID: wsB},
	} {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	held, err := repo.ListByWorkspace(ctx, wsA)
	if err != nil {
		t.Fatalf("ListByWorkspace failed: %v", err)
	}
	if len(held) != 2 || held[0].PlanUUID != "p1" || held[1].PlanUUID != "p2" {
		t.Errorf("held = %+v", held)
	}

	all, err := repo.ListByProject(ctx, projectID)
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}
