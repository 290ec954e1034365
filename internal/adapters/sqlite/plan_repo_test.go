package sqlite_test

import (
	"context"
	"testing"

	"github.com/example/rig/internal/adapters/sqlite"
	"github.com/example/rig/internal/ports/secondary"
)

func TestPlanRepository_Upsert(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewPlanRepository(db)
	ctx := context.Background()
	projectID := seedProject(t, db, "", 0)

	plan := &secondary.PlanRecord{
		UUID:         "aaaa",
		ProjectID:    projectID,
		PlanID:       3,
		Title:        "First",
		Status:       "pending",
		Filename:     "3-first.plan.md",
		Dependencies: []string{"bbbb", "cccc"},
	}
	created, err := repo.Upsert(ctx, plan)
	if err != nil || !created {
		t.Fatalf("Upsert = %v, %v; want true, nil", created, err)
	}

	plan.Title = "First, renamed"
	plan.Dependencies = []string{"cccc"}
	created, err = repo.Upsert(ctx, plan)
	if err != nil || created {
		t.Fatalf("second Upsert = %v, %v; want false, nil", created, err)
	}

	got, err := repo.GetByUUID(ctx, "aaaa")
	if err != nil {
		t.Fatalf("GetByUUID failed: %v", err)
	}
	if got.Title != "First, renamed" || got.PlanID != 3 {
		t.Errorf("got %+v", got)
	}
	if len(got.Dependencies) != 1 || got.Dependencies[0] != "cccc" {
		t.Errorf("Dependencies = %v, want [cccc]", got.Dependencies)
	}
}

func TestPlanRepository_ListAndDeleteExcept(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewPlanRepository(db)
	ctx := context.Background()
	projectID := seedProject(t, db, "", 0)

	for _, p := range []*secondary.PlanRecord{
		{UUID: "u2", ProjectID: projectID, PlanID: 2, Dependencies: []string{"u1"}},
		{UUID: "u1", ProjectID: projectID, PlanID: 1},
		{UUID: "u9", ProjectID: projectID},
	} {
		if _, err := repo.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	plans, err := repo.ListByProject(ctx, projectID)
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	if len(plans) != 3 || plans[0].UUID != "u1" || plans[1].UUID != "u2" || plans[2].UUID != "u9" {
		t.Fatalf("plans order wrong: %+v", plans)
	}
	if len(plans[1].Dependencies) != 1 {
		t.Errorf("u2 dependencies = %v", plans[1].Dependencies)
	}

	removed, err := repo.DeleteExcept(ctx, projectID, []string{"u1"})
	if err != nil {
		t.Fatalf("DeleteExcept failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM plan_dependency"); n != 0 {
		t.Errorf("dependency rows = %d, want 0", n)
	}
}
