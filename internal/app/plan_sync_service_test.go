package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/example/rig/internal/adapters/planfile"
	"github.com/example/rig/internal/ports/primary"
	"github.com/example/rig/internal/ports/secondary"
)

const planC = "9d4f5e6a-1b2c-4d3e-8f9a-0b1c2d3e4f03"

func newPlanSync(env *testEnv) *PlanSyncServiceImpl {
	return NewPlanSyncService(env.tx, env.projectRepo, env.planRepo, planfile.NewReader(), nil)
}

func TestSyncPlans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newPlanSync(env)

	plans := []primary.PlanMetadata{
		{UUID: planA, ID: 1, Title: "Parent", Status: "pending", Filename: "1-parent.plan.md"},
		{UUID: planB, ID: 2, Title: "Child", Parent: 1, Dependencies: []int{1, 99}, Filename: "2-child.plan.md"},
		{UUID: "", ID: 3, Title: "Broken"},
	}

	res, err := svc.SyncPlans(ctx, "github.com/acme/app", plans)
	if err != nil {
		t.Fatalf("SyncPlans failed: %v", err)
	}
	if res.Created != 2 || res.Updated != 0 || res.Removed != 0 || res.Skipped != 1 {
		t.Errorf("unexpected result: %+v", res)
	}

	stored, err := svc.ListPlans(ctx, "github.com/acme/app")
	if err != nil {
		t.Fatalf("ListPlans failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(stored))
	}
	child := stored[1]
	if child.ParentUUID != planA {
		t.Errorf("expected parent %s, got %s", planA, child.ParentUUID)
	}
	if len(child.Dependencies) != 1 || child.Dependencies[0] != planA {
		t.Errorf("unknown dependencies should be dropped, got %v", child.Dependencies)
	}

	highest, _ := env.planIDs.HighestPlanID(ctx, "github.com/acme/app")
	if highest != 2 {
		t.Errorf("expected high-water mark raised to 2, got %d", highest)
	}

	// Second sync drops the parent and adds a new plan
	res, err = svc.SyncPlans(ctx, "github.com/acme/app", []primary.PlanMetadata{
		{UUID: planB, ID: 2, Title: "Child", Parent: 1},
		{UUID: planC, ID: 3, Title: "New"},
	})
	if err != nil {
		t.Fatalf("SyncPlans failed: %v", err)
	}
	if res.Created != 1 || res.Updated != 1 || res.Removed != 1 {
		t.Errorf("unexpected result: %+v", res)
	}

	stored, _ = svc.ListPlans(ctx, "github.com/acme/app")
	if len(stored) != 2 || stored[0].ParentUUID != "" {
		t.Errorf("expected parent reference to be dropped, got %+v", stored)
	}
}

func TestSyncPlans_NeverLowersHighWaterMark(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newPlanSync(env)

	if _, err := env.planIDs.ReservePlanIDs(ctx, primary.ReservePlanIDsRequest{RepositoryID: "github.com/acme/app", Count: 10}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SyncPlans(ctx, "github.com/acme/app", []primary.PlanMetadata{{UUID: planA, ID: 4}}); err != nil {
		t.Fatalf("SyncPlans failed: %v", err)
	}

	highest, _ := env.planIDs.HighestPlanID(ctx, "github.com/acme/app")
	if highest != 10 {
		t.Errorf("expected high-water mark to stay at 10, got %d", highest)
	}
}

func TestSyncDirectoryAndMaxLocalID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newPlanSync(env)
	dir := t.TempDir()

	files := []*secondary.PlanFile{
		{UUID: planA, ID: 4, Title: "First"},
		{UUID: planB, ID: 9, Title: "Second", Dependencies: []int{4}},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.Title+".plan.md")
		if err := planfile.Write(path, f, "Body text"); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	maxID, err := svc.MaxLocalID(dir)
	if err != nil {
		t.Fatalf("MaxLocalID failed: %v", err)
	}
	if maxID != 9 {
		t.Errorf("expected max id 9, got %d", maxID)
	}

	res, err := svc.SyncDirectory(ctx, "github.com/acme/app", dir)
	if err != nil {
		t.Fatalf("SyncDirectory failed: %v", err)
	}
	if res.Created != 2 {
		t.Errorf("expected 2 created, got %+v", res)
	}

	stored, _ := svc.ListPlans(ctx, "github.com/acme/app")
	if len(stored) != 2 || stored[0].Filename != "First.plan.md" {
		t.Errorf("expected relative filenames, got %+v", stored)
	}
}

func TestMaxLocalID_MissingDirectory(t *testing.T) {
	env := newTestEnv(t)
	maxID, err := newPlanSync(env).MaxLocalID(filepath.Join(t.TempDir(), "absent"))
	if err != nil || maxID != 0 {
		t.Errorf("expected 0, nil; got %d, %v", maxID, err)
	}
}

func TestListPlans_UnknownProject(t *testing.T) {
	env := newTestEnv(t)
	_, err := newPlanSync(env).ListPlans(context.Background(), "github.com/acme/none")
	if !errors.Is(err, primary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
