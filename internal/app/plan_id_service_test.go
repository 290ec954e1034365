package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/example/rig/internal/ports/primary"
)

// Stored counter 5, local max 3, count 2: IDs 6 and 7.
func TestReservePlanIDs_AboveStoredCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.project(t, "repo-1")
	if err := env.projectRepo.RaiseHighestPlanID(ctx, p.ID, 5); err != nil {
		t.Fatal(err)
	}

	r, err := env.planIDs.ReservePlanIDs(ctx, primary.ReservePlanIDsRequest{RepositoryID: "repo-1", LocalMaxObservedID: 3, Count: 2})
	if err != nil {
		t.Fatalf("ReservePlanIDs failed: %v", err)
	}
	if r.StartID != 6 || r.EndID != 7 {
		t.Errorf("expected 6..7, got %d..%d", r.StartID, r.EndID)
	}

	highest, err := env.planIDs.HighestPlanID(ctx, "repo-1")
	if err != nil {
		t.Fatalf("HighestPlanID failed: %v", err)
	}
	if highest != 7 {
		t.Errorf("expected stored counter 7, got %d", highest)
	}
}

func TestReservePlanIDs(t *testing.T) {
	tests := []struct {
		name      string
		stored    int
		localMax  int
		count     int
		wantStart int
		wantEnd   int
	}{
		{"fresh project", 0, 0, 1, 1, 1},
		{"local max above stored", 5, 12, 3, 13, 15},
		{"negative local max ignored", 4, -7, 1, 5, 5},
		{"equal local and stored", 9, 9, 1, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			if tt.stored > 0 {
				p := env.project(t, "github.com/acme/app")
				if err := env.projectRepo.RaiseHighestPlanID(ctx, p.ID, tt.stored); err != nil {
					t.Fatal(err)
				}
			}

			r, err := env.planIDs.ReservePlanIDs(ctx, primary.ReservePlanIDsRequest{
				RepositoryID: "github.com/acme/app", LocalMaxObservedID: tt.localMax, Count: tt.count,
			})
			if err != nil {
				t.Fatalf("ReservePlanIDs failed: %v", err)
			}
			if r.StartID != tt.wantStart || r.EndID != tt.wantEnd {
				t.Errorf("expected %d..%d, got %d..%d", tt.wantStart, tt.wantEnd, r.StartID, r.EndID)
			}
		})
	}
}

func TestReservePlanIDs_InvalidArguments(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  primary.ReservePlanIDsRequest
	}{
		{"zero count", primary.ReservePlanIDsRequest{RepositoryID: "r", Count: 0}},
		{"negative count", primary.ReservePlanIDsRequest{RepositoryID: "r", Count: -1}},
		{"no repository", primary.ReservePlanIDsRequest{Count: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.planIDs.ReservePlanIDs(context.Background(), tt.req)
			if !errors.Is(err, primary.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
	if n := env.count(t, "SELECT COUNT(*) FROM project"); n != 0 {
		t.Errorf("invalid requests must not create projects, got %d", n)
	}
}

func TestNextPlanID_Sequential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := env.planIDs.NextPlanID(ctx, "github.com/acme/app", 0)
		if err != nil {
			t.Fatalf("NextPlanID failed: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
}

func TestHighestPlanID_UnknownRepository(t *testing.T) {
	env := newTestEnv(t)
	highest, err := env.planIDs.HighestPlanID(context.Background(), "github.com/acme/none")
	if err != nil || highest != 0 {
		t.Errorf("expected 0, nil; got %d, %v", highest, err)
	}
}

// Reservations from several processes never overlap and leave no gaps.
func TestReservePlanIDs_ConcurrentProcesses(t *testing.T) {
	const (
		processes = 4
		rounds    = 8
		count     = 3
	)
	envs := newFileEnvs(t, processes)

	var mu sync.Mutex
	var ids []int
	var wg sync.WaitGroup
	for _, env := range envs {
		wg.Add(1)
		go func(env *testEnv) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				r, err := env.planIDs.ReservePlanIDs(context.Background(), primary.ReservePlanIDsRequest{
					RepositoryID: "github.com/acme/app", Count: count,
				})
				if err != nil {
					t.Errorf("ReservePlanIDs failed: %v", err)
					return
				}
				mu.Lock()
				ids = append(ids, r.IDs()...)
				mu.Unlock()
			}
		}(env)
	}
	wg.Wait()

	sort.Ints(ids)
	if len(ids) != processes*rounds*count {
		t.Fatalf("expected %d ids, got %d", processes*rounds*count, len(ids))
	}
	for i, id := range ids {
		if id != i+1 {
			t.Fatalf("expected contiguous unique ids, position %d holds %d", i, id)
		}
	}
}
