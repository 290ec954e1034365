package sqlite_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/example/rig/internal/adapters/sqlite"
	"github.com/example/rig/internal/ports/secondary"
)

func isConflict(err error) bool {
	return errors.Is(err, secondary.ErrConflict)
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	tx := sqlite.NewTransactor(db)
	projects := sqlite.NewProjectRepository(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := projects.GetOrCreate(ctx, "github.com/acme/app"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx error = %v, want boom", err)
	}

	got, err := projects.GetByRepositoryID(ctx, "github.com/acme/app")
	if err != nil {
		t.Fatalf("GetByRepositoryID failed: %v", err)
	}
	if got != nil {
		t.Error("expected insert to be rolled back")
	}
}

func TestTransactor_NestedCallsJoinOuter(t *testing.T) {
	db := setupTestDB(t)
	tx := sqlite.NewTransactor(db)
	projects := sqlite.NewProjectRepository(db)
	ctx := context.Background()

	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		return tx.WithinTx(ctx, func(ctx context.Context) error {
			_, err := projects.GetOrCreate(ctx, "github.com/acme/app")
			return err
		})
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}

	if n := countRows(t, db, "SELECT COUNT(*) FROM project"); n != 1 {
		t.Errorf("project rows = %d, want 1", n)
	}
}

// Each handle stands in for a separate process sharing the database file.
func TestConcurrentReservationsAcrossHandles(t *testing.T) {
	const (
		handles  = 4
		perCall  = 3
		attempts = 10
	)
	dbs := setupFileDB(t, handles)
	ctx := context.Background()

	projectID := seedProject(t, dbs[0], "github.com/acme/app", 0)

	var (
		mu  sync.Mutex
		ids []int
		wg  sync.WaitGroup
	)
	errs := make(chan error, handles*attempts)
	for _, h := range dbs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx := sqlite.NewTransactor(h)
			repo := sqlite.NewProjectRepository(h)
			for i := 0; i < attempts; i++ {
				err := tx.WithinTx(ctx, func(ctx context.Context) error {
					end, err := repo.ReservePlanIDs(ctx, projectID, 0, perCall)
					if err != nil {
						return err
					}
					mu.Lock()
					for id := end - perCall + 1; id <= end; id++ {
						ids = append(ids, id)
					}
					mu.Unlock()
					return nil
				})
				if err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("reservation failed: %v", err)
	}

	sort.Ints(ids)
	want := handles * attempts * perCall
	if len(ids) != want {
		t.Fatalf("got %d ids, want %d", len(ids), want)
	}
	for i, id := range ids {
		if id != i+1 {
			t.Fatalf("ids not contiguous and disjoint: ids[%d] = %d", i, id)
		}
	}
}
