package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/rig/internal/core/clock"
	"github.com/example/rig/internal/ports/secondary"
)

// PlanRepository implements secondary.PlanRepository with SQLite.
type PlanRepository struct {
	db *sql.DB
}

// NewPlanRepository creates a new SQLite plan repository.
func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = "uuid, project_id, plan_id, title, status, parent_uuid, filename, created_at, updated_at"

// Upsert inserts or replaces a plan row and its dependency edges.
// Callers run it inside a transaction so the row and its edges change together.
func (r *PlanRepository) Upsert(ctx context.Context, plan *secondary.PlanRecord) (bool, error) {
	q := conn(ctx, r.db)

	existing, err := r.GetByUUID(ctx, plan.UUID)
	if err != nil {
		return false, err
	}

	now := clock.Now()
	plan.UpdatedAt = now
	if existing == nil {
		plan.CreatedAt = now
		_, err = q.ExecContext(ctx,
			"INSERT INTO plan ("+planColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			plan.UUID, plan.ProjectID, nullInt64(int64(plan.PlanID)), nullString(plan.Title),
			nullString(plan.Status), nullString(plan.ParentUUID), nullString(plan.Filename),
			plan.CreatedAt, plan.UpdatedAt,
		)
		if err != nil {
			return false, classify("create plan", err)
		}
	} else {
		plan.CreatedAt = existing.CreatedAt
		_, err = q.ExecContext(ctx,
			`UPDATE plan SET project_id = ?, plan_id = ?, title = ?, status = ?, parent_uuid = ?, filename = ?, updated_at = ?
			 WHERE uuid = ?`,
			plan.ProjectID, nullInt64(int64(plan.PlanID)), nullString(plan.Title), nullString(plan.Status),
			nullString(plan.ParentUUID), nullString(plan.Filename), plan.UpdatedAt, plan.UUID,
		)
		if err != nil {
			return false, classify("update plan", err)
		}
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM plan_dependency WHERE plan_uuid = ?", plan.UUID); err != nil {
		return false, classify("clear plan dependencies", err)
	}
	for _, dep := range plan.Dependencies {
		_, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO plan_dependency (plan_uuid, depends_on_uuid) VALUES (?, ?)", plan.UUID, dep)
		if err != nil {
			return false, classify("add plan dependency", err)
		}
	}

	return existing == nil, nil
}

// GetByUUID retrieves a plan with its dependencies, or nil if none exists.
func (r *PlanRepository) GetByUUID(ctx context.Context, uuid string) (*secondary.PlanRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, "SELECT "+planColumns+" FROM plan WHERE uuid = ?", uuid)
	plan, err := scanPlan(row)
	if err != nil || plan == nil {
		return plan, err
	}
	deps, err := r.dependencies(ctx, uuid)
	if err != nil {
		return nil, err
	}
	plan.Dependencies = deps
	return plan, nil
}

// ListByProject retrieves a project's plans ordered by plan ID.
func (r *PlanRepository) ListByProject(ctx context.Context, projectID int64) ([]*secondary.PlanRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		"SELECT "+planColumns+" FROM plan WHERE project_id = ? ORDER BY plan_id IS NULL, plan_id, uuid", projectID)
	if err != nil {
		return nil, classify("list plans", err)
	}

	var plans []*secondary.PlanRecord
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		plans = append(plans, plan)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, classify("list plans", err)
	}

	// Dependencies are loaded after the cursor is closed; an in-memory
	// database has a single connection.
	for _, plan := range plans {
		deps, err := r.dependencies(ctx, plan.UUID)
		if err != nil {
			return nil, err
		}
		plan.Dependencies = deps
	}
	return plans, nil
}

// DeleteExcept removes the project's plans whose UUID is not in keep.
func (r *PlanRepository) DeleteExcept(ctx context.Context, projectID int64, keep []string) (int, error) {
	query := "DELETE FROM plan WHERE project_id = ?"
	args := []any{projectID}
	if len(keep) > 0 {
		query += " AND uuid NOT IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(keep)), ", ") + ")"
		for _, uuid := range keep {
			args = append(args, uuid)
		}
	}

	res, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify("delete plans", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("delete plans", err)
	}
	return int(n), nil
}

func (r *PlanRepository) dependencies(ctx context.Context, uuid string) ([]string, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		"SELECT depends_on_uuid FROM plan_dependency WHERE plan_uuid = ? ORDER BY depends_on_uuid", uuid)
	if err != nil {
		return nil, classify("list plan dependencies", err)
	}
	defer rows.Close()

	var deps []string
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, classify("scan plan dependency", err)
		}
		deps = append(deps, dep)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list plan dependencies", err)
	}
	return deps, nil
}

func scanPlan(row rowScanner) (*secondary.PlanRecord, error) {
	var (
		planID   sql.NullInt64
		title    sql.NullString
		status   sql.NullString
		parent   sql.NullString
		filename sql.NullString
	)
	plan := &secondary.PlanRecord{}
	err := row.Scan(&plan.UUID, &plan.ProjectID, &planID, &title, &status, &parent, &filename,
		&plan.CreatedAt, &plan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get plan", err)
	}
	plan.PlanID = int(planID.Int64)
	plan.Title = title.String
	plan.Status = status.String
	plan.ParentUUID = parent.String
	plan.Filename = filename.String
	return plan, nil
}

// Ensure PlanRepository implements the interface
var _ secondary.PlanRepository = (*PlanRepository)(nil)
