package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/rig/internal/core/clock"
	"github.com/example/rig/internal/ports/secondary"
)

// AssignmentRepository implements secondary.AssignmentRepository with SQLite.
type AssignmentRepository struct {
	db *sql.DB
}

// NewAssignmentRepository creates a new SQLite assignment repository.
func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentSelect = `SELECT a.id, a.project_id, a.plan_uuid, a.plan_id, a.workspace_id, w.workspace_path,
	a.claimed_by_user, a.status, a.assigned_at, a.updated_at
	FROM assignment a LEFT JOIN workspace w ON w.id = a.workspace_id`

// Get retrieves the assignment for (project, plan), or nil if none exists.
func (r *AssignmentRepository) Get(ctx context.Context, projectID int64, planUUID string) (*secondary.AssignmentRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		assignmentSelect+" WHERE a.project_id = ? AND a.plan_uuid = ?", projectID, planUUID)
	return scanAssignment(row)
}

// Create persists a new assignment and sets its ID.
func (r *AssignmentRepository) Create(ctx context.Context, a *secondary.AssignmentRecord) error {
	now := clock.Now()
	if a.Status == "" {
		a.Status = "claimed"
	}
	a.AssignedAt = now
	a.UpdatedAt = now

	res, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO assignment (project_id, plan_uuid, plan_id, workspace_id, claimed_by_user, status, assigned_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ProjectID, a.PlanUUID, nullInt64(int64(a.PlanID)), nullInt64(a.WorkspaceID),
		nullString(a.ClaimedByUser), a.Status, a.AssignedAt, a.UpdatedAt,
	)
	if err != nil {
		return classify("create assignment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("create assignment", err)
	}
	a.ID = id
	return nil
}

// UpdateClaim overwrites the workspace and user sides and bumps updated_at.
// A zero PlanID leaves the stored plan ID unchanged.
func (r *AssignmentRepository) UpdateClaim(ctx context.Context, a *secondary.AssignmentRecord) error {
	a.UpdatedAt = clock.Now()
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE assignment SET workspace_id = ?, claimed_by_user = ?, plan_id = COALESCE(?, plan_id), updated_at = ?
		 WHERE project_id = ? AND plan_uuid = ?`,
		nullInt64(a.WorkspaceID), nullString(a.ClaimedByUser), nullInt64(int64(a.PlanID)), a.UpdatedAt,
		a.ProjectID, a.PlanUUID,
	)
	if err != nil {
		return classify("update assignment", err)
	}
	return nil
}

// UpdateStatus sets the status of an assignment.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, projectID int64, planUUID, status string) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE assignment SET status = ?, updated_at = ? WHERE project_id = ? AND plan_uuid = ?",
		status, clock.Now(), projectID, planUUID,
	)
	if err != nil {
		return false, classify("update assignment status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("update assignment status", err)
	}
	return n > 0, nil
}

// Delete removes an assignment. Returns whether a row was removed.
func (r *AssignmentRepository) Delete(ctx context.Context, projectID int64, planUUID string) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		"DELETE FROM assignment WHERE project_id = ? AND plan_uuid = ?", projectID, planUUID)
	if err != nil {
		return false, classify("delete assignment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("delete assignment", err)
	}
	return n > 0, nil
}

// ListByProject retrieves all assignments of a project, most recently updated first.
func (r *AssignmentRepository) ListByProject(ctx context.Context, projectID int64) ([]*secondary.AssignmentRecord, error) {
	return r.query(ctx, assignmentSelect+" WHERE a.project_id = ? ORDER BY a.updated_at DESC, a.id DESC", projectID)
}

// ListByWorkspace retrieves all assignments held by a workspace.
func (r *AssignmentRepository) ListByWorkspace(ctx context.Context, workspaceID int64) ([]*secondary.AssignmentRecord, error) {
	return r.query(ctx, assignmentSelect+" WHERE a.workspace_id = ? ORDER BY a.id", workspaceID)
}

func (r *AssignmentRepository) query(ctx context.Context, query string, args ...any) ([]*secondary.AssignmentRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list assignments", err)
	}
	defer rows.Close()

	var assignments []*secondary.AssignmentRecord
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list assignments", err)
	}
	return assignments, nil
}

func scanAssignment(row rowScanner) (*secondary.AssignmentRecord, error) {
	var (
		planID      sql.NullInt64
		workspaceID sql.NullInt64
		path        sql.NullString
		user        sql.NullString
	)
	a := &secondary.AssignmentRecord{}
	err := row.Scan(&a.ID, &a.ProjectID, &a.PlanUUID, &planID, &workspaceID, &path,
		&user, &a.Status, &a.AssignedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get assignment", err)
	}
	a.PlanID = int(planID.Int64)
	a.WorkspaceID = workspaceID.Int64
	a.WorkspacePath = path.String
	a.ClaimedByUser = user.String
	return a, nil
}

// Ensure AssignmentRepository implements the interface
var _ secondary.AssignmentRepository = (*AssignmentRepository)(nil)
