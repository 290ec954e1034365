package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/rig/internal/core/clock"
	"github.com/example/rig/internal/ports/secondary"
)

// WorkspaceRepository implements secondary.WorkspaceRepository with SQLite.
type WorkspaceRepository struct {
	db *sql.DB
}

// NewWorkspaceRepository creates a new SQLite workspace repository.
func NewWorkspaceRepository(db *sql.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

const workspaceColumns = "id, project_id, task_id, workspace_path, original_plan_file_path, branch, name, description, plan_id, plan_title, created_at, updated_at"

// Create persists a new workspace and sets its ID.
func (r *WorkspaceRepository) Create(ctx context.Context, ws *secondary.WorkspaceRecord) error {
	now := clock.Now()
	if ws.CreatedAt == "" {
		ws.CreatedAt = now
	}
	ws.UpdatedAt = now

	res, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO workspace (project_id, task_id, workspace_path, original_plan_file_path, branch, name, description, plan_id, plan_title, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.ProjectID, nullString(ws.TaskID), ws.WorkspacePath, nullString(ws.OriginalPlanFilePath),
		nullString(ws.Branch), nullString(ws.Name), nullString(ws.Description),
		nullString(ws.PlanID), nullString(ws.PlanTitle), ws.CreatedAt, ws.UpdatedAt,
	)
	if err != nil {
		return classify("create workspace", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return classify("create workspace", err)
	}
	ws.ID = id
	return nil
}

// GetByID retrieves a workspace, or nil if none exists.
func (r *WorkspaceRepository) GetByID(ctx context.Context, id int64) (*secondary.WorkspaceRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+workspaceColumns+" FROM workspace WHERE id = ?", id)
	return scanWorkspace(row)
}

// GetByPath retrieves a workspace by its canonical path, or nil if none exists.
func (r *WorkspaceRepository) GetByPath(ctx context.Context, path string) (*secondary.WorkspaceRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+workspaceColumns+" FROM workspace WHERE workspace_path = ?", path)
	return scanWorkspace(row)
}

// ListByProject retrieves a project's workspaces, newest first.
func (r *WorkspaceRepository) ListByProject(ctx context.Context, projectID int64) ([]*secondary.WorkspaceRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		"SELECT "+workspaceColumns+" FROM workspace WHERE project_id = ? ORDER BY created_at DESC, id DESC",
		projectID,
	)
	if err != nil {
		return nil, classify("list workspaces", err)
	}
	defer rows.Close()

	var workspaces []*secondary.WorkspaceRecord
	for rows.Next() {
		record, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		workspaces = append(workspaces, record)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list workspaces", err)
	}
	return workspaces, nil
}

// Update overwrites the mutable metadata of a workspace.
func (r *WorkspaceRepository) Update(ctx context.Context, ws *secondary.WorkspaceRecord) error {
	ws.UpdatedAt = clock.Now()
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE workspace SET task_id = ?, original_plan_file_path = ?, branch = ?, name = ?, description = ?,
		 plan_id = ?, plan_title = ?, updated_at = ? WHERE id = ?`,
		nullString(ws.TaskID), nullString(ws.OriginalPlanFilePath), nullString(ws.Branch),
		nullString(ws.Name), nullString(ws.Description), nullString(ws.PlanID), nullString(ws.PlanTitle),
		ws.UpdatedAt, ws.ID,
	)
	if err != nil {
		return classify("update workspace", err)
	}
	return nil
}

// Delete removes a workspace. Its lock and issues cascade; assignments
// referencing it have their workspace set to null.
func (r *WorkspaceRepository) Delete(ctx context.Context, id int64) error {
	// Claims held only through this workspace would be left with neither side.
	_, err := conn(ctx, r.db).ExecContext(ctx,
		"DELETE FROM assignment WHERE workspace_id = ? AND (claimed_by_user IS NULL OR claimed_by_user = '')", id)
	if err != nil {
		return classify("delete workspace assignments", err)
	}

	_, err = conn(ctx, r.db).ExecContext(ctx, "DELETE FROM workspace WHERE id = ?", id)
	if err != nil {
		return classify("delete workspace", err)
	}
	return nil
}

// AddIssue links an issue URL to a workspace. Duplicates are ignored.
func (r *WorkspaceRepository) AddIssue(ctx context.Context, workspaceID int64, issueURL string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		"INSERT OR IGNORE INTO workspace_issue (workspace_id, issue_url, created_at) VALUES (?, ?, ?)",
		workspaceID, issueURL, clock.Now(),
	)
	if err != nil {
		return classify("add workspace issue", err)
	}
	return nil
}

// ListIssues retrieves the issue URLs linked to a workspace.
func (r *WorkspaceRepository) ListIssues(ctx context.Context, workspaceID int64) ([]string, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		"SELECT issue_url FROM workspace_issue WHERE workspace_id = ? ORDER BY id", workspaceID)
	if err != nil {
		return nil, classify("list workspace issues", err)
	}
	defer rows.Close()

	var issues []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, classify("scan workspace issue", err)
		}
		issues = append(issues, url)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list workspace issues", err)
	}
	return issues, nil
}

func scanWorkspace(row rowScanner) (*secondary.WorkspaceRecord, error) {
	var (
		taskID      sql.NullString
		planFile    sql.NullString
		branch      sql.NullString
		name        sql.NullString
		description sql.NullString
		planID      sql.NullString
		planTitle   sql.NullString
	)
	record := &secondary.WorkspaceRecord{}
	err := row.Scan(&record.ID, &record.ProjectID, &taskID, &record.WorkspacePath, &planFile,
		&branch, &name, &description, &planID, &planTitle, &record.CreatedAt, &record.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get workspace", err)
	}
	record.TaskID = taskID.String
	record.OriginalPlanFilePath = planFile.String
	record.Branch = branch.String
	record.Name = name.String
	record.Description = description.String
	record.PlanID = planID.String
	record.PlanTitle = planTitle.String
	return record, nil
}

// Ensure WorkspaceRepository implements the interface
var _ secondary.WorkspaceRepository = (*WorkspaceRepository)(nil)
