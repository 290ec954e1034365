package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/rig/internal/core/clock"
	"github.com/example/rig/internal/ports/secondary"
)

// ProjectRepository implements secondary.ProjectRepository with SQLite.
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new SQLite project repository.
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = "id, repository_id, remote_url, last_git_root, highest_plan_id, created_at, updated_at"

// GetByRepositoryID retrieves a project by repository ID, or nil if none exists.
func (r *ProjectRepository) GetByRepositoryID(ctx context.Context, repositoryID string) (*secondary.ProjectRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM project WHERE repository_id = ?", repositoryID)
	return scanProject(row)
}

// GetByID retrieves a project by row ID, or nil if none exists.
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*secondary.ProjectRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM project WHERE id = ?", id)
	return scanProject(row)
}

// GetOrCreate returns the project for repositoryID, inserting it first if needed.
// Outside a transaction a concurrent insert surfaces as a conflict, after
// which the winner's row is returned.
func (r *ProjectRepository) GetOrCreate(ctx context.Context, repositoryID string) (*secondary.ProjectRecord, error) {
	existing, err := r.GetByRepositoryID(ctx, repositoryID)
	if err != nil || existing != nil {
		return existing, err
	}

	now := clock.Now()
	_, err = conn(ctx, r.db).ExecContext(ctx,
		"INSERT INTO project (repository_id, highest_plan_id, created_at, updated_at) VALUES (?, 0, ?, ?)",
		repositoryID, now, now,
	)
	if err != nil {
		err = classify("create project", err)
		if !errors.Is(err, secondary.ErrConflict) {
			return nil, err
		}
	}

	record, err := r.GetByRepositoryID(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("project %s vanished after insert", repositoryID)
	}
	return record, nil
}

// UpdateLocation records the last seen remote URL and git root.
func (r *ProjectRepository) UpdateLocation(ctx context.Context, id int64, remoteURL, gitRoot string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE project SET remote_url = ?, last_git_root = ?, updated_at = ? WHERE id = ?",
		nullString(remoteURL), nullString(gitRoot), clock.Now(), id,
	)
	if err != nil {
		return classify("update project location", err)
	}
	return nil
}

// List retrieves all projects ordered by repository ID.
func (r *ProjectRepository) List(ctx context.Context) ([]*secondary.ProjectRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		"SELECT "+projectColumns+" FROM project ORDER BY repository_id")
	if err != nil {
		return nil, classify("list projects", err)
	}
	defer rows.Close()

	var projects []*secondary.ProjectRecord
	for rows.Next() {
		record, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, record)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list projects", err)
	}
	return projects, nil
}

// Delete removes a project and, by cascade, everything it owns.
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, "DELETE FROM project WHERE id = ?", id)
	if err != nil {
		return classify("delete project", err)
	}
	return nil
}

// ReservePlanIDs advances highest_plan_id to max(highest_plan_id, floor) + count
// in a single statement and returns the new value.
func (r *ProjectRepository) ReservePlanIDs(ctx context.Context, id int64, floor, count int) (int, error) {
	var highest int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		"UPDATE project SET highest_plan_id = MAX(highest_plan_id, ?) + ?, updated_at = ? WHERE id = ? RETURNING highest_plan_id",
		floor, count, clock.Now(), id,
	).Scan(&highest)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("project %d not found", id)
	}
	if err != nil {
		return 0, classify("reserve plan ids", err)
	}
	return highest, nil
}

// RaiseHighestPlanID advances highest_plan_id to at least floor.
func (r *ProjectRepository) RaiseHighestPlanID(ctx context.Context, id int64, floor int) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE project SET highest_plan_id = ?, updated_at = ? WHERE id = ? AND highest_plan_id < ?",
		floor, clock.Now(), id, floor,
	)
	if err != nil {
		return classify("raise highest plan id", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*secondary.ProjectRecord, error) {
	var (
		remoteURL sql.NullString
		gitRoot   sql.NullString
	)
	record := &secondary.ProjectRecord{}
	err := row.Scan(&record.ID, &record.RepositoryID, &remoteURL, &gitRoot,
		&record.HighestPlanID, &record.CreatedAt, &record.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get project", err)
	}
	record.RemoteURL = remoteURL.String
	record.LastGitRoot = gitRoot.String
	return record, nil
}

// Ensure ProjectRepository implements the interface
var _ secondary.ProjectRepository = (*ProjectRepository)(nil)
