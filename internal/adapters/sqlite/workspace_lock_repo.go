package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/rig/internal/ports/secondary"
)

// WorkspaceLockRepository implements secondary.WorkspaceLockRepository with SQLite.
type WorkspaceLockRepository struct {
	db *sql.DB
}

// NewWorkspaceLockRepository creates a new SQLite workspace lock repository.
func NewWorkspaceLockRepository(db *sql.DB) *WorkspaceLockRepository {
	return &WorkspaceLockRepository{db: db}
}

const lockSelect = `SELECT l.workspace_id, w.workspace_path, l.lock_type, l.pid, l.started_at, l.hostname, l.command
	FROM workspace_lock l JOIN workspace w ON w.id = l.workspace_id`

// Get retrieves the lock for a workspace, or nil if it is unlocked.
func (r *WorkspaceLockRepository) Get(ctx context.Context, workspaceID int64) (*secondary.WorkspaceLockRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, lockSelect+" WHERE l.workspace_id = ?", workspaceID)
	return scanLock(row)
}

// Insert creates a lock row. A second lock on the same workspace fails
// with secondary.ErrConflict.
func (r *WorkspaceLockRepository) Insert(ctx context.Context, lock *secondary.WorkspaceLockRecord) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		"INSERT INTO workspace_lock (workspace_id, lock_type, pid, started_at, hostname, command) VALUES (?, ?, ?, ?, ?, ?)",
		lock.WorkspaceID, lock.LockType, nullInt64(int64(lock.PID)), lock.StartedAt, lock.Hostname, lock.Command,
	)
	if err != nil {
		return classify("insert workspace lock", err)
	}
	return nil
}

// DeleteExact removes the lock only if it still matches the observed type,
// pid and start time, so a lock replaced in the meantime is left alone.
func (r *WorkspaceLockRepository) DeleteExact(ctx context.Context, lock *secondary.WorkspaceLockRecord) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		"DELETE FROM workspace_lock WHERE workspace_id = ? AND lock_type = ? AND pid IS ? AND started_at = ?",
		lock.WorkspaceID, lock.LockType, nullInt64(int64(lock.PID)), lock.StartedAt,
	)
	if err != nil {
		return false, classify("delete workspace lock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("delete workspace lock", err)
	}
	return n > 0, nil
}

// List retrieves all locks ordered by workspace path.
func (r *WorkspaceLockRepository) List(ctx context.Context) ([]*secondary.WorkspaceLockRecord, error) {
	return r.query(ctx, lockSelect+" ORDER BY w.workspace_path")
}

// ListByType retrieves all locks of one type.
func (r *WorkspaceLockRepository) ListByType(ctx context.Context, lockType string) ([]*secondary.WorkspaceLockRecord, error) {
	return r.query(ctx, lockSelect+" WHERE l.lock_type = ? ORDER BY w.workspace_path", lockType)
}

func (r *WorkspaceLockRepository) query(ctx context.Context, query string, args ...any) ([]*secondary.WorkspaceLockRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list workspace locks", err)
	}
	defer rows.Close()

	var locks []*secondary.WorkspaceLockRecord
	for rows.Next() {
		lock, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list workspace locks", err)
	}
	return locks, nil
}

func scanLock(row rowScanner) (*secondary.WorkspaceLockRecord, error) {
	var pid sql.NullInt64
	lock := &secondary.WorkspaceLockRecord{}
	err := row.Scan(&lock.WorkspaceID, &lock.WorkspacePath, &lock.LockType, &pid,
		&lock.StartedAt, &lock.Hostname, &lock.Command)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get workspace lock", err)
	}
	lock.PID = int(pid.Int64)
	return lock, nil
}

// Ensure WorkspaceLockRepository implements the interface
var _ secondary.WorkspaceLockRepository = (*WorkspaceLockRepository)(nil)
