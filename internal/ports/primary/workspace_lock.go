package primary

import "context"

// WorkspaceLockService defines the primary port for workspace locks.
// A workspace has at most one lock. Persistent locks are explicit and only
// cleared by force; pid locks live as long as their owning process.
type WorkspaceLockService interface {
	// AcquireLock locks a workspace. Fails with *AlreadyLockedError if a
	// live lock exists; a stale pid lock is replaced in the same transaction.
	AcquireLock(ctx context.Context, req AcquireLockRequest) (*WorkspaceLock, error)

	// ReleaseLock removes a lock the caller owns, or any lock with Force.
	// Returns false when there was nothing the caller could release.
	ReleaseLock(ctx context.Context, req ReleaseLockRequest) (bool, error)

	// ClearStaleLock removes observed if it is still the lock on its
	// workspace and is still stale. Returns false when the lock was released
	// or replaced since it was observed, or is live again.
	ClearStaleLock(ctx context.Context, observed *WorkspaceLock) (bool, error)

	// GetLock returns the lock on a workspace, or nil if it is unlocked.
	GetLock(ctx context.Context, workspacePath string) (*WorkspaceLock, error)

	// IsStale reports whether a lock may be reclaimed.
	IsStale(lock *WorkspaceLock) bool

	// CleanStaleLocks removes every stale pid lock and returns how many went.
	CleanStaleLocks(ctx context.Context) (int, error)

	// ListLocks returns all locks with their staleness.
	ListLocks(ctx context.Context) ([]*WorkspaceLock, error)
}

// AcquireLockRequest contains parameters for acquiring a lock.
type AcquireLockRequest struct {
	WorkspacePath string
	Type          string // persistent or pid
	PID           int    // Defaults to the current process for pid locks
	Hostname      string // Defaults to the local hostname
	Command       string // Defaults to the current command line
}

// ReleaseLockRequest contains parameters for releasing a lock.
type ReleaseLockRequest struct {
	WorkspacePath string
	Force         bool
	PID           int // Defaults to the current process
}

// WorkspaceLock is a lock held on a workspace.
type WorkspaceLock struct {
	WorkspaceID   int64
	WorkspacePath string
	Type          string
	PID           int // 0 when the lock has no pid
	StartedAt     string
	Hostname      string
	Command       string
	Stale         bool // Filled in by ListLocks and GetLock
}
