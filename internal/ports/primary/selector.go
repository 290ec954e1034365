package primary

import "context"

// WorkspaceSelector defines the primary port for picking a workspace to work in.
type WorkspaceSelector interface {
	// SelectWorkspace returns a free workspace, reclaiming a stale one or
	// provisioning a new one as needed. Returns nil, nil when none could be
	// selected; callers decide whether that is fatal.
	SelectWorkspace(ctx context.Context, req SelectWorkspaceRequest) (*SelectedWorkspace, error)
}

// SelectWorkspaceRequest contains parameters for workspace selection.
type SelectWorkspaceRequest struct {
	Cwd          string // Directory inside the repository
	TaskID       string // Task the workspace is for; names new workspaces
	PlanFilePath string // Plan file copied into new workspaces
	PreferNew    bool   // Provision before considering existing workspaces
	Interactive  bool   // Ask before clearing stale locks
	AcquireLock  bool   // Take a lock on the selected workspace
	LockType     string // Type of that lock, pid when empty
	Command      string // Recorded on the lock
	PlanUUID     string // Claim this plan for the selected workspace
	PlanID       int
	User         string
}

// SelectedWorkspace is the outcome of a selection.
type SelectedWorkspace struct {
	Workspace        *Workspace
	IsNew            bool
	ClearedStaleLock bool
	Lock             *WorkspaceLock // Set when AcquireLock was requested
	Claim            *ClaimResult   // Set when PlanUUID was given
}
