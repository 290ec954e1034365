// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import "context"

// Transactor runs a function inside a single store transaction.
// Repository calls made with the ctx passed to fn join that transaction;
// nested WithinTx calls reuse the outer one.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProjectRepository defines the secondary port for project persistence.
type ProjectRepository interface {
	// GetByRepositoryID retrieves a project, or nil if none exists.
	GetByRepositoryID(ctx context.Context, repositoryID string) (*ProjectRecord, error)

	// GetByID retrieves a project by its row ID, or nil if none exists.
	GetByID(ctx context.Context, id int64) (*ProjectRecord, error)

	// GetOrCreate returns the project for repositoryID, inserting it first if needed.
	GetOrCreate(ctx context.Context, repositoryID string) (*ProjectRecord, error)

	// UpdateLocation records the last seen remote URL and git root.
	UpdateLocation(ctx context.Context, id int64, remoteURL, gitRoot string) error

	// List retrieves all projects ordered by repository ID.
	List(ctx context.Context) ([]*ProjectRecord, error)

	// Delete removes a project and, by cascade, everything it owns.
	Delete(ctx context.Context, id int64) error

	// ReservePlanIDs atomically advances highest_plan_id to
	// max(highest_plan_id, floor) + count and returns the new value.
	ReservePlanIDs(ctx context.Context, id int64, floor, count int) (int, error)

	// RaiseHighestPlanID advances highest_plan_id to at least floor.
	RaiseHighestPlanID(ctx context.Context, id int64, floor int) error
}

// ProjectRecord represents a project as stored in persistence.
type ProjectRecord struct {
	ID            int64
	RepositoryID  string
	RemoteURL     string // Empty string means null
	LastGitRoot   string // Empty string means null
	HighestPlanID int
	CreatedAt     string
	UpdatedAt     string
}

// WorkspaceRepository defines the secondary port for workspace persistence.
type WorkspaceRepository interface {
	// Create persists a new workspace and sets its ID.
	Create(ctx context.Context, ws *WorkspaceRecord) error

	// GetByID retrieves a workspace, or nil if none exists.
	GetByID(ctx context.Context, id int64) (*WorkspaceRecord, error)

	// GetByPath retrieves a workspace by its canonical path, or nil if none exists.
	GetByPath(ctx context.Context, path string) (*WorkspaceRecord, error)

	// ListByProject retrieves a project's workspaces, newest first.
	ListByProject(ctx context.Context, projectID int64) ([]*WorkspaceRecord, error)

	// Update overwrites the mutable metadata of a workspace.
	Update(ctx context.Context, ws *WorkspaceRecord) error

	// Delete removes a workspace; its lock and issues cascade. Claims keep their
	// user side, and claims held only through the workspace are removed.
	Delete(ctx context.Context, id int64) error

	// AddIssue links an issue URL to a workspace. Duplicates are ignored.
	AddIssue(ctx context.Context, workspaceID int64, issueURL string) error

	// ListIssues retrieves the issue URLs linked to a workspace.
	ListIssues(ctx context.Context, workspaceID int64) ([]string, error)
}

// WorkspaceRecord represents a workspace as stored in persistence.
type WorkspaceRecord struct {
	ID                   int64
	ProjectID            int64
	TaskID               string // Empty string means null
	WorkspacePath        string
	OriginalPlanFilePath string // Empty string means null
	Branch               string // Empty string means null
	Name                 string // Empty string means null
	Description          string // Empty string means null
	PlanID               string // Empty string means null
	PlanTitle            string // Empty string means null
	CreatedAt            string
	UpdatedAt            string
}

// WorkspaceLockRepository defines the secondary port for lock rows.
type WorkspaceLockRepository interface {
	// Get retrieves the lock for a workspace, or nil if it is unlocked.
	Get(ctx context.Context, workspaceID int64) (*WorkspaceLockRecord, error)

	// Insert creates a lock row. Fails with ErrConflict if one already exists.
	Insert(ctx context.Context, lock *WorkspaceLockRecord) error

	// DeleteExact removes the lock only if it still has the observed
	// type, pid and start time. Returns whether a row was removed.
	DeleteExact(ctx context.Context, lock *WorkspaceLockRecord) (bool, error)

	// List retrieves all locks, joined with their workspace paths.
	List(ctx context.Context) ([]*WorkspaceLockRecord, error)

	// ListByType retrieves all locks of one type.
	ListByType(ctx context.Context, lockType string) ([]*WorkspaceLockRecord, error)
}

// WorkspaceLockRecord represents a workspace lock as stored in persistence.
type WorkspaceLockRecord struct {
	WorkspaceID   int64
	WorkspacePath string // Read-only, joined from workspace
	LockType      string
	PID           int // 0 means null
	StartedAt     string
	Hostname      string
	Command       string
}

// AssignmentRepository defines the secondary port for plan assignments.
type AssignmentRepository interface {
	// Get retrieves the assignment for (project, plan), or nil if none exists.
	Get(ctx context.Context, projectID int64, planUUID string) (*AssignmentRecord, error)

	// Create persists a new assignment and sets its ID.
	Create(ctx context.Context, a *AssignmentRecord) error

	// UpdateClaim overwrites the workspace and user sides and bumps updated_at.
	UpdateClaim(ctx context.Context, a *AssignmentRecord) error

	// UpdateStatus sets the status of an assignment.
	UpdateStatus(ctx context.Context, projectID int64, planUUID, status string) (bool, error)

	// Delete removes an assignment. Returns whether a row was removed.
	Delete(ctx context.Context, projectID int64, planUUID string) (bool, error)

	// ListByProject retrieves all assignments of a project.
	ListByProject(ctx context.Context, projectID int64) ([]*AssignmentRecord, error)

	// ListByWorkspace retrieves all assignments held by a workspace.
	ListByWorkspace(ctx context.Context, workspaceID int64) ([]*AssignmentRecord, error)
}

// AssignmentRecord represents an assignment as stored in persistence.
type AssignmentRecord struct {
	ID            int64
	ProjectID     int64
	PlanUUID      string
	PlanID        int   // 0 means null
	WorkspaceID   int64 // 0 means null
	WorkspacePath string // Read-only, joined from workspace
	ClaimedByUser string // Empty string means null
	Status        string
	AssignedAt    string
	UpdatedAt     string
}

// PlanRepository defines the secondary port for plan metadata.
type PlanRepository interface {
	// Upsert inserts or replaces a plan row and its dependency edges.
	Upsert(ctx context.Context, plan *PlanRecord) (created bool, err error)

	// GetByUUID retrieves a plan, or nil if none exists.
	GetByUUID(ctx context.Context, uuid string) (*PlanRecord, error)

	// ListByProject retrieves a project's plans ordered by plan ID.
	ListByProject(ctx context.Context, projectID int64) ([]*PlanRecord, error)

	// DeleteExcept removes the project's plans whose UUID is not in keep.
	DeleteExcept(ctx context.Context, projectID int64, keep []string) (int, error)
}

// PlanRecord represents plan metadata as stored in persistence.
type PlanRecord struct {
	UUID         string
	ProjectID    int64
	PlanID       int // 0 means null
	Title        string
	Status       string
	ParentUUID   string // Empty string means null
	Filename     string
	Dependencies []string // UUIDs this plan depends on
	CreatedAt    string
	UpdatedAt    string
}
