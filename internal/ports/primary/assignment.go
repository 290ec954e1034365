package primary

import "context"

// AssignmentService defines the primary port for plan assignments.
// A plan is claimed through two independent channels, a workspace and a
// user. Releasing one never silently drops the other.
type AssignmentService interface {
	// ClaimPlan records that a workspace and/or user holds a plan,
	// overwriting any previous claim.
	ClaimPlan(ctx context.Context, req ClaimPlanRequest) (*ClaimResult, error)

	// ReleasePlan clears the matching sides of a claim. Safe to call when
	// no claim exists.
	ReleasePlan(ctx context.Context, req ReleasePlanRequest) (*ReleaseResult, error)

	// GetAssignment returns the claim on a plan, or nil if it is unclaimed.
	GetAssignment(ctx context.Context, projectID int64, planUUID string) (*Assignment, error)

	// ListAssignments returns a project's claims.
	ListAssignments(ctx context.Context, projectID int64) ([]*Assignment, error)

	// ListWorkspaceAssignments returns the claims held by a workspace.
	ListWorkspaceAssignments(ctx context.Context, workspacePath string) ([]*Assignment, error)

	// RemoveAssignment deletes a claim outright.
	RemoveAssignment(ctx context.Context, projectID int64, planUUID string) (bool, error)

	// ReleaseWorkspace clears the workspace side of every claim the
	// workspace holds and returns the number of claims touched.
	ReleaseWorkspace(ctx context.Context, workspacePath string) (int, error)

	// UpdateStatus sets the status of an existing claim.
	UpdateStatus(ctx context.Context, projectID int64, planUUID, status string) error
}

// ClaimPlanRequest contains parameters for claiming a plan.
type ClaimPlanRequest struct {
	ProjectID   int64
	PlanUUID    string
	PlanID      int   // Optional numeric plan ID
	WorkspaceID int64 // 0 for no workspace
	User        string
}

// ClaimResult reports what a claim changed.
type ClaimResult struct {
	Assignment       *Assignment
	Created          bool
	UpdatedWorkspace bool
	UpdatedUser      bool
	UpdatedPlanID    bool // A new numeric ID was recorded on an existing claim
}

// ReleasePlanRequest contains parameters for releasing a plan.
// With neither WorkspacePath nor User the claim is removed unconditionally.
type ReleasePlanRequest struct {
	ProjectID     int64
	PlanUUID      string
	WorkspacePath string
	User          string
}

// ReleaseResult reports what a release changed.
type ReleaseResult struct {
	Existed          bool
	Removed          bool
	ClearedWorkspace bool
	ClearedUser      bool
}

// Assignment is a claim on a plan.
type Assignment struct {
	ID            int64
	ProjectID     int64
	PlanUUID      string
	PlanID        int
	WorkspaceID   int64
	WorkspacePath string
	User          string
	Status        string
	AssignedAt    string
	UpdatedAt     string
}
