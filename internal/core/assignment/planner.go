// Package assignment contains the pure business logic for plan claims.
// A plan is claimed through two independent channels: a workspace slot and
// a human user. The planners below decide what a claim or release changes;
// the service layer applies the decision inside a store transaction.
package assignment

import "fmt"

// Status values stored on assignment rows.
const (
	StatusClaimed    = "claimed"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// ValidStatus reports whether s is a known assignment status.
func ValidStatus(s string) bool {
	switch s {
	case StatusClaimed, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Snapshot is the claim state of one assignment row.
// WorkspaceID 0 and User "" mean null.
type Snapshot struct {
	WorkspaceID int64
	User        string
}

// Empty reports whether neither side holds a claim.
func (s Snapshot) Empty() bool {
	return s.WorkspaceID == 0 && s.User == ""
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// CanClaim rejects a claim that names neither a workspace nor a user, since
// such a row would be deleted by the next release anyway.
func CanClaim(requested Snapshot) GuardResult {
	if requested.Empty() {
		return GuardResult{Reason: "claim requires a workspace or a user"}
	}
	return GuardResult{Allowed: true}
}

// ClaimPlan describes the effect of a claim.
type ClaimPlan struct {
	Create           bool // insert a new row
	Write            bool // update the existing row
	UpdatedWorkspace bool
	UpdatedUser      bool
	Result           Snapshot
}

// PlanClaim diffs the requested claim against the pre-image.
// A claim overwrites both sides; it never merges with the existing row.
// existing is nil when no row exists yet.
func PlanClaim(existing *Snapshot, requested Snapshot) ClaimPlan {
	if existing == nil {
		return ClaimPlan{
			Create:           true,
			UpdatedWorkspace: requested.WorkspaceID != 0,
			UpdatedUser:      requested.User != "",
			Result:           requested,
		}
	}

	plan := ClaimPlan{
		UpdatedWorkspace: existing.WorkspaceID != requested.WorkspaceID,
		UpdatedUser:      existing.User != requested.User,
		Result:           requested,
	}
	plan.Write = plan.UpdatedWorkspace || plan.UpdatedUser
	return plan
}

// ReleaseAction is what a release does to the row.
type ReleaseAction int

const (
	ReleaseNone ReleaseAction = iota
	ReleaseUpdate
	ReleaseDelete
)

// ReleaseInput describes a release request against an existing row.
type ReleaseInput struct {
	Existing Snapshot
	// WorkspaceGiven is set when the caller named a workspace path.
	WorkspaceGiven bool
	// WorkspaceMatches is set when that path resolves to Existing.WorkspaceID.
	WorkspaceMatches bool
	User             string
}

// ReleasePlan describes the effect of a release.
type ReleasePlan struct {
	Action           ReleaseAction
	ClearedWorkspace bool
	ClearedUser      bool
	Result           Snapshot
}

// PlanRelease decides which sides of a claim a release clears.
// Rules:
// - no workspace and no user given: delete unconditionally
// - the workspace side is cleared only when the given path resolves to it
// - the user side is cleared only on exact match
// - when a workspace was given but did not match, the user side is kept
// - a row left with both sides null is deleted
func PlanRelease(in ReleaseInput) ReleasePlan {
	if !in.WorkspaceGiven && in.User == "" {
		return ReleasePlan{
			Action:           ReleaseDelete,
			ClearedWorkspace: in.Existing.WorkspaceID != 0,
			ClearedUser:      in.Existing.User != "",
		}
	}

	result := in.Existing
	plan := ReleasePlan{}

	workspaceSideOK := true
	if in.WorkspaceGiven {
		workspaceSideOK = in.WorkspaceMatches
		if in.WorkspaceMatches && result.WorkspaceID != 0 {
			result.WorkspaceID = 0
			plan.ClearedWorkspace = true
		}
	}

	if in.User != "" && workspaceSideOK && result.User == in.User {
		result.User = ""
		plan.ClearedUser = true
	}

	plan.Result = result
	switch {
	case result.Empty():
		plan.Action = ReleaseDelete
	case plan.ClearedWorkspace || plan.ClearedUser:
		plan.Action = ReleaseUpdate
	default:
		plan.Action = ReleaseNone
	}
	return plan
}
