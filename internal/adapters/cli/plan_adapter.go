package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/example/rig/internal/ports/primary"
)

// PlanAdapter renders plan IDs, claims and syncs.
type PlanAdapter struct {
	assignments primary.AssignmentService
	out         io.Writer
}

// NewPlanAdapter creates a new PlanAdapter.
func NewPlanAdapter(assignments primary.AssignmentService, out io.Writer) *PlanAdapter {
	return &PlanAdapter{assignments: assignments, out: out}
}

// Reservation prints a reserved range, one ID per line when more than one.
func (a *PlanAdapter) Reservation(r *primary.PlanIDReservation) {
	if r.StartID == r.EndID {
		fmt.Fprintln(a.out, r.StartID)
		return
	}
	fmt.Fprintf(a.out, "%d-%d\n", r.StartID, r.EndID)
}

// Assignments prints a project's claims.
func (a *PlanAdapter) Assignments(ctx context.Context, projectID int64) ([]*primary.Assignment, error) {
	claims, err := a.assignments.ListAssignments(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	a.printAssignments(claims)
	return claims, nil
}

// WorkspaceAssignments prints the claims held by one workspace.
func (a *PlanAdapter) WorkspaceAssignments(ctx context.Context, workspacePath string) ([]*primary.Assignment, error) {
	claims, err := a.assignments.ListWorkspaceAssignments(ctx, workspacePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	a.printAssignments(claims)
	return claims, nil
}

func (a *PlanAdapter) printAssignments(claims []*primary.Assignment) {
	if len(claims) == 0 {
		fmt.Fprintln(a.out, "No plans are claimed.")
		return
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PLAN\tID\tWORKSPACE\tUSER\tSTATUS")
	fmt.Fprintln(w, "----\t--\t---------\t----\t------")
	for _, c := range claims {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.PlanUUID, planID(c.PlanID), orDash(c.WorkspacePath), orDash(c.User), c.Status)
	}
	w.Flush()
}

// Plans prints the plans stored for a project.
func (a *PlanAdapter) Plans(plans []*primary.Plan) {
	if len(plans) == 0 {
		fmt.Fprintln(a.out, "No plans found.")
		fmt.Fprintln(a.out, "Hint: rig plan sync reads them from the plans directory")
		return
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tUUID\tSTATUS\tTITLE")
	fmt.Fprintln(w, "--\t----\t------\t-----")
	for _, p := range plans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", planID(p.PlanID), p.UUID, orDash(p.Status), p.Title)
	}
	w.Flush()
}

func planID(id int) string {
	if id == 0 {
		return "-"
	}
	return fmt.Sprint(id)
}

// Claim prints the outcome of a claim.
func (a *PlanAdapter) Claim(res *primary.ClaimResult) {
	var changes []string
	switch {
	case res.Created:
		changes = append(changes, "new claim")
	default:
		if res.UpdatedWorkspace {
			changes = append(changes, "workspace updated")
		}
		if res.UpdatedUser {
			changes = append(changes, "user updated")
		}
		if res.UpdatedPlanID {
			changes = append(changes, "plan ID updated")
		}
	}
	if len(changes) == 0 {
		fmt.Fprintf(a.out, "Plan %s already claimed, nothing changed\n", res.Assignment.PlanUUID)
		return
	}

	fmt.Fprintf(a.out, "%s Claimed plan %s (%s)\n",
		color.New(color.FgGreen).Sprint("✓"), res.Assignment.PlanUUID, strings.Join(changes, ", "))
	if res.Assignment.WorkspacePath != "" {
		fmt.Fprintf(a.out, "  workspace: %s\n", res.Assignment.WorkspacePath)
	}
	if res.Assignment.User != "" {
		fmt.Fprintf(a.out, "  user:      %s\n", res.Assignment.User)
	}
}

// Release prints the outcome of a release.
func (a *PlanAdapter) Release(planUUID string, res *primary.ReleaseResult) {
	switch {
	case !res.Existed:
		fmt.Fprintf(a.out, "Plan %s was not claimed\n", planUUID)
	case res.Removed:
		fmt.Fprintf(a.out, "%s Released plan %s\n", color.New(color.FgGreen).Sprint("✓"), planUUID)
	case res.ClearedWorkspace || res.ClearedUser:
		var sides []string
		if res.ClearedWorkspace {
			sides = append(sides, "workspace")
		}
		if res.ClearedUser {
			sides = append(sides, "user")
		}
		fmt.Fprintf(a.out, "%s Released %s claim on plan %s\n",
			color.New(color.FgGreen).Sprint("✓"), strings.Join(sides, " and "), planUUID)
	default:
		fmt.Fprintf(a.out, "%s Plan %s is claimed by someone else, nothing released\n",
			color.New(color.FgYellow).Sprint("!"), planUUID)
	}
}

// Sync prints the outcome of a plan sync.
func (a *PlanAdapter) Sync(res *primary.SyncResult) {
	fmt.Fprintf(a.out, "Synced plans: %d created, %d updated, %d removed", res.Created, res.Updated, res.Removed)
	if res.Skipped > 0 {
		fmt.Fprintf(a.out, ", %d skipped", res.Skipped)
	}
	fmt.Fprintln(a.out)
}
