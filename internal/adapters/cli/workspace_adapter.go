// Package cli contains thin adapters that translate CLI operations into
// service calls and render the results.
package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/example/rig/internal/core/clock"
	"github.com/example/rig/internal/ports/primary"
)

// WorkspaceAdapter renders workspaces and their locks.
// It depends only on service interfaces, enabling easy testing with mocks.
type WorkspaceAdapter struct {
	workspaces  primary.WorkspaceService
	locks       primary.WorkspaceLockService
	assignments primary.AssignmentService
	out         io.Writer
	now         func() time.Time
}

// NewWorkspaceAdapter creates a new WorkspaceAdapter.
func NewWorkspaceAdapter(
	workspaces primary.WorkspaceService,
	locks primary.WorkspaceLockService,
	assignments primary.AssignmentService,
	out io.Writer,
) *WorkspaceAdapter {
	return &WorkspaceAdapter{
		workspaces:  workspaces,
		locks:       locks,
		assignments: assignments,
		out:         out,
		now:         time.Now,
	}
}

// List prints a project's workspaces with their lock state.
func (a *WorkspaceAdapter) List(ctx context.Context, projectID int64) ([]*primary.Workspace, error) {
	workspaces, err := a.workspaces.ListWorkspaces(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	if len(workspaces) == 0 {
		fmt.Fprintln(a.out, "No workspaces found.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Record an existing checkout:")
		fmt.Fprintln(a.out, "  rig workspace add /path/to/checkout")
		return workspaces, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PATH\tTASK\tBRANCH\tLOCK")
	fmt.Fprintln(w, "----\t----\t------\t----")

	for _, ws := range workspaces {
		lock, err := a.locks.GetLock(ctx, ws.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to get lock for %s: %w", ws.Path, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			ws.Path,
			orDash(ws.TaskID),
			orDash(ws.Branch),
			a.LockState(lock),
		)
	}

	w.Flush()
	return workspaces, nil
}

// Status prints the details of one workspace: metadata, lock and claims.
func (a *WorkspaceAdapter) Status(ctx context.Context, path string) (*primary.Workspace, error) {
	ws, err := a.workspaces.GetWorkspace(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	lock, err := a.locks.GetLock(ctx, ws.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}
	claims, err := a.assignments.ListWorkspaceAssignments(ctx, ws.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	fmt.Fprintf(a.out, "Workspace: %s\n", ws.Path)
	if ws.Name != "" {
		fmt.Fprintf(a.out, "Name:      %s\n", ws.Name)
	}
	if ws.Description != "" {
		fmt.Fprintf(a.out, "About:     %s\n", ws.Description)
	}
	fmt.Fprintf(a.out, "Task:      %s\n", orDash(ws.TaskID))
	fmt.Fprintf(a.out, "Branch:    %s\n", orDash(ws.Branch))
	if ws.PlanID != "" {
		fmt.Fprintf(a.out, "Plan:      %s %s\n", ws.PlanID, ws.PlanTitle)
	}
	fmt.Fprintf(a.out, "Lock:      %s\n", a.LockState(lock))
	if lock != nil {
		fmt.Fprintf(a.out, "  host:    %s\n", lock.Hostname)
		fmt.Fprintf(a.out, "  command: %s\n", lock.Command)
	}
	for _, issue := range ws.Issues {
		fmt.Fprintf(a.out, "Issue:     %s\n", issue)
	}
	for _, c := range claims {
		fmt.Fprintf(a.out, "Claim:     %s (%s)\n", c.PlanUUID, describeClaim(c))
	}

	return ws, nil
}

// Locks prints every lock in the store.
func (a *WorkspaceAdapter) Locks(ctx context.Context) ([]*primary.WorkspaceLock, error) {
	locks, err := a.locks.ListLocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}

	if len(locks) == 0 {
		fmt.Fprintln(a.out, "No workspaces are locked.")
		return locks, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PATH\tLOCK\tHOST\tCOMMAND")
	fmt.Fprintln(w, "----\t----\t----\t-------")
	for _, l := range locks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.WorkspacePath, a.LockState(l), l.Hostname, l.Command)
	}
	w.Flush()
	return locks, nil
}

// LockState renders a lock as a short colored label.
func (a *WorkspaceAdapter) LockState(lock *primary.WorkspaceLock) string {
	if lock == nil {
		return color.New(color.FgGreen).Sprint("free")
	}

	age := ""
	if started, err := clock.Parse(lock.StartedAt); err == nil {
		age = ", " + humanize.RelTime(started, a.now(), "ago", "from now")
	}

	switch {
	case lock.Stale:
		return color.New(color.FgRed).Sprintf("stale (pid %d%s)", lock.PID, age)
	case lock.Type == "persistent":
		return color.New(color.FgCyan).Sprintf("persistent%s", age)
	default:
		return color.New(color.FgYellow).Sprintf("pid %d%s", lock.PID, age)
	}
}

func describeClaim(c *primary.Assignment) string {
	if c.User != "" {
		return fmt.Sprintf("%s, user %s", c.Status, c.User)
	}
	return c.Status
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
