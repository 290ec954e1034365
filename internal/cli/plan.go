package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	clirender "github.com/example/rig/internal/adapters/cli"
	"github.com/example/rig/internal/adapters/planfile"
	"github.com/example/rig/internal/ports/primary"
	"github.com/example/rig/internal/ports/secondary"
	"github.com/example/rig/internal/wire"
)

// PlanCmd returns the plan command
func PlanCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Reserve plan IDs and track who works on which plan",
		Long: `Plans are files in the repository's plans directory, identified by a UUID
and a numeric ID. rig hands out numeric IDs that never collide across
workspaces and records which workspace and user claimed each plan.`,
	}

	cmd.AddCommand(planReserveCmd(rt))
	cmd.AddCommand(planNewCmd(rt))
	cmd.AddCommand(planListCmd(rt))
	cmd.AddCommand(planClaimCmd(rt))
	cmd.AddCommand(planReleaseCmd(rt))
	cmd.AddCommand(planStatusCmd(rt))
	cmd.AddCommand(planAssignmentsCmd(rt))
	cmd.AddCommand(planSyncCmd(rt))

	return cmd
}

func planAdapter(app *wire.App, cmd *cobra.Command) *clirender.PlanAdapter {
	return clirender.NewPlanAdapter(app.Assignments, cmd.OutOrStdout())
}

// plansDir returns the flag value, or the configured plans directory.
func plansDir(rt *Runtime, app *wire.App, flag string) string {
	if flag != "" {
		abs, err := filepath.Abs(flag)
		if err == nil {
			return abs
		}
		return flag
	}
	return app.Config.PlansDir(rt.RepoRoot())
}

// localMax returns the highest plan ID found in the plans directory unless
// the caller supplied one.
func localMax(app *wire.App, dir string, override int) (int, error) {
	if override >= 0 {
		return override, nil
	}
	n, err := app.PlanSync.MaxLocalID(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read local plan IDs: %w", err)
	}
	return n, nil
}

func planReserveCmd(rt *Runtime) *cobra.Command {
	var count, observed int
	var dir string

	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve plan IDs",
		Long: `Reserve one or more consecutive plan IDs for this repository.

IDs are above every ID handed out before and above every ID found in the
plans directory, so workspaces that have not seen each other's plans yet
still never pick the same ID.

Examples:
  rig plan reserve
  rig plan reserve --count 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, project, err := rt.Project(cmd)
			if err != nil {
				return err
			}
			floor, err := localMax(app, plansDir(rt, app, dir), observed)
			if err != nil {
				return err
			}

			reservation, err := app.PlanIDs.ReservePlanIDs(cmd.Context(), primary.ReservePlanIDsRequest{
				RepositoryID:       project.RepositoryID,
				LocalMaxObservedID: floor,
				Count:              count,
			})
			if err != nil {
				return fmt.Errorf("failed to reserve plan IDs: %w", err)
			}
			planAdapter(app, cmd).Reservation(reservation)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of IDs to reserve")
	cmd.Flags().IntVar(&observed, "local-max", -1, "Highest ID seen locally (default: scan the plans directory)")
	cmd.Flags().StringVar(&dir, "dir", "", "Plans directory (default: plans.dir from the config)")

	return cmd
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	slug := strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(slug) > 50 {
		slug = strings.TrimRight(slug[:50], "-")
	}
	if slug == "" {
		return "plan"
	}
	return slug
}

func planNewCmd(rt *Runtime) *cobra.Command {
	var parent int
	var dependsOn []int
	var status, dir string

	cmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a plan file with a fresh ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := args[0]
			app, project, err := rt.Project(cmd)
			if err != nil {
				return err
			}
			target := plansDir(rt, app, dir)
			floor, err := localMax(app, target, -1)
			if err != nil {
				return err
			}

			id, err := app.PlanIDs.NextPlanID(cmd.Context(), project.RepositoryID, floor)
			if err != nil {
				return fmt.Errorf("failed to reserve plan ID: %w", err)
			}

			plan := &secondary.PlanFile{
				UUID:         uuid.NewString(),
				ID:           id,
				Title:        title,
				Status:       status,
				Parent:       parent,
				Dependencies: dependsOn,
			}
			path := filepath.Join(target, fmt.Sprintf("%d-%s.plan.md", id, slugify(title)))
			if err := planfile.Write(path, plan, "# "+title+"\n"); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created plan %d: %s\n", id, title)
			fmt.Fprintf(cmd.OutOrStdout(), "  UUID: %s\n", plan.UUID)
			fmt.Fprintf(cmd.OutOrStdout(), "  File: %s\n", path)
			return nil
		},
	}

	cmd.Flags().IntVar(&parent, "parent", 0, "Numeric ID of the parent plan")
	cmd.Flags().IntSliceVar(&dependsOn, "depends-on", nil, "Numeric IDs of plans this one depends on")
	cmd.Flags().StringVarP(&status, "status", "s", "pending", "Initial status")
	cmd.Flags().StringVar(&dir, "dir", "", "Plans directory (default: plans.dir from the config)")

	return cmd
}

func planListCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the plans recorded by the last sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, project, err := rt.Project(cmd)
			if err != nil {
				return err
			}
			plans, err := app.PlanSync.ListPlans(cmd.Context(), project.RepositoryID)
			if err != nil {
				return fmt.Errorf("failed to list plans: %w", err)
			}
			planAdapter(app, cmd).Plans(plans)
			return nil
		},
	}
}

// planRef identifies a plan by UUID and, when known, numeric ID.
type planRef struct {
	uuid string
	id   int
}

// resolvePlan accepts a plan UUID or numeric ID. Numeric IDs are looked up
// in the store first, then in the plans directory; anything else is used as
// the plan's key.
func resolvePlan(cmd *cobra.Command, rt *Runtime, app *wire.App, project *primary.Project, ref string) (planRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return planRef{}, fmt.Errorf("%w: plan reference is empty", primary.ErrInvalidArgument)
	}
	id, err := strconv.Atoi(ref)
	if err != nil {
		return planRef{uuid: ref}, nil
	}
	if id <= 0 {
		return planRef{}, fmt.Errorf("%w: plan ID %d must be positive", primary.ErrInvalidArgument, id)
	}

	plans, err := app.PlanSync.ListPlans(cmd.Context(), project.RepositoryID)
	if err != nil {
		return planRef{}, fmt.Errorf("failed to list plans: %w", err)
	}
	for _, p := range plans {
		if p.PlanID == id {
			return planRef{uuid: p.UUID, id: id}, nil
		}
	}

	files, err := app.Plans.Scan(plansDir(rt, app, ""))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return planRef{}, err
	}
	for _, f := range files {
		if f.ID == id && f.UUID != "" {
			return planRef{uuid: f.UUID, id: id}, nil
		}
	}
	return planRef{}, fmt.Errorf("%w: plan %d", primary.ErrNotFound, id)
}

// workspaceID returns the ID of the recorded workspace at path.
func workspaceID(cmd *cobra.Command, app *wire.App, path string) (int64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	ws, err := app.Workspaces.GetWorkspace(cmd.Context(), abs)
	if err != nil {
		if errors.Is(err, primary.ErrNotFound) {
			return 0, fmt.Errorf("%w\nHint: record it first with rig workspace add", err)
		}
		return 0, err
	}
	return ws.ID, nil
}

func planClaimCmd(rt *Runtime) *cobra.Command {
	var workspace, user string
	var noUser bool

	cmd := &cobra.Command{
		Use:   "claim [plan]",
		Short: "Claim a plan for a workspace and/or user",
		Long: `Record that a workspace and/or user works on a plan. The plan is given
by UUID or numeric ID. The user defaults to the configured user.

Examples:
  rig plan claim 12 --workspace .
  rig plan claim 0b8e7c1e-5b8f-4a44-9d55-2d0f1f6ad3c1 --user alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, project, err := rt.Project(cmd)
			if err != nil {
				return err
			}
			ref, err := resolvePlan(cmd, rt, app, project, args[0])
			if err != nil {
				return err
			}

			req := primary.ClaimPlanRequest{
				ProjectID: project.ID,
				PlanUUID:  ref.uuid,
				PlanID:    ref.id,
				User:      user,
			}
			if req.User == "" && !noUser {
				req.User = app.Config.User
			}
			if workspace != "" {
				req.WorkspaceID, err = workspaceID(cmd, app, workspace)
				if err != nil {
					return err
				}
			}

			res, err := app.Assignments.ClaimPlan(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to claim plan: %w", err)
			}
			planAdapter(app, cmd).Claim(res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace path that works on the plan")
	cmd.Flags().StringVarP(&user, "user", "u", "", "User that works on the plan (default: configured user)")
	cmd.Flags().BoolVar(&noUser, "no-user", false, "Claim for the workspace only")

	return cmd
}

func planReleaseCmd(rt *Runtime) *cobra.Command {
	var workspace, user string
	var all bool

	cmd := &cobra.Command{
		Use:   "release [plan]",
		Short: "Release a workspace's and/or user's claim on a plan",
		Long: `Release the sides of a claim that match. A claim held by another
workspace or user is left alone. With --all the claim is removed whatever
holds it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, project, err := rt.Project(cmd)
			if err != nil {
				return err
			}
			ref, err := resolvePlan(cmd, rt, app, project, args[0])
			if err != nil {
				return err
			}

			if all {
				removed, err := app.Assignments.RemoveAssignment(cmd.Context(), project.ID, ref.uuid)
				if err != nil {
					return fmt.Errorf("failed to remove claim: %w", err)
				}
				planAdapter(app, cmd).Release(ref.uuid, &primary.ReleaseResult{Existed: removed, Removed: removed})
				return nil
			}

			req := primary.ReleasePlanRequest{ProjectID: project.ID, PlanUUID: ref.uuid, User: user}
			if workspace != "" {
				abs, err := filepath.Abs(workspace)
				if err != nil {
					return fmt.Errorf("failed to resolve path %s: %w", workspace, err)
				}
				req.WorkspacePath = abs
			}
			if req.WorkspacePath == "" && req.User == "" {
				return errors.New("nothing to release\nHint: pass --workspace, --user or --all")
			}

			res, err := app.Assignments.ReleasePlan(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to release plan: %w", err)
			}
			planAdapter(app, cmd).Release(ref.uuid, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Release the claim of this workspace")
	cmd.Flags().StringVarP(&user, "user", "u", "", "Release the claim of this user")
	cmd.Flags().BoolVar(&all, "all", false, "Remove the claim whoever holds it")

	return cmd
}

func planStatusCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "status [plan] [status]",
		Short: "Set the status of a claimed plan (claimed, in_progress, done)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, project, err := rt.Project(cmd)
			if err != nil {
				return err
			}
			ref, err := resolvePlan(cmd, rt, app, project, args[0])
			if err != nil {
				return err
			}
			if err := app.Assignments.UpdateStatus(cmd.Context(), project.ID, ref.uuid, args[1]); err != nil {
				return fmt.Errorf("failed to update status: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Plan %s is %s\n", ref.uuid, args[1])
			return nil
		},
	}
}

func planAssignmentsCmd(rt *Runtime) *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "List claimed plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspace != "" {
				app, err := rt.App(cmd)
				if err != nil {
					return err
				}
				abs, err := filepath.Abs(workspace)
				if err != nil {
					return fmt.Errorf("failed to resolve path %s: %w", workspace, err)
				}
				_, err = planAdapter(app, cmd).WorkspaceAssignments(cmd.Context(), abs)
				return err
			}

			app, project, err := rt.Project(cmd)
			if err != nil {
				return err
			}
			_, err = planAdapter(app, cmd).Assignments(cmd.Context(), project.ID)
			return err
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Only show claims held by this workspace")

	return cmd
}

func planSyncCmd(rt *Runtime) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Record the plans found in the plans directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, project, err := rt.Project(cmd)
			if err != nil {
				return err
			}
			res, err := app.PlanSync.SyncDirectory(cmd.Context(), project.RepositoryID, plansDir(rt, app, dir))
			if err != nil {
				return fmt.Errorf("failed to sync plans: %w", err)
			}
			planAdapter(app, cmd).Sync(res)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Plans directory (default: plans.dir from the config)")

	return cmd
}
