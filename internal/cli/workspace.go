package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	clirender "github.com/example/rig/internal/adapters/cli"
	"github.com/example/rig/internal/adapters/prompt"
	"github.com/example/rig/internal/core/workspacelock"
	"github.com/example/rig/internal/ports/primary"
	"github.com/example/rig/internal/wire"
)

// WorkspaceCmd returns the workspace command
func WorkspaceCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage workspaces and their locks",
		Long: `Record workspaces (checkouts of this repository), lock them while you
work in them, and let rig pick a free one for you.`,
	}

	cmd.AddCommand(workspaceListCmd(rt))
	cmd.AddCommand(workspaceAddCmd(rt))
	cmd.AddCommand(workspaceUpdateCmd(rt))
	cmd.AddCommand(workspaceRemoveCmd(rt))
	cmd.AddCommand(workspaceLockCmd(rt))
	cmd.AddCommand(workspaceUnlockCmd(rt))
	cmd.AddCommand(workspaceStatusCmd(rt))
	cmd.AddCommand(workspaceCleanStaleCmd(rt))
	cmd.AddCommand(workspaceSelectCmd(rt))

	return cmd
}

func workspaceAdapter(app *wire.App, cmd *cobra.Command) *clirender.WorkspaceAdapter {
	return clirender.NewWorkspaceAdapter(app.Workspaces, app.Locks, app.Assignments, cmd.OutOrStdout())
}

func workspaceListCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List this repository's workspaces with their lock state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, project, err := rt.Project(cmd)
			if err != nil {
				return err
			}
			_, err = workspaceAdapter(app, cmd).List(cmd.Context(), project.ID)
			return err
		},
	}
}

func workspaceAddCmd(rt *Runtime) *cobra.Command {
	var taskID, branch, name, description, planFile string
	var issues []string

	cmd := &cobra.Command{
		Use:   "add [path]",
		Short: "Record a workspace (defaults to the current directory)",
		Long: `Record an existing checkout as a workspace of this repository.

Recording an already known path fills in any fields given here.

Examples:
  rig workspace add
  rig workspace add ../repo-task-12 --task task-12 --branch rig/task-12`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := workspacePath(args)
			if err != nil {
				return err
			}
			app, project, err := rt.Project(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			ws, err := app.Workspaces.RecordWorkspace(ctx, primary.RecordWorkspaceRequest{
				ProjectID:            project.ID,
				Path:                 path,
				TaskID:               taskID,
				OriginalPlanFilePath: planFile,
				Branch:               branch,
				Name:                 name,
				Description:          description,
			})
			if err != nil {
				return fmt.Errorf("failed to record workspace: %w", err)
			}
			for _, issue := range issues {
				if err := app.Workspaces.AddIssue(ctx, ws.Path, issue); err != nil {
					return fmt.Errorf("failed to link issue: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Recorded workspace %s\n", ws.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskID, "task", "t", "", "Task the workspace is for")
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch checked out in the workspace")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description")
	cmd.Flags().StringVar(&planFile, "plan-file", "", "Plan file the workspace was created from")
	cmd.Flags().StringArrayVar(&issues, "issue", nil, "Issue URL to link (repeatable)")

	return cmd
}

func workspaceUpdateCmd(rt *Runtime) *cobra.Command {
	var name, description, branch, planID, planTitle string

	cmd := &cobra.Command{
		Use:   "update [path]",
		Short: "Change a workspace's metadata",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := workspacePath(args)
			if err != nil {
				return err
			}
			app, err := rt.App(cmd)
			if err != nil {
				return err
			}

			req := primary.UpdateWorkspaceRequest{Path: path}
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("branch") {
				req.Branch = &branch
			}
			if flags.Changed("plan-id") {
				req.PlanID = &planID
			}
			if flags.Changed("plan-title") {
				req.PlanTitle = &planTitle
			}

			ws, err := app.Workspaces.UpdateWorkspace(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to update workspace: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated workspace %s\n", ws.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description")
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch checked out in the workspace")
	cmd.Flags().StringVar(&planID, "plan-id", "", "Plan currently worked on")
	cmd.Flags().StringVar(&planTitle, "plan-title", "", "Title of the plan currently worked on")

	return cmd
}

func workspaceRemoveCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [path]",
		Short: "Forget a workspace (the directory is left alone)",
		Long: `Forget a workspace. Its lock goes with it. Claims made through the
workspace keep their user side; claims held only by the workspace are dropped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := workspacePath(args)
			if err != nil {
				return err
			}
			app, err := rt.App(cmd)
			if err != nil {
				return err
			}
			if err := app.Workspaces.RemoveWorkspace(cmd.Context(), path); err != nil {
				return fmt.Errorf("failed to remove workspace: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed workspace %s\n", path)
			return nil
		},
	}
}

func workspaceLockCmd(rt *Runtime) *cobra.Command {
	var lockType string
	var pid int

	cmd := &cobra.Command{
		Use:   "lock [path]",
		Short: "Lock a workspace",
		Long: `Lock a workspace so it is not selected for other work.

A persistent lock stays until it is unlocked. A pid lock lasts as long as
the given process; without --pid it is tied to this command and released
when it exits.

Examples:
  rig workspace lock
  rig workspace lock ../repo-task-12 --type pid --pid 4242`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := workspacePath(args)
			if err != nil {
				return err
			}
			if pid != 0 {
				lockType = string(workspacelock.LockTypePID)
			}
			app, err := rt.App(cmd)
			if err != nil {
				return err
			}

			lock, err := app.Locks.AcquireLock(cmd.Context(), primary.AcquireLockRequest{
				WorkspacePath: path,
				Type:          lockType,
				PID:           pid,
			})
			if err != nil {
				return err
			}

			holder := lock.Type
			if lock.Type == string(workspacelock.LockTypePID) {
				holder = fmt.Sprintf("pid %d", lock.PID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Locked %s (%s)\n", lock.WorkspacePath, holder)
			return nil
		},
	}

	cmd.Flags().StringVar(&lockType, "type", string(workspacelock.LockTypePersistent), "Lock type: persistent or pid")
	cmd.Flags().IntVar(&pid, "pid", 0, "Process that owns the lock (implies --type pid)")

	return cmd
}

func workspaceUnlockCmd(rt *Runtime) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "unlock [path]",
		Short: "Unlock a workspace",
		Long: `Unlock a workspace.

Persistent locks and stale pid locks are cleared directly. A pid lock whose
process is still running is only cleared with --force.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := workspacePath(args)
			if err != nil {
				return err
			}
			app, err := rt.App(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			lock, err := app.Locks.GetLock(ctx, path)
			if err != nil {
				return fmt.Errorf("failed to get lock: %w", err)
			}
			if lock == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Workspace %s is not locked\n", path)
				return nil
			}

			var released bool
			if lock.Stale && !force {
				released, err = app.Locks.ClearStaleLock(ctx, lock)
				if err == nil && !released {
					return fmt.Errorf("lock on %s changed while unlocking\nHint: check it with rig workspace status", path)
				}
			} else {
				released, err = app.Locks.ReleaseLock(ctx, primary.ReleaseLockRequest{
					WorkspacePath: path,
					Force:         force || lock.Type == string(workspacelock.LockTypePersistent),
				})
				if err == nil && !released {
					return fmt.Errorf("workspace %s is locked by running pid %d\nHint: use --force to clear it anyway", path, lock.PID)
				}
			}
			if err != nil {
				return fmt.Errorf("failed to release lock: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Unlocked %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Clear a lock held by a running process")

	return cmd
}

func workspaceStatusCmd(rt *Runtime) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Show a workspace's lock and claims",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rt.App(cmd)
			if err != nil {
				return err
			}
			if all {
				_, err := workspaceAdapter(app, cmd).Locks(cmd.Context())
				return err
			}

			path, err := workspacePath(args)
			if err != nil {
				return err
			}
			_, err = workspaceAdapter(app, cmd).Status(cmd.Context(), path)
			return err
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "List every locked workspace instead")

	return cmd
}

func workspaceCleanStaleCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "clean-stale",
		Short: "Remove pid locks whose process is gone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rt.App(cmd)
			if err != nil {
				return err
			}
			n, err := app.Locks.CleanStaleLocks(cmd.Context())
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stale locks found.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d stale lock(s)\n", n)
			return nil
		},
	}
}

// selectFlags are shared by workspace select and run.
type selectFlags struct {
	taskID    string
	planFile  string
	planRef   string
	user      string
	preferNew bool
	yes       bool
}

func (f *selectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.taskID, "task", "t", "", "Task the workspace is for (names new workspaces)")
	cmd.Flags().StringVar(&f.planFile, "plan-file", "", "Plan file copied into a new workspace")
	cmd.Flags().StringVarP(&f.planRef, "plan", "p", "", "Claim this plan (UUID or numeric ID) for the workspace")
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "User recorded on the claim (default: configured user)")
	cmd.Flags().BoolVar(&f.preferNew, "new", false, "Create a new workspace instead of reusing one")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Do not ask before clearing stale locks")
}

func (f *selectFlags) request(cmd *cobra.Command, rt *Runtime, acquire bool) (*wire.App, primary.SelectWorkspaceRequest, error) {
	app, err := rt.App(cmd)
	if err != nil {
		return nil, primary.SelectWorkspaceRequest{}, err
	}

	req := primary.SelectWorkspaceRequest{
		Cwd:          rt.cwd,
		TaskID:       f.taskID,
		PlanFilePath: f.planFile,
		PreferNew:    f.preferNew,
		Interactive:  !f.yes && prompt.IsInteractive(),
		AcquireLock:  acquire,
		Command:      strings.Join(cmd.Flags().Args(), " "),
		User:         f.user,
	}
	if req.User == "" {
		req.User = app.Config.User
	}

	if f.planRef != "" {
		_, project, err := rt.Project(cmd)
		if err != nil {
			return nil, req, err
		}
		ref, err := resolvePlan(cmd, rt, app, project, f.planRef)
		if err != nil {
			return nil, req, err
		}
		req.PlanUUID, req.PlanID = ref.uuid, ref.id
	}
	return app, req, nil
}

func workspaceSelectCmd(rt *Runtime) *cobra.Command {
	var flags selectFlags
	var lock bool

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Pick a free workspace, creating one if none is available",
		Long: `Pick a workspace to work in and print its path.

Existing unlocked workspaces are tried newest first, then workspaces with
stale locks, and finally a new workspace is created from the configured
workspace settings.

Examples:
  cd "$(rig workspace select)"
  rig workspace select --new --task task-12 --plan 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, req, err := flags.request(cmd, rt, lock)
			if err != nil {
				return err
			}
			// This process exits right away, so the lock has to outlive it.
			req.LockType = string(workspacelock.LockTypePersistent)

			selected, err := app.Selector.SelectWorkspace(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to select workspace: %w", err)
			}
			if selected == nil {
				return errors.New("no workspace available")
			}
			reportSelection(cmd, selected)
			fmt.Fprintln(cmd.OutOrStdout(), selected.Workspace.Path)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&lock, "lock", "l", false, "Take a persistent lock on the workspace (release it with rig workspace unlock)")

	return cmd
}

// reportSelection describes a selection on stderr, keeping stdout for the path.
func reportSelection(cmd *cobra.Command, selected *primary.SelectedWorkspace) {
	w := cmd.ErrOrStderr()
	switch {
	case selected.IsNew:
		fmt.Fprintf(w, "%s Created workspace %s\n", color.GreenString("✓"), selected.Workspace.Path)
	case selected.ClearedStaleLock:
		fmt.Fprintf(w, "%s Reclaimed workspace %s from a stale lock\n", color.YellowString("!"), selected.Workspace.Path)
	default:
		fmt.Fprintf(w, "%s Selected workspace %s\n", color.GreenString("✓"), selected.Workspace.Path)
	}
	if selected.Claim != nil {
		clirender.NewPlanAdapter(nil, w).Claim(selected.Claim)
	}
}
