package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	clirender "github.com/example/rig/internal/adapters/cli"
	"github.com/example/rig/internal/adapters/prompt"
)

// ProjectCmd returns the project command
func ProjectCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage the repositories known to rig",
	}

	cmd.AddCommand(projectListCmd(rt))
	cmd.AddCommand(projectRemoveCmd(rt))

	return cmd
}

func projectListCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rt.App(cmd)
			if err != nil {
				return err
			}
			_, err = clirender.NewProjectAdapter(app.Projects, cmd.OutOrStdout()).List(cmd.Context())
			return err
		},
	}
}

func projectRemoveCmd(rt *Runtime) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove [repository-id]",
		Short: "Forget a project with its workspaces, locks, claims and plans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repositoryID := args[0]
			app, err := rt.App(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if _, err := app.Projects.GetProject(ctx, repositoryID); err != nil {
				return err
			}

			if !yes {
				if !prompt.IsInteractive() {
					return errors.New("refusing to remove a project without confirmation\nHint: pass --yes")
				}
				ok, err := prompt.New(cmd.InOrStdin(), cmd.ErrOrStderr()).Confirm(
					fmt.Sprintf("Remove project %s and everything recorded for it?", repositoryID), false)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := app.Projects.RemoveProject(ctx, repositoryID); err != nil {
				return fmt.Errorf("failed to remove project: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed project %s\n", repositoryID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
