package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/rig/internal/config"
)

// InitCmd returns the init command
func InitCmd(rt *Runtime) *cobra.Command {
	var plansDir, workspaceDir, cloneMethod, branchPrefix string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Register this repository and write its rig config",
		Long: `Register the current repository with rig and write .rig/config.yml
at its root.

Examples:
  rig init
  rig init --workspace-dir ../workspaces --clone-method worktree`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, project, err := rt.Project(cmd)
			if err != nil {
				return err
			}
			root := rt.RepoRoot()

			path := config.RepoPath(root)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists\nHint: pass --force to overwrite it", path)
			}

			cfg := &config.Config{
				Plans: config.PlansConfig{Dir: plansDir},
				Workspace: config.WorkspaceConfig{
					Dir:          workspaceDir,
					CloneMethod:  cloneMethod,
					BranchPrefix: branchPrefix,
				},
			}
			if err := config.SaveConfig(root, cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Registered %s\n", project.RepositoryID)
			fmt.Fprintf(out, "✓ Wrote %s\n", path)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  rig plan new \"My first plan\"")
			fmt.Fprintln(out, "  rig workspace select")
			return nil
		},
	}

	cmd.Flags().StringVar(&plansDir, "plans-dir", config.DefaultPlansDir, "Directory holding plan files, relative to the repository")
	cmd.Flags().StringVar(&workspaceDir, "workspace-dir", "", "Directory new workspaces are created in")
	cmd.Flags().StringVar(&cloneMethod, "clone-method", "git", "How new workspaces are created: git, cp or worktree")
	cmd.Flags().StringVar(&branchPrefix, "branch-prefix", "rig/", "Prefix of branches created for new workspaces")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")

	return cmd
}
