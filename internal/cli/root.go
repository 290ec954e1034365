// Package cli provides the rig command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/rig/internal/config"
	"github.com/example/rig/internal/logging"
	"github.com/example/rig/internal/ports/primary"
	"github.com/example/rig/internal/version"
	"github.com/example/rig/internal/wire"
)

// Runtime carries the global flags and the lazily opened application.
// Commands that never touch the store never open it.
type Runtime struct {
	dbPath  string
	repoID  string
	verbose bool

	cwd string
	app *wire.App
}

// NewRootCmd returns the root command and the runtime its subcommands share.
// Callers must Close the runtime once the command has finished.
func NewRootCmd() (*cobra.Command, *Runtime) {
	rt := &Runtime{}

	cmd := &cobra.Command{
		Use:     "rig",
		Short:   "Coordinate workspaces and plans across processes",
		Version: version.String(),
		Long: `rig coordinates several agents or terminals working on one repository.

It hands out plan IDs that never collide, locks workspaces so only one
process works in each, tracks which workspace and user claimed a plan,
and picks a free workspace when you need one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&rt.dbPath, "db", "", "Path to the coordination database (default: $RIG_DB or the config dir)")
	cmd.PersistentFlags().StringVar(&rt.repoID, "repo-id", "", "Repository ID to use instead of detecting it with git")
	cmd.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Log debug output to stderr")

	cmd.AddCommand(InitCmd(rt))
	cmd.AddCommand(WorkspaceCmd(rt))
	cmd.AddCommand(PlanCmd(rt))
	cmd.AddCommand(ProjectCmd(rt))
	cmd.AddCommand(RunCmd(rt))

	return cmd, rt
}

// App opens the store and wires the services on first use.
func (r *Runtime) App(cmd *cobra.Command) (*wire.App, error) {
	if r.app != nil {
		return r.app, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	r.cwd = cwd

	level := logging.ParseLevel(os.Getenv(config.EnvLogLevel))
	if r.verbose {
		level = slog.LevelDebug
	}

	app, err := wire.New(cmd.Context(), wire.Options{
		Cwd:          cwd,
		DBPath:       r.dbPath,
		RepositoryID: r.repoID,
		Logger:       logging.New(cmd.ErrOrStderr(), level),
		Stdin:        cmd.InOrStdin(),
		Stderr:       cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	r.app = app
	return app, nil
}

// Project returns the project for the repository containing the working
// directory, recording it on first use.
func (r *Runtime) Project(cmd *cobra.Command) (*wire.App, *primary.Project, error) {
	app, err := r.App(cmd)
	if err != nil {
		return nil, nil, err
	}
	project, err := app.Projects.EnsureProject(cmd.Context(), r.cwd)
	if err != nil {
		return nil, nil, fmt.Errorf("%w\nHint: run inside a git repository or pass --repo-id", err)
	}
	return app, project, nil
}

// RepoRoot returns the repository root, or the working directory outside one.
func (r *Runtime) RepoRoot() string {
	if r.app != nil && r.app.RepoRoot != "" {
		return r.app.RepoRoot
	}
	return r.cwd
}

// Close releases this process's pid locks and closes the store.
func (r *Runtime) Close() error {
	if r.app == nil {
		return nil
	}
	err := r.app.Close()
	r.app = nil
	return err
}

// workspacePath returns the absolute form of the optional path argument,
// defaulting to the working directory.
func workspacePath(args []string) (string, error) {
	p := "."
	if len(args) > 0 {
		p = args[0]
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", p, err)
	}
	return abs, nil
}
