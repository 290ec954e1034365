package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/rig/internal/ports/primary"
)

// EnvWorkspace is set for commands started by rig run.
const EnvWorkspace = "RIG_WORKSPACE"

// ExitError carries a child process's exit code back to main.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}

// RunCmd returns the run command
func RunCmd(rt *Runtime) *cobra.Command {
	var flags selectFlags

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run a command in a free workspace while holding its lock",
		Long: `Select a workspace, lock it for the lifetime of this process and run
the command inside it. The lock is released when the command exits, and
by any later rig command if this process dies without releasing it.

Examples:
  rig run -- make test
  rig run --new --task task-12 --plan 12 -- claude`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, req, err := flags.request(cmd, rt, true)
			if err != nil {
				return err
			}
			req.Command = strings.Join(args, " ")

			ctx := cmd.Context()
			selected, err := app.Selector.SelectWorkspace(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to select workspace: %w", err)
			}
			if selected == nil {
				return errors.New("no workspace available")
			}
			reportSelection(cmd, selected)

			path := selected.Workspace.Path
			defer func() {
				if _, err := app.Locks.ReleaseLock(ctx, primary.ReleaseLockRequest{WorkspacePath: path}); err != nil {
					app.Logger.Warn("failed to release workspace lock", "workspace", path, "error", err)
				}
			}()

			child := exec.CommandContext(ctx, args[0], args[1:]...)
			child.Dir = path
			child.Env = append(os.Environ(), EnvWorkspace+"="+path)
			child.Stdin = cmd.InOrStdin()
			child.Stdout = cmd.OutOrStdout()
			child.Stderr = cmd.ErrOrStderr()

			err = child.Run()
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return &ExitError{Code: exitErr.ExitCode()}
			}
			if err != nil {
				return fmt.Errorf("failed to run %s: %w", args[0], err)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().SetInterspersed(false)

	return cmd
}
