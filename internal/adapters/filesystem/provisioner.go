package filesystem

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	coreworkspace "github.com/example/rig/internal/core/workspace"
	"github.com/example/rig/internal/ports/secondary"
)

// WorkspaceProvisioner implements secondary.WorkspaceProvisioner by cloning
// or copying the repository into a new directory.
type WorkspaceProvisioner struct {
	executor *EffectExecutor
	logger   *slog.Logger
}

// NewWorkspaceProvisioner creates a new filesystem workspace provisioner.
func NewWorkspaceProvisioner(executor *EffectExecutor, logger *slog.Logger) *WorkspaceProvisioner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WorkspaceProvisioner{executor: executor, logger: logger}
}

// DefaultBaseDir returns where workspaces go when none is configured:
// a <repo>-workspaces directory next to the repository.
func DefaultBaseDir(repoRoot string) string {
	return filepath.Join(filepath.Dir(repoRoot), filepath.Base(repoRoot)+"-workspaces")
}

// Provision creates a workspace for req.TaskID. A partially created
// directory is removed when any step fails.
func (p *WorkspaceProvisioner) Provision(ctx context.Context, req secondary.ProvisionRequest) (*secondary.ProvisionedWorkspace, error) {
	if req.RepoRoot == "" {
		return nil, fmt.Errorf("repository root is required")
	}

	baseDir := req.Config.BaseDir
	if baseDir == "" {
		baseDir = DefaultBaseDir(req.RepoRoot)
	}
	source := req.Config.CloneSource
	if source == "" {
		source = req.RepoRoot
	}

	target := p.uniqueTarget(baseDir, coreworkspace.DirName(filepath.Base(req.RepoRoot), req.TaskID))

	plan, err := coreworkspace.PlanProvision(coreworkspace.ProvisionInput{
		Source:       source,
		RepoRoot:     req.RepoRoot,
		Target:       target,
		TaskID:       req.TaskID,
		CloneMethod:  req.Config.CloneMethod,
		BranchPrefix: req.Config.BranchPrefix,
		PlanFilePath: req.PlanFilePath,
		OnCreate:     req.Config.OnCreate,
	})
	if err != nil {
		return nil, err
	}

	if err := p.executor.Execute(ctx, plan.Effects); err != nil {
		if rmErr := os.RemoveAll(target); rmErr != nil {
			p.logger.Warn("failed to remove partial workspace", "workspace", target, "error", rmErr)
		}
		return nil, fmt.Errorf("failed to provision workspace %s: %w", target, err)
	}

	return &secondary.ProvisionedWorkspace{
		Path:         target,
		TaskID:       req.TaskID,
		Branch:       plan.Branch,
		PlanFilePath: plan.PlanFileDest,
	}, nil
}

// Exists reports whether a workspace directory is present on disk.
func (p *WorkspaceProvisioner) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (p *WorkspaceProvisioner) uniqueTarget(baseDir, name string) string {
	target := filepath.Join(baseDir, name)
	for i := 2; p.pathTaken(target); i++ {
		target = filepath.Join(baseDir, fmt.Sprintf("%s-%d", name, i))
	}
	return target
}

func (p *WorkspaceProvisioner) pathTaken(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Ensure WorkspaceProvisioner implements the interface
var _ secondary.WorkspaceProvisioner = (*WorkspaceProvisioner)(nil)
