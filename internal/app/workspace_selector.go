package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/example/rig/internal/core/workspacelock"
	"github.com/example/rig/internal/logging"
	"github.com/example/rig/internal/ports/primary"
	"github.com/example/rig/internal/ports/secondary"
)

// SelectorConfig carries the configuration the selector needs.
type SelectorConfig struct {
	// PrimaryWorkspace is never auto-selected.
	PrimaryWorkspace string
	Provision        secondary.ProvisionConfig
}

// WorkspaceSelectorImpl implements the WorkspaceSelector interface.
type WorkspaceSelectorImpl struct {
	identity      secondary.RepositoryIdentityResolver
	projectRepo   secondary.ProjectRepository
	workspaceRepo secondary.WorkspaceRepository
	locks         primary.WorkspaceLockService
	assignments   primary.AssignmentService
	provisioner   secondary.WorkspaceProvisioner
	prompter      secondary.Prompter
	config        SelectorConfig
	logger        *slog.Logger
}

// NewWorkspaceSelector creates a new WorkspaceSelector with injected dependencies.
func NewWorkspaceSelector(
	identity secondary.RepositoryIdentityResolver,
	projectRepo secondary.ProjectRepository,
	workspaceRepo secondary.WorkspaceRepository,
	locks primary.WorkspaceLockService,
	assignments primary.AssignmentService,
	provisioner secondary.WorkspaceProvisioner,
	prompter secondary.Prompter,
	config SelectorConfig,
	logger *slog.Logger,
) *WorkspaceSelectorImpl {
	return &WorkspaceSelectorImpl{
		identity:      identity,
		projectRepo:   projectRepo,
		workspaceRepo: workspaceRepo,
		locks:         locks,
		assignments:   assignments,
		provisioner:   provisioner,
		prompter:      prompter,
		config:        config,
		logger:        logging.OrDiscard(logger),
	}
}

// SelectWorkspace picks a workspace in this order:
//  1. a new one, when PreferNew is set
//  2. the newest existing workspace without a lock
//  3. an existing workspace whose lock is stale, after clearing it
//     (interactive callers are asked first)
//  4. a new one
//
// Locking races with other processes skip to the next candidate.
// Failures to resolve the repository or provision a workspace yield nil, nil;
// store failures are returned.
func (s *WorkspaceSelectorImpl) SelectWorkspace(ctx context.Context, req primary.SelectWorkspaceRequest) (*primary.SelectedWorkspace, error) {
	identity, err := s.identity.Resolve(ctx, req.Cwd)
	if err != nil {
		s.logger.Warn("cannot select workspace outside a repository", "cwd", req.Cwd, "error", err)
		return nil, nil
	}

	project, err := s.projectRepo.GetOrCreate(ctx, identity.RepositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	provisionTried := false
	if req.PreferNew {
		provisionTried = true
		sel, err := s.provisionNew(ctx, project, identity, req)
		if err != nil || sel != nil {
			return sel, err
		}
	}

	candidates, err := s.candidates(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	// Unlocked workspaces, newest first
	for _, ws := range candidates {
		lock, err := s.locks.GetLock(ctx, ws.WorkspacePath)
		if err != nil {
			return nil, err
		}
		if lock != nil {
			continue
		}
		sel, err := s.take(ctx, project, ws, req, false, false)
		if err != nil || sel != nil {
			return sel, err
		}
	}

	// Workspaces held by stale locks
	for _, ws := range candidates {
		lock, err := s.locks.GetLock(ctx, ws.WorkspacePath)
		if err != nil {
			return nil, err
		}
		if lock == nil || !lock.Stale {
			continue
		}
		if req.Interactive && !s.confirmClear(lock) {
			continue
		}

		cleared, err := s.locks.ClearStaleLock(ctx, lock)
		if err != nil {
			return nil, err
		}
		if !cleared {
			s.logger.Debug("stale lock changed before it could be cleared", "workspace", ws.WorkspacePath)
			continue
		}

		sel, err := s.take(ctx, project, ws, req, false, true)
		if err != nil || sel != nil {
			return sel, err
		}
	}

	if provisionTried {
		s.logger.Warn("no workspace available", "repository_id", project.RepositoryID)
		return nil, nil
	}
	return s.provisionNew(ctx, project, identity, req)
}

// candidates lists a project's workspaces that may be auto-selected.
func (s *WorkspaceSelectorImpl) candidates(ctx context.Context, projectID int64) ([]*secondary.WorkspaceRecord, error) {
	records, err := s.workspaceRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	primaryPath := ""
	if s.config.PrimaryWorkspace != "" {
		primaryPath = filepath.Clean(s.config.PrimaryWorkspace)
	}

	out := make([]*secondary.WorkspaceRecord, 0, len(records))
	for _, r := range records {
		if primaryPath != "" && filepath.Clean(r.WorkspacePath) == primaryPath {
			continue
		}
		if !s.provisioner.Exists(r.WorkspacePath) {
			s.logger.Debug("skipping workspace missing on disk", "workspace", r.WorkspacePath)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// take locks and claims ws as requested. Returns nil, nil when another
// process locked it first.
func (s *WorkspaceSelectorImpl) take(
	ctx context.Context,
	project *secondary.ProjectRecord,
	ws *secondary.WorkspaceRecord,
	req primary.SelectWorkspaceRequest,
	isNew, clearedStale bool,
) (*primary.SelectedWorkspace, error) {
	sel := &primary.SelectedWorkspace{
		Workspace:        recordToWorkspace(ws),
		IsNew:            isNew,
		ClearedStaleLock: clearedStale,
	}

	if req.AcquireLock {
		lockType := req.LockType
		if lockType == "" {
			lockType = string(workspacelock.LockTypePID)
		}
		lock, err := s.locks.AcquireLock(ctx, primary.AcquireLockRequest{
			WorkspacePath: ws.WorkspacePath,
			Type:          lockType,
			Command:       req.Command,
		})
		if errors.Is(err, primary.ErrAlreadyLocked) {
			s.logger.Debug("workspace locked by another process", "workspace", ws.WorkspacePath)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		sel.Lock = lock
	}

	if req.PlanUUID != "" {
		claim, err := s.assignments.ClaimPlan(ctx, primary.ClaimPlanRequest{
			ProjectID:   project.ID,
			PlanUUID:    req.PlanUUID,
			PlanID:      req.PlanID,
			WorkspaceID: ws.ID,
			User:        req.User,
		})
		if err != nil {
			if sel.Lock != nil {
				release := primary.ReleaseLockRequest{
					WorkspacePath: ws.WorkspacePath,
					Force:         sel.Lock.Type == string(workspacelock.LockTypePersistent),
				}
				if _, relErr := s.locks.ReleaseLock(ctx, release); relErr != nil {
					s.logger.Warn("failed to release lock after claim error", "workspace", ws.WorkspacePath, "error", relErr)
				}
			}
			return nil, err
		}
		sel.Claim = claim
	}

	s.logger.Info("selected workspace", "workspace", ws.WorkspacePath, "new", isNew)
	return sel, nil
}

func (s *WorkspaceSelectorImpl) provisionNew(
	ctx context.Context,
	project *secondary.ProjectRecord,
	identity *secondary.RepositoryIdentity,
	req primary.SelectWorkspaceRequest,
) (*primary.SelectedWorkspace, error) {
	taskID := req.TaskID
	if taskID == "" {
		taskID = "task-" + uuid.NewString()[:8]
	}

	created, err := s.provisioner.Provision(ctx, secondary.ProvisionRequest{
		RepoRoot:     identity.GitRoot,
		TaskID:       taskID,
		PlanFilePath: req.PlanFilePath,
		Config:       s.config.Provision,
	})
	if err != nil {
		s.logger.Warn("failed to provision workspace", "repository_id", project.RepositoryID, "error", err)
		return nil, nil
	}

	record := &secondary.WorkspaceRecord{
		ProjectID:            project.ID,
		TaskID:               created.TaskID,
		WorkspacePath:        filepath.Clean(created.Path),
		OriginalPlanFilePath: req.PlanFilePath,
		Branch:               created.Branch,
	}
	if err := s.workspaceRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record workspace: %w", err)
	}

	return s.take(ctx, project, record, req, true, false)
}

func (s *WorkspaceSelectorImpl) confirmClear(lock *primary.WorkspaceLock) bool {
	msg := fmt.Sprintf("Workspace %s is locked by pid %d on %s since %s, which looks stale. Clear the lock?",
		lock.WorkspacePath, lock.PID, lock.Hostname, lock.StartedAt)
	ok, err := s.prompter.Confirm(msg, true)
	if err != nil {
		s.logger.Warn("prompt failed", "error", err)
		return false
	}
	return ok
}

// Ensure WorkspaceSelectorImpl implements the interface
var _ primary.WorkspaceSelector = (*WorkspaceSelectorImpl)(nil)
