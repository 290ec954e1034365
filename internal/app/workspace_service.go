package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/example/rig/internal/logging"
	"github.com/example/rig/internal/ports/primary"
	"github.com/example/rig/internal/ports/secondary"
)

// WorkspaceServiceImpl implements the WorkspaceService interface.
type WorkspaceServiceImpl struct {
	tx            secondary.Transactor
	workspaceRepo secondary.WorkspaceRepository
	logger        *slog.Logger
}

// NewWorkspaceService creates a new WorkspaceService with injected dependencies.
func NewWorkspaceService(tx secondary.Transactor, workspaceRepo secondary.WorkspaceRepository, logger *slog.Logger) *WorkspaceServiceImpl {
	return &WorkspaceServiceImpl{
		tx:            tx,
		workspaceRepo: workspaceRepo,
		logger:        logging.OrDiscard(logger),
	}
}

// RecordWorkspace creates the record for a path on first observation and
// fills in any provided fields on later ones.
func (s *WorkspaceServiceImpl) RecordWorkspace(ctx context.Context, req primary.RecordWorkspaceRequest) (*primary.Workspace, error) {
	if req.Path == "" {
		return nil, fmt.Errorf("%w: workspace path is required", primary.ErrInvalidArgument)
	}
	if req.ProjectID == 0 {
		return nil, fmt.Errorf("%w: project is required", primary.ErrInvalidArgument)
	}
	path := filepath.Clean(req.Path)

	var record *secondary.WorkspaceRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.workspaceRepo.GetByPath(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to get workspace: %w", err)
		}

		if existing == nil {
			record = &secondary.WorkspaceRecord{
				ProjectID:            req.ProjectID,
				WorkspacePath:        path,
				TaskID:               req.TaskID,
				OriginalPlanFilePath: req.OriginalPlanFilePath,
				Branch:               req.Branch,
				Name:                 req.Name,
				Description:          req.Description,
			}
			if err := s.workspaceRepo.Create(ctx, record); err != nil {
				return fmt.Errorf("failed to create workspace: %w", err)
			}
			s.logger.Info("recorded workspace", "workspace", path, "project_id", req.ProjectID)
			return nil
		}

		if existing.ProjectID != req.ProjectID {
			return fmt.Errorf("%w: workspace %s belongs to another project", primary.ErrInvalidArgument, path)
		}

		record = existing
		changed := false
		for _, f := range []struct {
			dst *string
			src string
		}{
			{&record.TaskID, req.TaskID},
			{&record.OriginalPlanFilePath, req.OriginalPlanFilePath},
			{&record.Branch, req.Branch},
			{&record.Name, req.Name},
			{&record.Description, req.Description},
		} {
			if f.src != "" && *f.dst != f.src {
				*f.dst = f.src
				changed = true
			}
		}
		if !changed {
			return nil
		}
		if err := s.workspaceRepo.Update(ctx, record); err != nil {
			return fmt.Errorf("failed to update workspace: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.toWorkspace(ctx, record)
}

// GetWorkspace returns the workspace at path with its linked issues.
func (s *WorkspaceServiceImpl) GetWorkspace(ctx context.Context, path string) (*primary.Workspace, error) {
	record, err := s.workspaceRepo.GetByPath(ctx, filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: workspace %s", primary.ErrNotFound, path)
	}
	return s.toWorkspace(ctx, record)
}

// ListWorkspaces returns a project's workspaces, newest first.
func (s *WorkspaceServiceImpl) ListWorkspaces(ctx context.Context, projectID int64) ([]*primary.Workspace, error) {
	records, err := s.workspaceRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	workspaces := make([]*primary.Workspace, len(records))
	for i, r := range records {
		workspaces[i] = recordToWorkspace(r)
	}
	return workspaces, nil
}

// UpdateWorkspace changes the metadata of a workspace.
func (s *WorkspaceServiceImpl) UpdateWorkspace(ctx context.Context, req primary.UpdateWorkspaceRequest) (*primary.Workspace, error) {
	path := filepath.Clean(req.Path)

	var record *secondary.WorkspaceRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.workspaceRepo.GetByPath(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to get workspace: %w", err)
		}
		if record == nil {
			return fmt.Errorf("%w: workspace %s", primary.ErrNotFound, path)
		}

		if req.Name != nil {
			record.Name = *req.Name
		}
		if req.Description != nil {
			record.Description = *req.Description
		}
		if req.Branch != nil {
			record.Branch = *req.Branch
		}
		if req.PlanID != nil {
			record.PlanID = *req.PlanID
		}
		if req.PlanTitle != nil {
			record.PlanTitle = *req.PlanTitle
		}

		if err := s.workspaceRepo.Update(ctx, record); err != nil {
			return fmt.Errorf("failed to update workspace: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.toWorkspace(ctx, record)
}

// RemoveWorkspace deletes a workspace record.
func (s *WorkspaceServiceImpl) RemoveWorkspace(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		record, err := s.workspaceRepo.GetByPath(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to get workspace: %w", err)
		}
		if record == nil {
			return fmt.Errorf("%w: workspace %s", primary.ErrNotFound, path)
		}
		if err := s.workspaceRepo.Delete(ctx, record.ID); err != nil {
			return fmt.Errorf("failed to delete workspace: %w", err)
		}
		s.logger.Info("removed workspace", "workspace", path)
		return nil
	})
}

// AddIssue links an issue URL to a workspace.
func (s *WorkspaceServiceImpl) AddIssue(ctx context.Context, path, issueURL string) error {
	if issueURL == "" {
		return fmt.Errorf("%w: issue URL is required", primary.ErrInvalidArgument)
	}
	record, err := s.workspaceRepo.GetByPath(ctx, filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to get workspace: %w", err)
	}
	if record == nil {
		return fmt.Errorf("%w: workspace %s", primary.ErrNotFound, path)
	}
	if err := s.workspaceRepo.AddIssue(ctx, record.ID, issueURL); err != nil {
		return fmt.Errorf("failed to add issue: %w", err)
	}
	return nil
}

// Helper methods

func (s *WorkspaceServiceImpl) toWorkspace(ctx context.Context, r *secondary.WorkspaceRecord) (*primary.Workspace, error) {
	ws := recordToWorkspace(r)
	issues, err := s.workspaceRepo.ListIssues(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	ws.Issues = issues
	return ws, nil
}

func recordToWorkspace(r *secondary.WorkspaceRecord) *primary.Workspace {
	return &primary.Workspace{
		ID:                   r.ID,
		ProjectID:            r.ProjectID,
		Path:                 r.WorkspacePath,
		TaskID:               r.TaskID,
		OriginalPlanFilePath: r.OriginalPlanFilePath,
		Branch:               r.Branch,
		Name:                 r.Name,
		Description:          r.Description,
		PlanID:               r.PlanID,
		PlanTitle:            r.PlanTitle,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

// Ensure WorkspaceServiceImpl implements the interface
var _ primary.WorkspaceService = (*WorkspaceServiceImpl)(nil)
