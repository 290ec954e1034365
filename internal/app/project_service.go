package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/rig/internal/logging"
	"github.com/example/rig/internal/ports/primary"
	"github.com/example/rig/internal/ports/secondary"
)

// ProjectServiceImpl implements the ProjectService interface.
type ProjectServiceImpl struct {
	tx          secondary.Transactor
	projectRepo secondary.ProjectRepository
	identity    secondary.RepositoryIdentityResolver
	logger      *slog.Logger
}

// NewProjectService creates a new ProjectService with injected dependencies.
func NewProjectService(
	tx secondary.Transactor,
	projectRepo secondary.ProjectRepository,
	identity secondary.RepositoryIdentityResolver,
	logger *slog.Logger,
) *ProjectServiceImpl {
	return &ProjectServiceImpl{
		tx:          tx,
		projectRepo: projectRepo,
		identity:    identity,
		logger:      logging.OrDiscard(logger),
	}
}

// EnsureProject resolves the repository containing cwd and returns its
// project, recording where the repository was last seen.
func (s *ProjectServiceImpl) EnsureProject(ctx context.Context, cwd string) (*primary.Project, error) {
	id, err := s.identity.Resolve(ctx, cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository: %w", err)
	}

	var record *secondary.ProjectRecord
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		record, err = s.projectRepo.GetOrCreate(ctx, id.RepositoryID)
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}

		if id.RemoteURL == record.RemoteURL && id.GitRoot == record.LastGitRoot {
			return nil
		}
		if err := s.projectRepo.UpdateLocation(ctx, record.ID, id.RemoteURL, id.GitRoot); err != nil {
			return fmt.Errorf("failed to update project location: %w", err)
		}
		record.RemoteURL = id.RemoteURL
		record.LastGitRoot = id.GitRoot
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("resolved project", "repository_id", record.RepositoryID, "git_root", record.LastGitRoot)
	return recordToProject(record), nil
}

// GetOrCreate returns the project for repositoryID, creating it if needed.
func (s *ProjectServiceImpl) GetOrCreate(ctx context.Context, repositoryID string) (*primary.Project, error) {
	if repositoryID == "" {
		return nil, fmt.Errorf("%w: repository ID is required", primary.ErrInvalidArgument)
	}
	record, err := s.projectRepo.GetOrCreate(ctx, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return recordToProject(record), nil
}

// GetProject returns a project, or ErrNotFound.
func (s *ProjectServiceImpl) GetProject(ctx context.Context, repositoryID string) (*primary.Project, error) {
	record, err := s.projectRepo.GetByRepositoryID(ctx, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: project %s", primary.ErrNotFound, repositoryID)
	}
	return recordToProject(record), nil
}

// ListProjects returns all projects.
func (s *ProjectServiceImpl) ListProjects(ctx context.Context) ([]*primary.Project, error) {
	records, err := s.projectRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]*primary.Project, len(records))
	for i, r := range records {
		projects[i] = recordToProject(r)
	}
	return projects, nil
}

// RemoveProject deletes a project with everything it owns.
func (s *ProjectServiceImpl) RemoveProject(ctx context.Context, repositoryID string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		record, err := s.projectRepo.GetByRepositoryID(ctx, repositoryID)
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}
		if record == nil {
			return fmt.Errorf("%w: project %s", primary.ErrNotFound, repositoryID)
		}
		if err := s.projectRepo.Delete(ctx, record.ID); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		s.logger.Info("removed project", "repository_id", repositoryID)
		return nil
	})
}

// Helper methods

func recordToProject(r *secondary.ProjectRecord) *primary.Project {
	return &primary.Project{
		ID:            r.ID,
		RepositoryID:  r.RepositoryID,
		RemoteURL:     r.RemoteURL,
		LastGitRoot:   r.LastGitRoot,
		HighestPlanID: r.HighestPlanID,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// Ensure ProjectServiceImpl implements the interface
var _ primary.ProjectService = (*ProjectServiceImpl)(nil)
