package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/example/rig/internal/logging"
	"github.com/example/rig/internal/ports/primary"
	"github.com/example/rig/internal/ports/secondary"
)

// PlanSyncServiceImpl implements the PlanSyncService interface.
type PlanSyncServiceImpl struct {
	tx          secondary.Transactor
	projectRepo secondary.ProjectRepository
	planRepo    secondary.PlanRepository
	reader      secondary.PlanFileReader
	logger      *slog.Logger
}

// NewPlanSyncService creates a new PlanSyncService with injected dependencies.
func NewPlanSyncService(
	tx secondary.Transactor,
	projectRepo secondary.ProjectRepository,
	planRepo secondary.PlanRepository,
	reader secondary.PlanFileReader,
	logger *slog.Logger,
) *PlanSyncServiceImpl {
	return &PlanSyncServiceImpl{
		tx:          tx,
		projectRepo: projectRepo,
		planRepo:    planRepo,
		reader:      reader,
		logger:      logging.OrDiscard(logger),
	}
}

// SyncPlans makes the stored plans of a project match plans exactly.
// Parents and dependencies are declared by numeric ID and stored by UUID;
// references to plans that are not in the set are dropped. The project's
// plan ID high-water mark is raised to the highest ID seen.
func (s *PlanSyncServiceImpl) SyncPlans(ctx context.Context, repositoryID string, plans []primary.PlanMetadata) (*primary.SyncResult, error) {
	if repositoryID == "" {
		return nil, fmt.Errorf("%w: repository ID is required", primary.ErrInvalidArgument)
	}

	uuidByID := make(map[int]string)
	for _, p := range plans {
		if p.ID > 0 && hasKey(p.UUID) {
			uuidByID[p.ID] = p.UUID
		}
	}

	result := &primary.SyncResult{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		project, err := s.projectRepo.GetOrCreate(ctx, repositoryID)
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}

		keep := make([]string, 0, len(plans))
		maxID := 0
		for _, p := range plans {
			if !hasKey(p.UUID) {
				s.logger.Warn("skipping plan without a uuid", "file", p.Filename)
				result.Skipped++
				continue
			}

			record := &secondary.PlanRecord{
				UUID:       p.UUID,
				ProjectID:  project.ID,
				PlanID:     p.ID,
				Title:      p.Title,
				Status:     p.Status,
				ParentUUID: uuidByID[p.Parent],
				Filename:   p.Filename,
			}
			for _, dep := range p.Dependencies {
				if depUUID, ok := uuidByID[dep]; ok && depUUID != p.UUID {
					record.Dependencies = append(record.Dependencies, depUUID)
				}
			}

			created, err := s.planRepo.Upsert(ctx, record)
			if err != nil {
				return fmt.Errorf("failed to store plan %s: %w", p.UUID, err)
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
			keep = append(keep, p.UUID)
			if p.ID > maxID {
				maxID = p.ID
			}
		}

		removed, err := s.planRepo.DeleteExcept(ctx, project.ID, keep)
		if err != nil {
			return fmt.Errorf("failed to remove stale plans: %w", err)
		}
		result.Removed = removed

		if maxID > 0 {
			if err := s.projectRepo.RaiseHighestPlanID(ctx, project.ID, maxID); err != nil {
				return fmt.Errorf("failed to raise highest plan ID: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("synced plans",
		"repository_id", repositoryID,
		"created", result.Created,
		"updated", result.Updated,
		"removed", result.Removed,
		"skipped", result.Skipped)
	return result, nil
}

// SyncDirectory reads every plan file under dir and syncs them.
func (s *PlanSyncServiceImpl) SyncDirectory(ctx context.Context, repositoryID, dir string) (*primary.SyncResult, error) {
	files, err := s.scan(dir)
	if err != nil {
		return nil, err
	}

	plans := make([]primary.PlanMetadata, len(files))
	for i, f := range files {
		filename := f.Path
		if rel, err := filepath.Rel(dir, f.Path); err == nil {
			filename = rel
		}
		plans[i] = primary.PlanMetadata{
			UUID:         f.UUID,
			ID:           f.ID,
			Title:        f.Title,
			Status:       f.Status,
			Parent:       f.Parent,
			Dependencies: f.Dependencies,
			Filename:     filename,
		}
	}
	return s.SyncPlans(ctx, repositoryID, plans)
}

// MaxLocalID returns the highest numeric plan ID found under dir.
// A missing directory holds no plans.
func (s *PlanSyncServiceImpl) MaxLocalID(dir string) (int, error) {
	files, err := s.scan(dir)
	if err != nil {
		return 0, err
	}

	highest := 0
	for _, f := range files {
		if f.ID > highest {
			highest = f.ID
		}
	}
	return highest, nil
}

// ListPlans returns the plans stored for a project.
func (s *PlanSyncServiceImpl) ListPlans(ctx context.Context, repositoryID string) ([]*primary.Plan, error) {
	project, err := s.projectRepo.GetByRepositoryID(ctx, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %s", primary.ErrNotFound, repositoryID)
	}

	records, err := s.planRepo.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	out := make([]*primary.Plan, len(records))
	for i, r := range records {
		out[i] = &primary.Plan{
			UUID:         r.UUID,
			PlanID:       r.PlanID,
			Title:        r.Title,
			Status:       r.Status,
			ParentUUID:   r.ParentUUID,
			Filename:     r.Filename,
			Dependencies: r.Dependencies,
			UpdatedAt:    r.UpdatedAt,
		}
	}
	return out, nil
}

func (s *PlanSyncServiceImpl) scan(dir string) ([]*secondary.PlanFile, error) {
	files, err := s.reader.Scan(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read plans in %s: %w", dir, err)
	}
	return files, nil
}

func hasKey(s string) bool {
	return strings.TrimSpace(s) != ""
}

// Ensure PlanSyncServiceImpl implements the interface
var _ primary.PlanSyncService = (*PlanSyncServiceImpl)(nil)
