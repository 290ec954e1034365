package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/rig/internal/logging"
	"github.com/example/rig/internal/ports/primary"
	"github.com/example/rig/internal/ports/secondary"
)

// PlanIDServiceImpl implements the PlanIDService interface.
type PlanIDServiceImpl struct {
	tx          secondary.Transactor
	projectRepo secondary.ProjectRepository
	logger      *slog.Logger
}

// NewPlanIDService creates a new PlanIDService with injected dependencies.
func NewPlanIDService(tx secondary.Transactor, projectRepo secondary.ProjectRepository, logger *slog.Logger) *PlanIDServiceImpl {
	return &PlanIDServiceImpl{
		tx:          tx,
		projectRepo: projectRepo,
		logger:      logging.OrDiscard(logger),
	}
}

// ReservePlanIDs reserves a contiguous block of plan IDs for a repository.
// The project row is created on first use. The high-water mark is advanced
// with a single conditional update, so concurrent reservations from other
// processes always receive disjoint ranges.
func (s *PlanIDServiceImpl) ReservePlanIDs(ctx context.Context, req primary.ReservePlanIDsRequest) (*primary.PlanIDReservation, error) {
	if req.RepositoryID == "" {
		return nil, fmt.Errorf("%w: repository ID is required", primary.ErrInvalidArgument)
	}
	if req.Count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", primary.ErrInvalidArgument, req.Count)
	}
	floor := req.LocalMaxObservedID
	if floor < 0 {
		floor = 0
	}

	var end int
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		project, err := s.projectRepo.GetOrCreate(ctx, req.RepositoryID)
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}

		end, err = s.projectRepo.ReservePlanIDs(ctx, project.ID, floor, req.Count)
		if err != nil {
			return fmt.Errorf("failed to reserve plan IDs: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reservation := &primary.PlanIDReservation{StartID: end - req.Count + 1, EndID: end}
	s.logger.Debug("reserved plan IDs",
		"repository_id", req.RepositoryID,
		"start", reservation.StartID,
		"end", reservation.EndID)
	return reservation, nil
}

// NextPlanID reserves a single plan ID.
func (s *PlanIDServiceImpl) NextPlanID(ctx context.Context, repositoryID string, localMaxObservedID int) (int, error) {
	r, err := s.ReservePlanIDs(ctx, primary.ReservePlanIDsRequest{
		RepositoryID:       repositoryID,
		LocalMaxObservedID: localMaxObservedID,
		Count:              1,
	})
	if err != nil {
		return 0, err
	}
	return r.StartID, nil
}

// HighestPlanID returns the stored high-water mark, 0 for an unknown repository.
func (s *PlanIDServiceImpl) HighestPlanID(ctx context.Context, repositoryID string) (int, error) {
	project, err := s.projectRepo.GetByRepositoryID(ctx, repositoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return 0, nil
	}
	return project.HighestPlanID, nil
}

// Ensure PlanIDServiceImpl implements the interface
var _ primary.PlanIDService = (*PlanIDServiceImpl)(nil)
