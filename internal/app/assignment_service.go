package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/example/rig/internal/core/assignment"
	"github.com/example/rig/internal/logging"
	"github.com/example/rig/internal/ports/primary"
	"github.com/example/rig/internal/ports/secondary"
)

// AssignmentServiceImpl implements the AssignmentService interface.
type AssignmentServiceImpl struct {
	tx             secondary.Transactor
	assignmentRepo secondary.AssignmentRepository
	workspaceRepo  secondary.WorkspaceRepository
	logger         *slog.Logger
}

// NewAssignmentService creates a new AssignmentService with injected dependencies.
func NewAssignmentService(
	tx secondary.Transactor,
	assignmentRepo secondary.AssignmentRepository,
	workspaceRepo secondary.WorkspaceRepository,
	logger *slog.Logger,
) *AssignmentServiceImpl {
	return &AssignmentServiceImpl{
		tx:             tx,
		assignmentRepo: assignmentRepo,
		workspaceRepo:  workspaceRepo,
		logger:         logging.OrDiscard(logger),
	}
}

// ClaimPlan records a claim, overwriting both sides of any existing one.
// Read, diff and write happen in one transaction.
func (s *AssignmentServiceImpl) ClaimPlan(ctx context.Context, req primary.ClaimPlanRequest) (*primary.ClaimResult, error) {
	if err := validatePlanKey(req.PlanUUID); err != nil {
		return nil, err
	}

	// Evaluate guard
	requested := assignment.Snapshot{WorkspaceID: req.WorkspaceID, User: req.User}
	if err := assignment.CanClaim(requested).Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", primary.ErrInvalidArgument, err)
	}

	var result primary.ClaimResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if req.WorkspaceID != 0 {
			ws, err := s.workspaceRepo.GetByID(ctx, req.WorkspaceID)
			if err != nil {
				return fmt.Errorf("failed to get workspace: %w", err)
			}
			if ws == nil {
				return fmt.Errorf("%w: workspace %d", primary.ErrNotFound, req.WorkspaceID)
			}
		}

		existing, err := s.assignmentRepo.Get(ctx, req.ProjectID, req.PlanUUID)
		if err != nil {
			return fmt.Errorf("failed to get assignment: %w", err)
		}

		var before *assignment.Snapshot
		if existing != nil {
			before = &assignment.Snapshot{WorkspaceID: existing.WorkspaceID, User: existing.ClaimedByUser}
		}
		plan := assignment.PlanClaim(before, requested)
		newPlanID := existing != nil && req.PlanID != 0 && req.PlanID != existing.PlanID

		switch {
		case plan.Create:
			record := &secondary.AssignmentRecord{
				ProjectID:     req.ProjectID,
				PlanUUID:      req.PlanUUID,
				PlanID:        req.PlanID,
				WorkspaceID:   plan.Result.WorkspaceID,
				ClaimedByUser: plan.Result.User,
				Status:        assignment.StatusClaimed,
			}
			if err := s.assignmentRepo.Create(ctx, record); err != nil {
				return fmt.Errorf("failed to create assignment: %w", err)
			}
		case plan.Write || newPlanID:
			existing.PlanID = req.PlanID
			existing.WorkspaceID = plan.Result.WorkspaceID
			existing.ClaimedByUser = plan.Result.User
			if err := s.assignmentRepo.UpdateClaim(ctx, existing); err != nil {
				return fmt.Errorf("failed to update assignment: %w", err)
			}
		}

		// Re-read for the joined workspace path and timestamps
		after, err := s.assignmentRepo.Get(ctx, req.ProjectID, req.PlanUUID)
		if err != nil {
			return fmt.Errorf("failed to fetch assignment: %w", err)
		}

		result = primary.ClaimResult{
			Assignment:       recordToAssignment(after),
			Created:          plan.Create,
			UpdatedWorkspace: plan.UpdatedWorkspace,
			UpdatedUser:      plan.UpdatedUser,
			UpdatedPlanID:    newPlanID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("claimed plan",
		"plan", req.PlanUUID,
		"workspace_id", req.WorkspaceID,
		"user", req.User,
		"created", result.Created)
	return &result, nil
}

// ReleasePlan clears the sides of a claim that match the request.
// A workspace path that does not resolve to the claiming workspace leaves
// the claim untouched, including its user side.
func (s *AssignmentServiceImpl) ReleasePlan(ctx context.Context, req primary.ReleasePlanRequest) (*primary.ReleaseResult, error) {
	if err := validatePlanKey(req.PlanUUID); err != nil {
		return nil, err
	}

	var result primary.ReleaseResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.assignmentRepo.Get(ctx, req.ProjectID, req.PlanUUID)
		if err != nil {
			return fmt.Errorf("failed to get assignment: %w", err)
		}
		if existing == nil {
			return nil
		}
		result.Existed = true

		input := assignment.ReleaseInput{
			Existing:       assignment.Snapshot{WorkspaceID: existing.WorkspaceID, User: existing.ClaimedByUser},
			WorkspaceGiven: req.WorkspacePath != "",
			User:           req.User,
		}
		if input.WorkspaceGiven {
			ws, err := s.workspaceRepo.GetByPath(ctx, filepath.Clean(req.WorkspacePath))
			if err != nil {
				return fmt.Errorf("failed to get workspace: %w", err)
			}
			input.WorkspaceMatches = ws != nil && existing.WorkspaceID != 0 && ws.ID == existing.WorkspaceID
		}

		plan := assignment.PlanRelease(input)
		if err := s.applyRelease(ctx, existing, plan); err != nil {
			return err
		}

		result.Removed = plan.Action == assignment.ReleaseDelete
		result.ClearedWorkspace = plan.ClearedWorkspace
		result.ClearedUser = plan.ClearedUser
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("released plan",
		"plan", req.PlanUUID,
		"removed", result.Removed,
		"cleared_workspace", result.ClearedWorkspace,
		"cleared_user", result.ClearedUser)
	return &result, nil
}

// GetAssignment returns the claim on a plan, or nil if it is unclaimed.
func (s *AssignmentServiceImpl) GetAssignment(ctx context.Context, projectID int64, planUUID string) (*primary.Assignment, error) {
	record, err := s.assignmentRepo.Get(ctx, projectID, planUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return recordToAssignment(record), nil
}

// ListAssignments returns a project's claims.
func (s *AssignmentServiceImpl) ListAssignments(ctx context.Context, projectID int64) ([]*primary.Assignment, error) {
	records, err := s.assignmentRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return recordsToAssignments(records), nil
}

// ListWorkspaceAssignments returns the claims held by a workspace.
// An unknown workspace holds nothing.
func (s *AssignmentServiceImpl) ListWorkspaceAssignments(ctx context.Context, workspacePath string) ([]*primary.Assignment, error) {
	ws, err := s.workspaceRepo.GetByPath(ctx, filepath.Clean(workspacePath))
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	if ws == nil {
		return nil, nil
	}

	records, err := s.assignmentRepo.ListByWorkspace(ctx, ws.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return recordsToAssignments(records), nil
}

// RemoveAssignment deletes a claim regardless of who holds it.
func (s *AssignmentServiceImpl) RemoveAssignment(ctx context.Context, projectID int64, planUUID string) (bool, error) {
	removed, err := s.assignmentRepo.Delete(ctx, projectID, planUUID)
	if err != nil {
		return false, fmt.Errorf("failed to delete assignment: %w", err)
	}
	return removed, nil
}

// ReleaseWorkspace clears the workspace side of every claim a workspace
// holds. Claims left with no user are deleted.
func (s *AssignmentServiceImpl) ReleaseWorkspace(ctx context.Context, workspacePath string) (int, error) {
	touched := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ws, err := s.workspaceRepo.GetByPath(ctx, filepath.Clean(workspacePath))
		if err != nil {
			return fmt.Errorf("failed to get workspace: %w", err)
		}
		if ws == nil {
			return nil
		}

		records, err := s.assignmentRepo.ListByWorkspace(ctx, ws.ID)
		if err != nil {
			return fmt.Errorf("failed to list assignments: %w", err)
		}

		for _, record := range records {
			plan := assignment.PlanRelease(assignment.ReleaseInput{
				Existing:         assignment.Snapshot{WorkspaceID: record.WorkspaceID, User: record.ClaimedByUser},
				WorkspaceGiven:   true,
				WorkspaceMatches: true,
			})
			if err := s.applyRelease(ctx, record, plan); err != nil {
				return err
			}
			if plan.Action != assignment.ReleaseNone {
				touched++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return touched, nil
}

// UpdateStatus sets the status of an existing claim.
func (s *AssignmentServiceImpl) UpdateStatus(ctx context.Context, projectID int64, planUUID, status string) error {
	if !assignment.ValidStatus(status) {
		return fmt.Errorf("%w: unknown status %q", primary.ErrInvalidArgument, status)
	}

	updated, err := s.assignmentRepo.UpdateStatus(ctx, projectID, planUUID, status)
	if err != nil {
		return fmt.Errorf("failed to update assignment status: %w", err)
	}
	if !updated {
		return fmt.Errorf("%w: assignment for plan %s", primary.ErrNotFound, planUUID)
	}
	return nil
}

func (s *AssignmentServiceImpl) applyRelease(ctx context.Context, record *secondary.AssignmentRecord, plan assignment.ReleasePlan) error {
	switch plan.Action {
	case assignment.ReleaseDelete:
		if _, err := s.assignmentRepo.Delete(ctx, record.ProjectID, record.PlanUUID); err != nil {
			return fmt.Errorf("failed to delete assignment: %w", err)
		}
	case assignment.ReleaseUpdate:
		record.WorkspaceID = plan.Result.WorkspaceID
		record.ClaimedByUser = plan.Result.User
		if err := s.assignmentRepo.UpdateClaim(ctx, record); err != nil {
			return fmt.Errorf("failed to update assignment: %w", err)
		}
	}
	return nil
}

// Helper methods

// validatePlanKey accepts any non-blank plan key. Keys are opaque; rig
// generates UUIDs for new plans but plan files may carry other keys.
func validatePlanKey(planUUID string) error {
	if strings.TrimSpace(planUUID) == "" {
		return fmt.Errorf("%w: plan key is required", primary.ErrInvalidArgument)
	}
	return nil
}

func recordToAssignment(r *secondary.AssignmentRecord) *primary.Assignment {
	if r == nil {
		return nil
	}
	return &primary.Assignment{
		ID:            r.ID,
		ProjectID:     r.ProjectID,
		PlanUUID:      r.PlanUUID,
		PlanID:        r.PlanID,
		WorkspaceID:   r.WorkspaceID,
		WorkspacePath: r.WorkspacePath,
		User:          r.ClaimedByUser,
		Status:        r.Status,
		AssignedAt:    r.AssignedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func recordsToAssignments(records []*secondary.AssignmentRecord) []*primary.Assignment {
	out := make([]*primary.Assignment, len(records))
	for i, r := range records {
		out[i] = recordToAssignment(r)
	}
	return out
}

// Ensure AssignmentServiceImpl implements the interface
var _ primary.AssignmentService = (*AssignmentServiceImpl)(nil)
