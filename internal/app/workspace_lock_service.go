package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/rig/internal/core/clock"
	"github.com/example/rig/internal/core/workspacelock"
	"github.com/example/rig/internal/logging"
	"github.com/example/rig/internal/ports/primary"
	"github.com/example/rig/internal/ports/secondary"
)

// WorkspaceLockServiceImpl implements the WorkspaceLockService interface.
type WorkspaceLockServiceImpl struct {
	tx            secondary.Transactor
	workspaceRepo secondary.WorkspaceRepository
	lockRepo      secondary.WorkspaceLockRepository
	probe         secondary.ProcessProbe
	cleanup       secondary.CleanupRegistry
	logger        *slog.Logger

	now      func() time.Time
	pid      func() int
	hostname func() (string, error)
	args     []string
}

// NewWorkspaceLockService creates a new WorkspaceLockService with injected dependencies.
func NewWorkspaceLockService(
	tx secondary.Transactor,
	workspaceRepo secondary.WorkspaceRepository,
	lockRepo secondary.WorkspaceLockRepository,
	probe secondary.ProcessProbe,
	cleanup secondary.CleanupRegistry,
	logger *slog.Logger,
) *WorkspaceLockServiceImpl {
	return &WorkspaceLockServiceImpl{
		tx:            tx,
		workspaceRepo: workspaceRepo,
		lockRepo:      lockRepo,
		probe:         probe,
		cleanup:       cleanup,
		logger:        logging.OrDiscard(logger),
		now:           time.Now,
		pid:           os.Getpid,
		hostname:      os.Hostname,
		args:          os.Args,
	}
}

// AcquireLock locks a workspace.
// The existence check, staleness check, stale-lock removal and insert run
// in one write transaction, so two processes racing for the same workspace
// cannot both succeed.
func (s *WorkspaceLockServiceImpl) AcquireLock(ctx context.Context, req primary.AcquireLockRequest) (*primary.WorkspaceLock, error) {
	path := filepath.Clean(req.WorkspacePath)
	lockType := workspacelock.LockType(req.Type)
	if !lockType.Valid() {
		return nil, fmt.Errorf("%w: invalid lock type %q (expected persistent or pid)", primary.ErrInvalidArgument, req.Type)
	}

	record := &secondary.WorkspaceLockRecord{
		WorkspacePath: path,
		LockType:      string(lockType),
		PID:           req.PID,
		Hostname:      req.Hostname,
		Command:       req.Command,
	}
	if lockType == workspacelock.LockTypePID && record.PID == 0 {
		record.PID = s.pid()
	}
	if record.Hostname == "" {
		record.Hostname = s.localHostname()
	}
	if record.Command == "" {
		record.Command = strings.Join(s.args, " ")
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ws, err := s.workspaceRepo.GetByPath(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to get workspace: %w", err)
		}
		if ws == nil {
			return fmt.Errorf("%w: workspace %s", primary.ErrNotFound, path)
		}
		record.WorkspaceID = ws.ID

		existing, err := s.lockRepo.Get(ctx, ws.ID)
		if err != nil {
			return fmt.Errorf("failed to get lock: %w", err)
		}

		// Evaluate guard
		acquireCtx := workspacelock.AcquireContext{
			WorkspacePath: path,
			RequestedType: lockType,
		}
		var stale bool
		var staleReason string
		if existing != nil {
			facts := lockFacts(existing)
			stale, staleReason = workspacelock.StaleReason(s.stalenessInput(facts))
			acquireCtx.Existing = &facts
			acquireCtx.ExistingStale = stale
		}
		decision := workspacelock.CanAcquire(acquireCtx)
		if !decision.Allowed {
			if existing == nil {
				return fmt.Errorf("%w: %s", primary.ErrInvalidArgument, decision.Reason)
			}
			existing.WorkspacePath = path
			return &primary.AlreadyLockedError{Lock: s.recordToLock(existing, false)}
		}

		if decision.ReplaceExisting {
			removed, err := s.lockRepo.DeleteExact(ctx, existing)
			if err != nil {
				return fmt.Errorf("failed to remove stale lock: %w", err)
			}
			if removed {
				s.logger.Info("replaced stale lock",
					"workspace", path,
					"pid", existing.PID,
					"reason", staleReason)
			}
		}

		record.StartedAt = clock.Format(s.now())
		if err := s.lockRepo.Insert(ctx, record); err != nil {
			if errors.Is(err, secondary.ErrConflict) {
				return &primary.AlreadyLockedError{Lock: s.recordToLock(record, false)}
			}
			return fmt.Errorf("failed to insert lock: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("acquired lock", "workspace", path, "type", record.LockType, "pid", record.PID)

	// A pid lock held by this process is released on exit, including on signals.
	if lockType == workspacelock.LockTypePID && record.PID == s.pid() {
		pid := record.PID
		s.cleanup.Register(path, func() {
			if _, err := s.ReleaseLock(context.Background(), primary.ReleaseLockRequest{WorkspacePath: path, PID: pid}); err != nil {
				s.logger.Warn("failed to release lock on exit", "workspace", path, "error", err)
			}
		})
	}

	return s.recordToLock(record, false), nil
}

// ReleaseLock removes a lock. Without Force, only the owning pid may remove
// a pid lock and persistent locks are left alone.
func (s *WorkspaceLockServiceImpl) ReleaseLock(ctx context.Context, req primary.ReleaseLockRequest) (bool, error) {
	path := filepath.Clean(req.WorkspacePath)
	callerPID := req.PID
	if callerPID == 0 {
		callerPID = s.pid()
	}

	var released, heldBySelf bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ws, err := s.workspaceRepo.GetByPath(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to get workspace: %w", err)
		}
		if ws == nil {
			return nil
		}

		existing, err := s.lockRepo.Get(ctx, ws.ID)
		if err != nil {
			return fmt.Errorf("failed to get lock: %w", err)
		}
		if existing == nil {
			return nil
		}

		// Evaluate guard
		result := workspacelock.CanRelease(workspacelock.ReleaseContext{
			Lock:      lockFacts(existing),
			CallerPID: callerPID,
			Force:     req.Force,
		})
		if !result.Allowed {
			heldBySelf = existing.LockType == string(workspacelock.LockTypePID) && existing.PID == s.pid()
			s.logger.Debug("lock not released", "workspace", path, "reason", result.Reason)
			return nil
		}

		released, err = s.lockRepo.DeleteExact(ctx, existing)
		if err != nil {
			return fmt.Errorf("failed to delete lock: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if !heldBySelf {
		s.cleanup.Deregister(path)
	}
	if released {
		s.logger.Debug("released lock", "workspace", path, "force", req.Force)
	}
	return released, nil
}

// ClearStaleLock deletes a lock previously read with GetLock or ListLocks.
// The delete is keyed to the observed type, pid and start time, so a lock
// that another process took over in the meantime survives.
func (s *WorkspaceLockServiceImpl) ClearStaleLock(ctx context.Context, observed *primary.WorkspaceLock) (bool, error) {
	if observed == nil {
		return false, nil
	}
	path := filepath.Clean(observed.WorkspacePath)

	var cleared bool
	var reason string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ws, err := s.workspaceRepo.GetByPath(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to get workspace: %w", err)
		}
		if ws == nil {
			return nil
		}

		current, err := s.lockRepo.Get(ctx, ws.ID)
		if err != nil {
			return fmt.Errorf("failed to get lock: %w", err)
		}
		if current == nil ||
			current.LockType != observed.Type ||
			current.PID != observed.PID ||
			current.StartedAt != observed.StartedAt {
			s.logger.Debug("lock changed since it was observed", "workspace", path)
			return nil
		}

		var stale bool
		stale, reason = workspacelock.StaleReason(s.stalenessInput(lockFacts(current)))
		if !stale {
			return nil
		}

		cleared, err = s.lockRepo.DeleteExact(ctx, current)
		if err != nil {
			return fmt.Errorf("failed to delete stale lock: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if cleared {
		s.logger.Info("removed stale lock", "workspace", path, "pid", observed.PID, "reason", reason)
	}
	return cleared, nil
}

// GetLock returns the lock on a workspace with its staleness filled in.
func (s *WorkspaceLockServiceImpl) GetLock(ctx context.Context, workspacePath string) (*primary.WorkspaceLock, error) {
	path := filepath.Clean(workspacePath)
	ws, err := s.workspaceRepo.GetByPath(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	if ws == nil {
		return nil, nil
	}

	record, err := s.lockRepo.Get(ctx, ws.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	record.WorkspacePath = path
	return s.recordToLock(record, true), nil
}

// IsStale reports whether a lock may be reclaimed.
func (s *WorkspaceLockServiceImpl) IsStale(lock *primary.WorkspaceLock) bool {
	if lock == nil {
		return false
	}
	return workspacelock.IsStale(s.stalenessInput(workspacelock.LockFacts{
		Type:      workspacelock.LockType(lock.Type),
		PID:       lock.PID,
		StartedAt: lock.StartedAt,
	}))
}

// CleanStaleLocks removes every stale pid lock.
// Each removal is conditional on the row still being the one observed, so a
// lock re-acquired in the meantime is left alone.
func (s *WorkspaceLockServiceImpl) CleanStaleLocks(ctx context.Context) (int, error) {
	records, err := s.lockRepo.ListByType(ctx, string(workspacelock.LockTypePID))
	if err != nil {
		return 0, fmt.Errorf("failed to list locks: %w", err)
	}

	cleaned := 0
	for _, record := range records {
		stale, reason := workspacelock.StaleReason(s.stalenessInput(lockFacts(record)))
		if !stale {
			continue
		}

		removed, err := s.lockRepo.DeleteExact(ctx, record)
		if err != nil {
			return cleaned, fmt.Errorf("failed to delete stale lock on %s: %w", record.WorkspacePath, err)
		}
		if removed {
			cleaned++
			s.logger.Info("removed stale lock", "workspace", record.WorkspacePath, "pid", record.PID, "reason", reason)
		}
	}
	return cleaned, nil
}

// ListLocks returns all locks with their staleness.
func (s *WorkspaceLockServiceImpl) ListLocks(ctx context.Context) ([]*primary.WorkspaceLock, error) {
	records, err := s.lockRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}

	locks := make([]*primary.WorkspaceLock, len(records))
	for i, r := range records {
		locks[i] = s.recordToLock(r, true)
	}
	return locks, nil
}

func (s *WorkspaceLockServiceImpl) stalenessInput(facts workspacelock.LockFacts) workspacelock.StalenessInput {
	return workspacelock.StalenessInput{
		Lock:    facts,
		Now:     s.now(),
		IsAlive: s.probe.IsAlive,
	}
}

func (s *WorkspaceLockServiceImpl) localHostname() string {
	name, err := s.hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}

// Helper methods

func (s *WorkspaceLockServiceImpl) recordToLock(r *secondary.WorkspaceLockRecord, withStaleness bool) *primary.WorkspaceLock {
	lock := &primary.WorkspaceLock{
		WorkspaceID:   r.WorkspaceID,
		WorkspacePath: r.WorkspacePath,
		Type:          r.LockType,
		PID:           r.PID,
		StartedAt:     r.StartedAt,
		Hostname:      r.Hostname,
		Command:       r.Command,
	}
	if withStaleness {
		lock.Stale = workspacelock.IsStale(s.stalenessInput(lockFacts(r)))
	}
	return lock
}

func lockFacts(r *secondary.WorkspaceLockRecord) workspacelock.LockFacts {
	return workspacelock.LockFacts{
		Type:      workspacelock.LockType(r.LockType),
		PID:       r.PID,
		StartedAt: r.StartedAt,
	}
}

// Ensure WorkspaceLockServiceImpl implements the interface
var _ primary.WorkspaceLockService = (*WorkspaceLockServiceImpl)(nil)
