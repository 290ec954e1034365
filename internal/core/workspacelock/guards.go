// Package workspacelock contains the pure business logic for workspace locks.
// Guards are pure functions that evaluate preconditions without side effects;
// process liveness and the current time are supplied by the caller.
package workspacelock

import (
	"fmt"
	"time"

	"github.com/example/rig/internal/core/clock"
)

// StaleLockTimeout is the age after which a pid lock is stale even if its
// owning process still appears alive (pids get reused).
const StaleLockTimeout = 24 * time.Hour

// LockType distinguishes explicit locks from process-scoped ones.
type LockType string

const (
	// LockTypePersistent never expires; only a forced release clears it.
	LockTypePersistent LockType = "persistent"
	// LockTypePID is valid only while its owning process is alive.
	LockTypePID LockType = "pid"
)

// Valid reports whether t is a known lock type.
func (t LockType) Valid() bool {
	return t == LockTypePersistent || t == LockTypePID
}

// LockFacts is the subset of a lock row the guards reason about.
type LockFacts struct {
	Type      LockType
	PID       int // 0 when the row has no pid
	StartedAt string
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// StalenessInput provides everything needed to classify a lock.
type StalenessInput struct {
	Lock    LockFacts
	Now     time.Time
	IsAlive func(pid int) bool
}

// IsStale reports whether a lock may be reclaimed by another process.
// Rules:
// - persistent locks are never stale
// - pid locks are stale if the start time cannot be parsed
// - pid locks are stale if older than StaleLockTimeout
// - pid locks are stale if the owning process is gone (or no pid was recorded)
func IsStale(in StalenessInput) bool {
	stale, _ := StaleReason(in)
	return stale
}

// StaleReason is IsStale with a human-readable explanation.
func StaleReason(in StalenessInput) (bool, string) {
	if in.Lock.Type != LockTypePID {
		return false, ""
	}

	started, err := clock.Parse(in.Lock.StartedAt)
	if err != nil {
		return true, fmt.Sprintf("lock start time %q is unparseable", in.Lock.StartedAt)
	}

	if age := in.Now.Sub(started); age > StaleLockTimeout {
		return true, fmt.Sprintf("lock is %s old (limit %s)", age.Round(time.Minute), StaleLockTimeout)
	}

	if in.Lock.PID <= 0 {
		return true, "pid lock has no owning process"
	}

	if in.IsAlive != nil && !in.IsAlive(in.Lock.PID) {
		return true, fmt.Sprintf("process %d is no longer running", in.Lock.PID)
	}

	return false, ""
}

// AcquireContext provides context for lock acquisition guards.
type AcquireContext struct {
	WorkspacePath string
	RequestedType LockType
	Existing      *LockFacts // nil when the workspace is unlocked
	ExistingStale bool
}

// AcquireDecision is the result of evaluating an acquisition.
type AcquireDecision struct {
	GuardResult
	// ReplaceExisting is set when a stale lock must be deleted first.
	ReplaceExisting bool
}

// CanAcquire evaluates whether a lock can be taken.
// Rules:
// - lock type must be persistent or pid
// - an unlocked workspace can always be locked
// - a stale pid lock is replaced in the same operation
// - any other existing lock blocks acquisition
func CanAcquire(ctx AcquireContext) AcquireDecision {
	if !ctx.RequestedType.Valid() {
		return AcquireDecision{GuardResult: GuardResult{
			Reason: fmt.Sprintf("invalid lock type %q (expected persistent or pid)", ctx.RequestedType),
		}}
	}

	if ctx.Existing == nil {
		return AcquireDecision{GuardResult: GuardResult{Allowed: true}}
	}

	if ctx.Existing.Type == LockTypePID && ctx.ExistingStale {
		return AcquireDecision{GuardResult: GuardResult{Allowed: true}, ReplaceExisting: true}
	}

	return AcquireDecision{GuardResult: GuardResult{
		Reason: fmt.Sprintf("workspace %s is already locked (%s)", ctx.WorkspacePath, Describe(*ctx.Existing)),
	}}
}

// ReleaseContext provides context for lock release guards.
type ReleaseContext struct {
	Lock      LockFacts
	CallerPID int
	Force     bool
}

// CanRelease evaluates whether the caller may remove a lock.
// Rules:
// - force always wins
// - persistent locks require force
// - pid locks may only be released by their owning pid
func CanRelease(ctx ReleaseContext) GuardResult {
	if ctx.Force {
		return GuardResult{Allowed: true}
	}

	switch ctx.Lock.Type {
	case LockTypePersistent:
		return GuardResult{Reason: "persistent lock can only be released with force"}
	case LockTypePID:
		if ctx.Lock.PID != ctx.CallerPID {
			return GuardResult{Reason: fmt.Sprintf("lock is owned by pid %d, not %d", ctx.Lock.PID, ctx.CallerPID)}
		}
		return GuardResult{Allowed: true}
	default:
		return GuardResult{Reason: fmt.Sprintf("unknown lock type %q", ctx.Lock.Type)}
	}
}

// Describe renders a short description of a lock holder.
func Describe(l LockFacts) string {
	if l.Type == LockTypePID {
		return fmt.Sprintf("pid %d since %s", l.PID, l.StartedAt)
	}
	return fmt.Sprintf("persistent since %s", l.StartedAt)
}
