package primary

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyLocked reports that a workspace holds a live lock.
	ErrAlreadyLocked = errors.New("workspace already locked")

	// ErrNotFound reports that a project, workspace or assignment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument reports a malformed request.
	ErrInvalidArgument = errors.New("invalid argument")
)

// AlreadyLockedError carries the lock that blocked an acquisition.
// It matches ErrAlreadyLocked with errors.Is.
type AlreadyLockedError struct {
	Lock *WorkspaceLock
}

func (e *AlreadyLockedError) Error() string {
	if e.Lock == nil {
		return ErrAlreadyLocked.Error()
	}
	if e.Lock.Type == "pid" {
		return fmt.Sprintf("workspace %s is already locked by pid %d on %s since %s",
			e.Lock.WorkspacePath, e.Lock.PID, e.Lock.Hostname, e.Lock.StartedAt)
	}
	return fmt.Sprintf("workspace %s is already locked (persistent, since %s)",
		e.Lock.WorkspacePath, e.Lock.StartedAt)
}

// Is makes errors.Is(err, ErrAlreadyLocked) hold.
func (e *AlreadyLockedError) Is(target error) bool {
	return target == ErrAlreadyLocked
}
