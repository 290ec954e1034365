//go:build !windows

package process

import (
	"errors"
	"os"
	"syscall"
)

// isProcessRunning sends signal 0, which checks for existence without
// delivering anything. EPERM means the process exists under another user.
func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
