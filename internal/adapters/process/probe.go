// Package process reports whether local processes are alive.
package process

import "github.com/example/rig/internal/ports/secondary"

// Probe implements secondary.ProcessProbe for processes on this host.
type Probe struct{}

// NewProbe creates a new process probe.
func NewProbe() *Probe {
	return &Probe{}
}

// IsAlive reports whether pid refers to a running process.
// Non-positive pids are never alive.
func (p *Probe) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return isProcessRunning(pid)
}

// Ensure Probe implements the interface
var _ secondary.ProcessProbe = (*Probe)(nil)
