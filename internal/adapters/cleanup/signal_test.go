//go:build !windows

package cleanup

import (
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestSignalRunsCallbacksAndExits(t *testing.T) {
	r := NewRegistry(nil)

	var (
		mu       sync.Mutex
		exitCode = -1
		ran      bool
	)
	exited := make(chan struct{})
	r.exit = func(code int) {
		mu.Lock()
		exitCode = code
		mu.Unlock()
		close(exited)
	}
	r.Register("/ws/a", func() {
		mu.Lock()
		ran = true
		mu.Unlock()
	})

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGHUP); err != nil {
		t.Skipf("cannot signal self: %v", err)
	}

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("signal handler did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	if !ran {
		t.Error("callback did not run on signal")
	}
	if exitCode != 128+int(syscall.SIGHUP) {
		t.Errorf("exit code = %d, want %d", exitCode, 128+int(syscall.SIGHUP))
	}
}
