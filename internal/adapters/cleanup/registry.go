// Package cleanup runs release callbacks when the process exits, including
// when it is interrupted by a signal.
package cleanup

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/example/rig/internal/ports/secondary"
)

// Registry implements secondary.CleanupRegistry.
// Callbacks are keyed by the resource they release, so registering the
// same workspace twice keeps one callback.
type Registry struct {
	mu        sync.Mutex
	callbacks map[string]func()
	order     []string
	logger    *slog.Logger
	exit      func(code int)
	sigOnce   sync.Once
}

// NewRegistry creates an empty registry. Signal handlers are installed on
// the first Register.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		callbacks: make(map[string]func()),
		logger:    logger,
		exit:      os.Exit,
	}
}

// Register installs fn under key, replacing any previous callback.
func (r *Registry) Register(key string, fn func()) {
	r.mu.Lock()
	if _, ok := r.callbacks[key]; !ok {
		r.order = append(r.order, key)
	}
	r.callbacks[key] = fn
	r.mu.Unlock()

	r.sigOnce.Do(r.installSignalHandler)
}

// Deregister removes the callback for key.
func (r *Registry) Deregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.callbacks[key]; !ok {
		return
	}
	delete(r.callbacks, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered callbacks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.callbacks)
}

// RunAll runs every registered callback in registration order and clears
// the table. Callbacks may call Deregister; a panicking callback does not
// stop the others.
func (r *Registry) RunAll() {
	r.mu.Lock()
	keys := r.order
	fns := make([]func(), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, r.callbacks[k])
	}
	r.callbacks = make(map[string]func())
	r.order = nil
	r.mu.Unlock()

	for i, fn := range fns {
		r.run(keys[i], fn)
	}
}

func (r *Registry) run(key string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("cleanup callback panicked", "key", key, "panic", p)
		}
	}()
	fn()
}

func (r *Registry) installSignalHandler() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		sig := <-sigs
		r.logger.Debug("received signal, running cleanup", "signal", sig.String())
		r.RunAll()
		code := 1
		if s, ok := sig.(syscall.Signal); ok {
			code = 128 + int(s)
		}
		r.exit(code)
	}()
}

// Ensure Registry implements the interface
var _ secondary.CleanupRegistry = (*Registry)(nil)
