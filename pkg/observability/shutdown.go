package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc releases one resource during shutdown
type ShutdownFunc func(context.Context) error

// ShutdownManager drains the HTTP server and runs registered cleanup
// functions when the process receives SIGINT or SIGTERM.
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	funcs   []ShutdownFunc
	timeout time.Duration
	mu      sync.Mutex
}

// NewShutdownManager creates a shutdown manager. A zero timeout
// defaults to 30 seconds.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{logger: logger, server: server, timeout: timeout}
}

// OnShutdown registers a cleanup function. Functions run in reverse
// registration order, so dependencies close after their dependents.
func (sm *ShutdownManager) OnShutdown(fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.funcs = append(sm.funcs, fn)
}

// Wait blocks until a termination signal arrives, then drains the
// server and runs the cleanup functions within the timeout.
func (sm *ShutdownManager) Wait() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	sm.logger.WithField("signal", sig.String()).Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()
	return sm.Shutdown(ctx)
}

// Shutdown drains the server and runs cleanup immediately
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	var firstErr error

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("http server shutdown failed")
			firstErr = fmt.Errorf("failed to shut down http server: %w", err)
		}
	}

	sm.mu.Lock()
	funcs := make([]ShutdownFunc, len(sm.funcs))
	copy(funcs, sm.funcs)
	sm.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			sm.logger.WithError(err).Error("shutdown function failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	sm.logger.Info("shutdown complete")
	return firstErr
}
