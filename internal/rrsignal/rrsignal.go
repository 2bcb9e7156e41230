// Package rrsignal provides the coarse run-cancellation mechanism
// SPEC_FULL.md §5 calls for: a context.Context cancelled by SIGINT/SIGTERM
// that worker goroutines check at their next event-loop iteration
// boundary, generalizing the teacher's emergency Controller (stop-file
// polling + signal handling) to a single context-cancellation source.
package rrsignal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithCancelOnInterrupt returns a context that is cancelled when the
// process receives SIGINT or SIGTERM, and a cancel func the caller must
// invoke once the run completes normally to stop the signal watcher.
func WithCancelOnInterrupt(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
		case <-sigCh:
			cancel()
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
