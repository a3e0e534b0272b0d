// Package workers provides abstractions for managing and running
// background workers in the application.
// It defines the Worker interface and a Workers aggregate that allows
// running multiple workers in a unified way.
package workers

import (
	"context"
	"time"
)

// Worker is the interface that must be implemented by any background worker.
// Run blocks until ctx is cancelled or the worker fails. A worker that stops
// because ctx was cancelled returns nil.
//
// Example implementation:
//
//	type MyWorker struct{}
//
//	func (w *MyWorker) Run(ctx context.Context) error {
//	    <-ctx.Done()
//	    return nil
//	}
type Worker interface {
	Run(ctx context.Context) error
}

// Pinger checks that the backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivitySink receives the probed connectivity state.
type ConnectivitySink interface {
	SetOnline(ctx context.Context, online bool)
}

// PendingRefresher recounts the work waiting for upload.
type PendingRefresher interface {
	RefreshPending(ctx context.Context) (int, error)
}

// Job is a ticker-driven job with an explicit lifecycle.
type Job interface {
	Start(ctx context.Context, interval time.Duration)
	Stop()
}
