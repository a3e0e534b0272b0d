package bus

import "time"

// Event kinds published by the sync engine.
const (
	KindSyncStarted         = "sync.started"
	KindSyncCompleted       = "sync.completed"
	KindSyncFailed          = "sync.failed"
	KindConnectivityChanged = "connectivity.changed"
	KindStoreChanged        = "store.changed"
)

// Event is a notification published on the bus. Payload depends on Kind:
// a models.ReconcileReport for sync.completed, an error string for
// sync.failed, a bool for connectivity.changed, a file path for
// store.changed.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
