package models

import (
	"encoding/json"
	"time"
)

// SyncAction is one entry of the sync queue: an intended remote operation
// replayed as part of a batch. ID is assigned by the store.
type SyncAction struct {
	ID        int64           `json:"id,omitempty"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// ReconcileReport summarizes one reconcile pass.
type ReconcileReport struct {
	// Synced is the number of rows the server accepted.
	Synced int `json:"synced"`
	// Failed is the number of rows that stay pending after an upload error.
	Failed int `json:"failed"`
	// Deferred rows were skipped because their backoff had not elapsed.
	Deferred int `json:"deferred"`
	// DeadLettered rows ran out of attempts during this pass.
	DeadLettered int `json:"dead_lettered"`
	// Replayed is the number of sync queue entries sent.
	Replayed int `json:"replayed"`
	// Aborted is set when the pass stopped early, e.g. on an expired session.
	Aborted bool `json:"aborted"`
}

// Add accumulates o into r.
func (r *ReconcileReport) Add(o ReconcileReport) {
	r.Synced += o.Synced
	r.Failed += o.Failed
	r.Deferred += o.Deferred
	r.DeadLettered += o.DeadLettered
	r.Replayed += o.Replayed
	r.Aborted = r.Aborted || o.Aborted
}

// CleanupReport summarizes one cleanup sweep.
type CleanupReport struct {
	Deleted int `json:"deleted"`
}

// SyncStatus is the state of the sync coordinator as shown to the user.
type SyncStatus struct {
	Online     bool             `json:"online"`
	Syncing    bool             `json:"syncing"`
	Pending    int              `json:"pending"`
	LastSyncAt *time.Time       `json:"last_sync_at,omitempty"`
	LastError  string           `json:"last_error,omitempty"`
	LastReport *ReconcileReport `json:"last_report,omitempty"`
}

// SyncMessageType names a request sent by a background collaborator.
type SyncMessageType string

const (
	SyncPrayers SyncMessageType = "SYNC_PRAYERS"
	SyncJournal SyncMessageType = "SYNC_JOURNAL"
	SyncAll     SyncMessageType = "SYNC_ALL"
)

// SyncMessage asks the coordinator for a sync pass.
type SyncMessage struct {
	Type SyncMessageType `json:"type"`
}

// Valid reports whether the message type is known.
func (m SyncMessage) Valid() bool {
	switch m.Type {
	case SyncPrayers, SyncJournal, SyncAll:
		return true
	}
	return false
}

// ConnectivityRequest sets the online flag of the coordinator.
type ConnectivityRequest struct {
	Online *bool `json:"online"`
}
