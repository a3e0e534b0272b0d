// Package service implements the sync engine on top of the generic record
// accessor: the cache with freshness windows, the write-ahead mutation
// queue, the reconciler, the cleanup sweep, the sync coordinator and the
// per-feature services the rest of the client calls.
package service

import (
	"context"
	"time"

	"github.com/MKhiriev/go-spirit-connect/models"
)

// Clock returns the current time. Services read time only through it.
type Clock func() time.Time

// CacheService keeps copies of server objects for offline reads.
type CacheService interface {
	// CacheMany stamps every item with the current time and upserts it into
	// store as a cached row. The first failing item stops the batch.
	CacheMany(ctx context.Context, store string, items ...models.Keyed) error

	// CacheOne is the single-item form of CacheMany.
	CacheOne(ctx context.Context, store string, item models.Keyed) error

	// ReadCached returns every cached row of store regardless of age.
	ReadCached(ctx context.Context, store string) ([]models.CachedRow, error)

	// ReadFresh returns the cached rows of store that are within its
	// freshness window.
	ReadFresh(ctx context.Context, store string) ([]models.CachedRow, error)

	// ReadCachedOne returns one cached row. A missing row, a row that is not
	// a server copy, or a row older than the store's window is reported as
	// [ErrCacheMiss]; expired rows stay on disk until overwritten.
	ReadCachedOne(ctx context.Context, store, key string) (models.CachedRow, error)

	// Prune deletes the cached rows of store for which keep returns false.
	Prune(ctx context.Context, store string, keep func(models.CachedRow) bool) (int, error)
}

// QueueService records local writes durably before any network attempt and
// tracks their upload state.
type QueueService interface {
	// WriteOffline stores payload as a pending row and returns once it is
	// committed. A payload without a key gets a local id.
	WriteOffline(ctx context.Context, store string, payload models.Keyed) (models.PendingRow, error)

	// ReadUnsynced returns the rows of store waiting for upload. Cached rows
	// and dead letters are never returned. A store without a synced index
	// yields an empty result.
	ReadUnsynced(ctx context.Context, store string) ([]models.PendingRow, error)

	// MarkSynced records that the server accepted uploaded. When the stored
	// row no longer carries the uploaded data it stays pending and
	// ErrRowChanged is returned. Marking an already synced row again is a
	// no-op.
	MarkSynced(ctx context.Context, store string, uploaded models.PendingRow) error

	// MarkFailed charges one failed upload attempt to the row with key and
	// schedules the next one. A row that runs out of attempts, or failed
	// permanently, becomes a dead letter. It returns the updated row.
	MarkFailed(ctx context.Context, store, key string, cause error) (models.Row, error)

	// ReadDeadLetters returns the rows of store that ran out of attempts.
	ReadDeadLetters(ctx context.Context, store string) ([]models.DeadLetterRow, error)

	// Requeue turns a dead letter back into a pending row with a fresh
	// attempt budget.
	Requeue(ctx context.Context, store, key string) error

	// AddToSyncQueue appends an action to the sync queue.
	AddToSyncQueue(ctx context.Context, actionType string, data any) (models.SyncAction, error)

	// GetSyncQueue returns the queued actions in insertion order.
	GetSyncQueue(ctx context.Context) ([]models.SyncAction, error)

	// RemoveFromSyncQueue deletes the given actions.
	RemoveFromSyncQueue(ctx context.Context, actions []models.SyncAction) error

	// ClearSyncQueue deletes every queued action.
	ClearSyncQueue(ctx context.Context) error

	// PendingCount returns the number of queued actions plus the pending rows
	// of stores.
	PendingCount(ctx context.Context, stores ...string) (int, error)
}

// ReconcileService uploads pending rows and replays the sync queue.
type ReconcileService interface {
	// Reconcile runs one pass over the routes of stores (all routes when
	// empty) followed by the sync queue. Per-row failures are recorded on the
	// rows and counted in the report; the returned error is reserved for
	// local storage failures and aborted passes.
	Reconcile(ctx context.Context, stores ...string) (models.ReconcileReport, error)

	// Routes returns the configured store to resource routes.
	Routes() []Route
}

// CleanupService removes rows whose upload the server confirmed.
type CleanupService interface {
	// Cleanup deletes the synced, non-cached rows of stores (all routed
	// stores when empty). Pending rows are never touched.
	Cleanup(ctx context.Context, stores ...string) (models.CleanupReport, error)
}

// SyncService coordinates sync passes: it owns the online flag and makes
// sure passes never overlap.
type SyncService interface {
	// SetOnline records the connectivity state. Going from offline to online
	// starts a sync pass when rows are pending.
	SetOnline(ctx context.Context, online bool)

	// Online reports the last recorded connectivity state.
	Online() bool

	// Status returns a snapshot of the coordinator state.
	Status() models.SyncStatus

	// SyncNow runs reconcile and cleanup over every route. Concurrent
	// callers share the pass already in flight. Returns [ErrOffline] while
	// offline.
	SyncNow(ctx context.Context) (models.ReconcileReport, error)

	// SyncIfPending runs SyncNow when online and something is pending.
	SyncIfPending(ctx context.Context) error

	// Notify handles a sync request from a background collaborator.
	Notify(ctx context.Context, msg models.SyncMessage) (models.ReconcileReport, error)

	// RefreshPending recounts the pending rows and queued actions.
	RefreshPending(ctx context.Context) (int, error)
}

// SyncJob periodically asks the coordinator for a sync pass.
type SyncJob interface {
	// Start launches the background goroutine. It checks for pending work
	// every interval, defaulting to 30 seconds if interval is zero or
	// negative. Any previously running job is stopped first.
	Start(ctx context.Context, interval time.Duration)

	// Stop signals the background goroutine to exit and blocks until it has
	// fully terminated.
	Stop()
}

// JournalService is the journal feature's view of the engine.
type JournalService interface {
	// Save stores entry on the server when online and falls back to the
	// mutation queue when offline or when the upload fails.
	Save(ctx context.Context, entry models.JournalEntry) (models.JournalEntry, error)

	// Fetch returns the user's entries newest first: server entries merged
	// with the ones still waiting for upload. Offline, it serves the cached
	// copies instead of the server list.
	Fetch(ctx context.Context, userID string) ([]models.JournalEntry, error)

	// Update edits an entry. It requires connectivity unless the entry has
	// not been uploaded yet.
	Update(ctx context.Context, id string, patch models.JournalEntryPatch) (models.JournalEntry, error)

	// Delete removes an entry. It requires connectivity unless the entry has
	// not been uploaded yet.
	Delete(ctx context.Context, id string) error
}

// PrayerService records completed prayer sessions.
type PrayerService interface {
	// RecordCompletion queues a completion (and its journal reflection, if
	// any) for upload and asks for a sync when online. A second completion of
	// the same guideline on the same day of the same week returns the row
	// already queued.
	RecordCompletion(ctx context.Context, completion models.PrayerCompletion) (models.PrayerCompletion, error)

	// History returns the completions recorded on this device for userID,
	// newest first.
	History(ctx context.Context, userID string) ([]models.PrayerCompletion, error)
}

// ContentService serves read-only server content through the cache.
// onCached, when not nil, receives the cached value before the network
// fetch starts.
type ContentService interface {
	Guideline(ctx context.Context, id string, onCached func(models.Guideline)) (Loaded[models.Guideline], error)
	Guidelines(ctx context.Context, onCached func([]models.Guideline)) (Loaded[[]models.Guideline], error)
	Announcements(ctx context.Context, onCached func([]models.Announcement)) (Loaded[[]models.Announcement], error)
	Profile(ctx context.Context, userID string, onCached func(models.Profile)) (Loaded[models.Profile], error)
	PrayerProgress(ctx context.Context, userID string, onCached func([]models.PrayerProgress)) (Loaded[[]models.PrayerProgress], error)
}
