package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-spirit-connect/internal/adapter"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/models"
)

func TestCleanup_RemovesOnlySyncedLocalRows(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(t0)
	records := newTestRecords(t)
	queue := NewQueueService(records, nil, testPolicy, clock.Now, logger.Nop())
	cache := NewCacheService(records, nil, clock.Now, logger.Nop())
	cleanup := NewCleanupService(records, []string{store.StoreJournalEntries, store.StorePrayerHistory}, logger.Nop())

	synced, err := queue.WriteOffline(ctx, store.StoreJournalEntries, models.JournalEntry{ID: "done", UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, queue.MarkSynced(ctx, store.StoreJournalEntries, synced))

	_, err = queue.WriteOffline(ctx, store.StoreJournalEntries, models.JournalEntry{ID: "waiting", UserID: "u1"})
	require.NoError(t, err)
	dead, err := queue.WriteOffline(ctx, store.StoreJournalEntries, models.JournalEntry{ID: "dead", UserID: "u1"})
	require.NoError(t, err)
	_, err = queue.MarkFailed(ctx, store.StoreJournalEntries, dead.LocalID, adapter.ErrBadRequest)
	require.NoError(t, err)
	require.NoError(t, cache.CacheOne(ctx, store.StoreJournalEntries, models.JournalEntry{ID: "server", UserID: "u1"}))

	report, err := cleanup.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.CleanupReport{Deleted: 1}, report)

	_, err = records.Get(ctx, store.StoreJournalEntries, "done")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
	for _, key := range []string{"waiting", "dead", "server"} {
		_, err = records.Get(ctx, store.StoreJournalEntries, key)
		assert.NoError(t, err, key)
	}

	// nothing left to sweep
	report, err = cleanup.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Deleted)
}

func TestCleanup_StoreWithoutSyncedIndex(t *testing.T) {
	records := newTestRecords(t)
	cleanup := NewCleanupService(records, nil, logger.Nop())

	report, err := cleanup.Cleanup(context.Background(), store.StoreGuidelines)
	require.NoError(t, err)
	assert.Zero(t, report.Deleted)
}
