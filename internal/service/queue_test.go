package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-spirit-connect/internal/adapter"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/internal/utils"
	"github.com/MKhiriev/go-spirit-connect/models"
)

func newTestQueue(t *testing.T, clock *fakeClock) (QueueService, *store.Records) {
	t.Helper()
	records := newTestRecords(t)
	ids := utils.NewLocalIDGenerator().WithClock(clock.Now)
	return NewQueueService(records, ids, testPolicy, clock.Now, logger.Nop()), records
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{Base: time.Second, Cap: 10 * time.Second}

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
	assert.Equal(t, 10*time.Second, p.Delay(5))
	assert.Equal(t, 10*time.Second, p.Delay(50))
}

func TestQueueService_WriteOffline_AssignsLocalID(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(t0)
	queue, _ := newTestQueue(t, clock)

	row, err := queue.WriteOffline(ctx, store.StoreJournalEntries, models.JournalEntry{UserID: "u1", Title: "Psalm 23"})
	require.NoError(t, err)

	assert.True(t, utils.IsLocalID(row.LocalID))
	assert.True(t, strings.HasPrefix(row.LocalID, fmt.Sprintf("offline_%d_", t0.UnixNano())))
	assert.Equal(t, t0, row.CreatedAt)
	assert.Zero(t, row.Attempts)

	entry, err := decodePayload[models.JournalEntry](row)
	require.NoError(t, err)
	assert.Equal(t, row.LocalID, entry.ID, "payload carries the row key")
	assert.Equal(t, "Psalm 23", entry.Title)
}

func TestQueueService_WriteOffline_KeepsGivenKey(t *testing.T) {
	queue, _ := newTestQueue(t, newFakeClock(t0))

	row, err := queue.WriteOffline(context.Background(), store.StoreJournalEntries, models.JournalEntry{ID: "offline_1700000000_abc12"})
	require.NoError(t, err)
	assert.Equal(t, "offline_1700000000_abc12", row.LocalID)
}

// TestQueueService_WriteOffline_Durable verifies that a committed write
// survives closing and reopening the database.
func TestQueueService_WriteOffline_Durable(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(t0)
	path := tempSnapshot(t)

	records, closeDB := newFileRecords(t, path)
	queue := NewQueueService(records, nil, testPolicy, clock.Now, logger.Nop())
	written, err := queue.WriteOffline(ctx, store.StorePrayerHistory, models.PrayerCompletion{UserID: "u1", DayOfWeek: "tuesday", CompletedAt: t0})
	require.NoError(t, err)
	closeDB()

	records, closeDB = newFileRecords(t, path)
	defer closeDB()
	queue = NewQueueService(records, nil, testPolicy, clock.Now, logger.Nop())

	pending, err := queue.ReadUnsynced(ctx, store.StorePrayerHistory)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, written.LocalID, pending[0].LocalID)
	assert.JSONEq(t, string(written.Data), string(pending[0].Data))
}

func TestQueueService_ReadUnsynced_StoreWithoutIndex(t *testing.T) {
	queue, _ := newTestQueue(t, newFakeClock(t0))

	rows, err := queue.ReadUnsynced(context.Background(), store.StoreGuidelines)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQueueService_MarkSynced(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(t0)
	queue, records := newTestQueue(t, clock)

	row, err := queue.WriteOffline(ctx, store.StoreJournalEntries, models.JournalEntry{UserID: "u1", Title: "t"})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, queue.MarkSynced(ctx, store.StoreJournalEntries, row))

	got, err := getRow(ctx, records, store.StoreJournalEntries, row.LocalID)
	require.NoError(t, err)
	synced, ok := got.(models.SyncedRow)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, t0, synced.CreatedAt)
	assert.Equal(t, t0.Add(time.Minute), synced.SyncedAt)
	assert.JSONEq(t, string(row.Data), string(synced.Data))

	// second call is a no-op
	clock.Advance(time.Minute)
	require.NoError(t, queue.MarkSynced(ctx, store.StoreJournalEntries, row))
	got, err = getRow(ctx, records, store.StoreJournalEntries, row.LocalID)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), got.(models.SyncedRow).SyncedAt)

	pending, err := queue.ReadUnsynced(ctx, store.StoreJournalEntries)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestQueueService_MarkSynced_Errors(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(t0)
	queue, records := newTestQueue(t, clock)
	cache := NewCacheService(records, nil, clock.Now, logger.Nop())

	err := queue.MarkSynced(ctx, store.StoreJournalEntries, models.PendingRow{LocalID: "absent"})
	assert.ErrorIs(t, err, store.ErrRecordNotFound)

	require.NoError(t, cache.CacheOne(ctx, store.StoreJournalEntries, models.JournalEntry{ID: "srv"}))
	err = queue.MarkSynced(ctx, store.StoreJournalEntries, models.PendingRow{LocalID: "srv"})
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestQueueService_MarkSynced_RowChanged(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(t0)
	queue, records := newTestQueue(t, clock)

	row, err := queue.WriteOffline(ctx, store.StoreJournalEntries, models.JournalEntry{ID: "e1", UserID: "u1", Title: "v1"})
	require.NoError(t, err)
	_, err = queue.WriteOffline(ctx, store.StoreJournalEntries, models.JournalEntry{ID: "e1", UserID: "u1", Title: "v2"})
	require.NoError(t, err)

	err = queue.MarkSynced(ctx, store.StoreJournalEntries, row)
	assert.ErrorIs(t, err, ErrRowChanged)

	got, err := getRow(ctx, records, store.StoreJournalEntries, "e1")
	require.NoError(t, err)
	assert.IsType(t, models.PendingRow{}, got)

	pending, err := queue.ReadUnsynced(ctx, store.StoreJournalEntries)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestQueueService_MarkFailed_BacksOffThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(t0)
	queue, _ := newTestQueue(t, clock)

	row, err := queue.WriteOffline(ctx, store.StoreJournalEntries, models.JournalEntry{UserID: "u1"})
	require.NoError(t, err)

	cause := fmt.Errorf("%w: upstream", adapter.ErrServiceUnavailable)

	updated, err := queue.MarkFailed(ctx, store.StoreJournalEntries, row.LocalID, cause)
	require.NoError(t, err)
	first, ok := updated.(models.PendingRow)
	require.True(t, ok)
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, t0.Add(time.Second), first.NextAttemptAt)
	assert.Contains(t, first.LastError, "upstream")
	assert.False(t, first.Due(t0))
	assert.True(t, first.Due(t0.Add(time.Second)))

	updated, err = queue.MarkFailed(ctx, store.StoreJournalEntries, row.LocalID, cause)
	require.NoError(t, err)
	second := updated.(models.PendingRow)
	assert.Equal(t, 2, second.Attempts)
	assert.Equal(t, t0.Add(2*time.Second), second.NextAttemptAt)

	updated, err = queue.MarkFailed(ctx, store.StoreJournalEntries, row.LocalID, cause)
	require.NoError(t, err)
	dead, ok := updated.(models.DeadLetterRow)
	require.True(t, ok, "got %T", updated)
	assert.Equal(t, 3, dead.Attempts)

	pending, err := queue.ReadUnsynced(ctx, store.StoreJournalEntries)
	require.NoError(t, err)
	assert.Empty(t, pending)

	letters, err := queue.ReadDeadLetters(ctx, store.StoreJournalEntries)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, row.LocalID, letters[0].LocalID)

	_, err = queue.MarkFailed(ctx, store.StoreJournalEntries, row.LocalID, cause)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestQueueService_MarkFailed_PermanentErrorDeadLettersAtOnce(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t, newFakeClock(t0))

	row, err := queue.WriteOffline(ctx, store.StoreJournalEntries, models.JournalEntry{UserID: "u1"})
	require.NoError(t, err)

	updated, err := queue.MarkFailed(ctx, store.StoreJournalEntries, row.LocalID, fmt.Errorf("%w: bad title", adapter.ErrBadRequest))
	require.NoError(t, err)
	assert.IsType(t, models.DeadLetterRow{}, updated)
}

func TestQueueService_Requeue(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t, newFakeClock(t0))

	row, err := queue.WriteOffline(ctx, store.StoreJournalEntries, models.JournalEntry{UserID: "u1"})
	require.NoError(t, err)

	err = queue.Requeue(ctx, store.StoreJournalEntries, row.LocalID)
	assert.ErrorIs(t, err, ErrNotDeadLetter)

	_, err = queue.MarkFailed(ctx, store.StoreJournalEntries, row.LocalID, adapter.ErrForbidden)
	require.NoError(t, err)
	require.NoError(t, queue.Requeue(ctx, store.StoreJournalEntries, row.LocalID))

	pending, err := queue.ReadUnsynced(ctx, store.StoreJournalEntries)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].Attempts)
	assert.True(t, pending[0].Due(t0))
}

func TestQueueService_SyncQueue(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(t0)
	queue, _ := newTestQueue(t, clock)

	a1, err := queue.AddToSyncQueue(ctx, "journal.create", map[string]string{"title": "one"})
	require.NoError(t, err)
	clock.Advance(time.Second)
	a2, err := queue.AddToSyncQueue(ctx, "journal.delete", map[string]string{"id": "e1"})
	require.NoError(t, err)
	assert.Less(t, a1.ID, a2.ID)
	assert.Equal(t, t0.UnixMilli(), a1.Timestamp)

	actions, err := queue.GetSyncQueue(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, a1.ID, actions[0].ID)
	assert.Equal(t, "journal.create", actions[0].Type)
	assert.JSONEq(t, `{"title":"one"}`, string(actions[0].Data))

	require.NoError(t, queue.RemoveFromSyncQueue(ctx, actions[:1]))
	actions, err = queue.GetSyncQueue(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, a2.ID, actions[0].ID)

	require.NoError(t, queue.ClearSyncQueue(ctx))
	actions, err = queue.GetSyncQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestQueueService_AddToSyncQueue_UnencodableData(t *testing.T) {
	queue, _ := newTestQueue(t, newFakeClock(t0))

	_, err := queue.AddToSyncQueue(context.Background(), "bad", make(chan int))
	assert.True(t, errors.Is(err, ErrInvalidDataProvided))
}

func TestQueueService_PendingCount(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t, newFakeClock(t0))

	_, err := queue.WriteOffline(ctx, store.StoreJournalEntries, models.JournalEntry{UserID: "u1"})
	require.NoError(t, err)
	_, err = queue.WriteOffline(ctx, store.StorePrayerHistory, models.PrayerCompletion{UserID: "u1", CompletedAt: t0})
	require.NoError(t, err)
	_, err = queue.AddToSyncQueue(ctx, "noop", nil)
	require.NoError(t, err)

	n, err := queue.PendingCount(ctx, store.StoreJournalEntries, store.StorePrayerHistory)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
