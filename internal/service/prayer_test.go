package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/models"
)

func newPrayerFixture(t *testing.T, online bool) (PrayerService, QueueService, *fakeSync, *fakeClock) {
	t.Helper()
	clock := newFakeClock(t0)
	records := newTestRecords(t)
	queue := NewQueueService(records, nil, testPolicy, clock.Now, logger.Nop())
	syncer := newFakeSync(online)
	return NewPrayerService(records, queue, syncer, clock.Now, logger.Nop()), queue, syncer, clock
}

func TestPrayer_RecordCompletion_Offline(t *testing.T) {
	ctx := userCtx()
	prayers, queue, syncer, _ := newPrayerFixture(t, false)

	saved, err := prayers.RecordCompletion(ctx, models.PrayerCompletion{GuidelineID: ptr("g1")})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "u1", saved.UserID)
	assert.Equal(t, "tuesday", saved.DayOfWeek)
	assert.True(t, saved.CompletedAt.Equal(t0))

	pending, err := queue.ReadUnsynced(ctx, store.StorePrayerHistory)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Empty(t, syncer.messages())
}

func TestPrayer_RecordCompletion_DeduplicatesWithinWeek(t *testing.T) {
	ctx := userCtx()
	prayers, queue, _, clock := newPrayerFixture(t, false)

	first, err := prayers.RecordCompletion(ctx, models.PrayerCompletion{GuidelineID: ptr("g1")})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	again, err := prayers.RecordCompletion(ctx, models.PrayerCompletion{GuidelineID: ptr("g1"), DayOfWeek: "Tuesday"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// another guideline on the same day is a separate completion
	_, err = prayers.RecordCompletion(ctx, models.PrayerCompletion{GuidelineID: ptr("g2")})
	require.NoError(t, err)

	// same weekday of the following week
	clock.Advance(7 * 24 * time.Hour)
	_, err = prayers.RecordCompletion(ctx, models.PrayerCompletion{GuidelineID: ptr("g1")})
	require.NoError(t, err)

	pending, err := queue.ReadUnsynced(ctx, store.StorePrayerHistory)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestPrayer_RecordCompletion_WithReflection(t *testing.T) {
	ctx := userCtx()
	prayers, queue, syncer, _ := newPrayerFixture(t, true)

	saved, err := prayers.RecordCompletion(ctx, models.PrayerCompletion{
		GuidelineID:  ptr("g1"),
		JournalEntry: &models.JournalEntry{Title: "Reflection", Content: "Peace"},
	})
	require.NoError(t, err)
	assert.Nil(t, saved.JournalEntry, "the reflection is stored on its own")

	entries, err := queue.ReadUnsynced(ctx, store.StoreJournalEntries)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry, err := decodePayload[models.JournalEntry](entries[0])
	require.NoError(t, err)
	assert.Equal(t, "u1", entry.UserID)
	assert.Equal(t, "2023-11-14", entry.Date)
	assert.Equal(t, "Reflection", entry.Title)

	assert.Equal(t, []models.SyncMessage{{Type: models.SyncAll}}, syncer.messages())
}

func TestPrayer_RecordCompletion_OnlineAsksForPrayerSync(t *testing.T) {
	prayers, _, syncer, _ := newPrayerFixture(t, true)
	syncer.err = ErrSyncAborted

	_, err := prayers.RecordCompletion(userCtx(), models.PrayerCompletion{GuidelineID: ptr("g1")})
	require.NoError(t, err, "a failed sync does not fail the write")
	assert.Equal(t, []models.SyncMessage{{Type: models.SyncPrayers}}, syncer.messages())
}

func TestPrayer_History(t *testing.T) {
	ctx := userCtx()
	prayers, _, _, clock := newPrayerFixture(t, false)

	_, err := prayers.RecordCompletion(ctx, models.PrayerCompletion{GuidelineID: ptr("g1")})
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	_, err = prayers.RecordCompletion(ctx, models.PrayerCompletion{GuidelineID: ptr("g2")})
	require.NoError(t, err)
	_, err = prayers.RecordCompletion(context.Background(), models.PrayerCompletion{UserID: "u2", GuidelineID: ptr("g1")})
	require.NoError(t, err)

	history, err := prayers.History(ctx, "")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "wednesday", history[0].DayOfWeek)
	assert.Equal(t, "tuesday", history[1].DayOfWeek)

	_, err = prayers.History(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoUserID)
}

func TestPrayer_RecordCompletion_RejectsUnknownDay(t *testing.T) {
	ctx := userCtx()
	prayers, queue, _, _ := newPrayerFixture(t, false)

	_, err := prayers.RecordCompletion(ctx, models.PrayerCompletion{GuidelineID: ptr("g1"), DayOfWeek: "caturday"})
	assert.ErrorIs(t, err, ErrInvalidDataProvided)

	pending, err := queue.ReadUnsynced(ctx, store.StorePrayerHistory)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
