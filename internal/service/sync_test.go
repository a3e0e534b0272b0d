package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/go-spirit-connect/internal/adapter"
	"github.com/MKhiriev/go-spirit-connect/internal/bus"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/mock"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/models"
)

type syncFixture struct {
	clock   *fakeClock
	records *store.Records
	queue   QueueService
	adapter *mock.MockServerAdapter
	events  *bus.Bus
	sync    SyncService
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &syncFixture{clock: newFakeClock(t0), events: bus.New()}
	f.records = newTestRecords(t)
	f.queue = NewQueueService(f.records, nil, testPolicy, f.clock.Now, logger.Nop())
	f.adapter = mock.NewMockServerAdapter(ctrl)

	reconcile := NewReconcileService(f.queue, f.adapter, DefaultRoutes(), time.Second, f.clock.Now, logger.Nop())
	cleanup := NewCleanupService(f.records, []string{store.StoreJournalEntries, store.StorePrayerHistory}, logger.Nop())
	f.sync = NewSyncService(reconcile, cleanup, f.queue, f.events, f.clock.Now, logger.Nop())
	return f
}

func (f *syncFixture) pending(t *testing.T, storeName string, payload models.Keyed) {
	t.Helper()
	_, err := f.queue.WriteOffline(context.Background(), storeName, payload)
	require.NoError(t, err)
}

func drain(ch <-chan bus.Event) []string {
	var kinds []string
	for {
		select {
		case evt := <-ch:
			kinds = append(kinds, evt.Kind)
		default:
			return kinds
		}
	}
}

func TestSyncService_StartsOffline(t *testing.T) {
	f := newSyncFixture(t)

	assert.False(t, f.sync.Online())
	_, err := f.sync.SyncNow(context.Background())
	assert.ErrorIs(t, err, ErrOffline)

	_, err = f.sync.Notify(context.Background(), models.SyncMessage{Type: models.SyncAll})
	assert.ErrorIs(t, err, ErrOffline)
}

func TestSyncService_Notify_UnknownMessage(t *testing.T) {
	f := newSyncFixture(t)
	f.sync.SetOnline(context.Background(), true)

	_, err := f.sync.Notify(context.Background(), models.SyncMessage{Type: "SYNC_EVERYTHING"})
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestSyncService_ReconnectSyncsPendingRows(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	events, unsubscribe := f.events.Subscribe("", 16)
	defer unsubscribe()

	f.pending(t, store.StoreJournalEntries, models.JournalEntry{ID: "offline_1700000000_abc12", UserID: "u1"})

	f.adapter.EXPECT().Token().Return("")
	f.adapter.EXPECT().Upsert(gomock.Any(), adapter.ResourceJournalEntries, "offline_1700000000_abc12", gomock.Any()).
		Return(json.RawMessage(`{}`), nil)

	f.sync.SetOnline(ctx, true)

	status := f.sync.Status()
	assert.True(t, status.Online)
	assert.False(t, status.Syncing)
	assert.Zero(t, status.Pending)
	require.NotNil(t, status.LastReport)
	assert.Equal(t, 1, status.LastReport.Synced)
	require.NotNil(t, status.LastSyncAt)
	assert.Empty(t, status.LastError)

	// cleanup ran after the pass
	_, err := f.records.Get(ctx, store.StoreJournalEntries, "offline_1700000000_abc12")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)

	assert.Equal(t, []string{
		bus.KindConnectivityChanged,
		bus.KindSyncStarted,
		bus.KindSyncCompleted,
	}, drain(events))
}

func TestSyncService_ReconnectWithoutPendingWorkDoesNotSync(t *testing.T) {
	f := newSyncFixture(t)
	f.adapter.EXPECT().Token().Times(0)

	f.sync.SetOnline(context.Background(), true)
	f.sync.SetOnline(context.Background(), true)

	assert.Nil(t, f.sync.Status().LastReport)
}

func TestSyncService_NotifyPrayersSyncsOnlyPrayerHistory(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	f.sync.SetOnline(ctx, false)
	f.pending(t, store.StoreJournalEntries, models.JournalEntry{ID: "e1", UserID: "u1"})
	f.pending(t, store.StorePrayerHistory, models.PrayerCompletion{ID: "p1", UserID: "u1", CompletedAt: t0})

	f.adapter.EXPECT().Token().Return("").AnyTimes()
	f.adapter.EXPECT().Upsert(gomock.Any(), adapter.ResourceJournalEntries, "e1", gomock.Any()).
		Return(json.RawMessage(`{}`), nil)
	f.adapter.EXPECT().Upsert(gomock.Any(), adapter.ResourceDailyPrayers, "p1", gomock.Any()).
		Return(json.RawMessage(`{}`), nil)

	f.sync.SetOnline(ctx, true) // syncs both

	f.pending(t, store.StorePrayerHistory, models.PrayerCompletion{ID: "p2", UserID: "u1", CompletedAt: t0})
	f.pending(t, store.StoreJournalEntries, models.JournalEntry{ID: "e2", UserID: "u1"})
	f.adapter.EXPECT().Upsert(gomock.Any(), adapter.ResourceDailyPrayers, "p2", gomock.Any()).
		Return(json.RawMessage(`{}`), nil)

	report, err := f.sync.Notify(ctx, models.SyncMessage{Type: models.SyncPrayers})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)

	n, err := f.sync.RefreshPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "e2 is still waiting")
}

// TestSyncService_ConcurrentCallersSharePass verifies that a second SyncNow
// issued while a pass is running joins it instead of uploading again.
func TestSyncService_ConcurrentCallersSharePass(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	f.pending(t, store.StoreJournalEntries, models.JournalEntry{ID: "e1", UserID: "u1"})

	entered := make(chan struct{})
	release := make(chan struct{})
	f.adapter.EXPECT().Token().Return("").Times(1)
	f.adapter.EXPECT().Upsert(gomock.Any(), adapter.ResourceJournalEntries, "e1", gomock.Any()).
		DoAndReturn(func(context.Context, string, string, json.RawMessage) (json.RawMessage, error) {
			close(entered)
			<-release
			return json.RawMessage(`{}`), nil
		}).Times(1)

	// go online without triggering a pass
	f.sync.(*syncService).online.Store(true)

	var wg sync.WaitGroup
	reports := make([]models.ReconcileReport, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[0], errs[0] = f.sync.SyncNow(ctx)
	}()
	<-entered
	assert.True(t, f.sync.Status().Syncing)

	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[1], errs[1] = f.sync.SyncNow(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range reports {
		require.NoError(t, errs[i])
		assert.Equal(t, 1, reports[i].Synced)
	}
}

func TestSyncService_CancelledCallerDoesNotCancelSharedPass(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newSyncFixture(t)
	f.pending(t, store.StoreJournalEntries, models.JournalEntry{ID: "e1", UserID: "u1"})

	entered := make(chan struct{})
	release := make(chan struct{})
	f.adapter.EXPECT().Token().Return("")
	f.adapter.EXPECT().Upsert(gomock.Any(), adapter.ResourceJournalEntries, "e1", gomock.Any()).
		DoAndReturn(func(uctx context.Context, _, _ string, _ json.RawMessage) (json.RawMessage, error) {
			close(entered)
			<-release
			assert.NoError(t, uctx.Err())
			return json.RawMessage(`{}`), nil
		})

	f.sync.(*syncService).online.Store(true)

	errCh := make(chan error, 1)
	go func() {
		_, err := f.sync.SyncNow(ctx)
		errCh <- err
	}()
	<-entered
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	close(release)

	require.Eventually(t, func() bool {
		status := f.sync.Status()
		return status.LastReport != nil && status.LastReport.Synced == 1 && status.LastError == ""
	}, time.Second, 5*time.Millisecond)
}

func TestSyncService_FailedPassIsReported(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	events, unsubscribe := f.events.Subscribe("sync.", 8)
	defer unsubscribe()

	f.pending(t, store.StoreJournalEntries, models.JournalEntry{ID: "e1", UserID: "u1"})
	f.adapter.EXPECT().Token().Return("")
	f.adapter.EXPECT().Upsert(gomock.Any(), gomock.Any(), "e1", gomock.Any()).Return(nil, adapter.ErrUnauthorized)

	f.sync.(*syncService).online.Store(true)
	report, err := f.sync.SyncNow(ctx)
	require.ErrorIs(t, err, ErrSyncAborted)
	assert.True(t, report.Aborted)

	status := f.sync.Status()
	assert.NotEmpty(t, status.LastError)
	assert.Equal(t, 1, status.Pending)
	assert.Equal(t, []string{bus.KindSyncStarted, bus.KindSyncFailed}, drain(events))
}
