package service

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/models"
)

// t0 is 2023-11-14T22:13:20Z.
var t0 = time.Unix(1_700_000_000, 0).UTC()

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRecords(t *testing.T) *store.Records {
	t.Helper()
	m := store.NewManager(store.DefaultSchema(), store.MemoryOpener(""), logger.Nop())
	t.Cleanup(func() { _ = m.Close() })
	return store.NewRecords(m, logger.Nop())
}

// newFileRecords returns an accessor over a snapshot file; reopening the
// same path simulates a restart.
func newFileRecords(t *testing.T, path string) (*store.Records, func()) {
	t.Helper()
	m := store.NewManager(store.DefaultSchema(), store.MemoryOpener(path), logger.Nop())
	return store.NewRecords(m, logger.Nop()), func() { require.NoError(t, m.Close()) }
}

func tempSnapshot(t *testing.T) string {
	return filepath.Join(t.TempDir(), "offline.json")
}

var testPolicy = RetryPolicy{Base: time.Second, Cap: time.Minute, MaxAttempts: 3}

// fakeSync stands in for the coordinator in feature service tests.
type fakeSync struct {
	online atomic.Bool

	mu       sync.Mutex
	notified []models.SyncMessage
	err      error
}

func newFakeSync(online bool) *fakeSync {
	s := &fakeSync{}
	s.online.Store(online)
	return s
}

func (s *fakeSync) SetOnline(_ context.Context, online bool) { s.online.Store(online) }
func (s *fakeSync) Online() bool                            { return s.online.Load() }
func (s *fakeSync) Status() models.SyncStatus               { return models.SyncStatus{Online: s.Online()} }
func (s *fakeSync) SyncIfPending(context.Context) error     { return nil }
func (s *fakeSync) RefreshPending(context.Context) (int, error) {
	return 0, nil
}
func (s *fakeSync) SyncNow(context.Context) (models.ReconcileReport, error) {
	return models.ReconcileReport{}, nil
}

func (s *fakeSync) Notify(_ context.Context, msg models.SyncMessage) (models.ReconcileReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified = append(s.notified, msg)
	return models.ReconcileReport{}, s.err
}

func (s *fakeSync) messages() []models.SyncMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SyncMessage(nil), s.notified...)
}
