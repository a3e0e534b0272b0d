package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MKhiriev/go-spirit-connect/internal/bus"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/models"
)

type syncService struct {
	reconcile ReconcileService
	cleanup   CleanupService
	queue     QueueService
	events    *bus.Bus
	now       Clock

	online atomic.Bool

	// group merges concurrent requests for the same store set; runMu keeps
	// passes over different sets from overlapping.
	group singleflight.Group
	runMu sync.Mutex

	mu     sync.RWMutex
	status models.SyncStatus

	logger *logger.Logger
}

// NewSyncService creates the sync coordinator. It starts offline.
func NewSyncService(reconcile ReconcileService, cleanup CleanupService, queue QueueService, events *bus.Bus, now Clock, log *logger.Logger) SyncService {
	if now == nil {
		now = time.Now
	}
	return &syncService{
		reconcile: reconcile,
		cleanup:   cleanup,
		queue:     queue,
		events:    events,
		now:       now,
		logger:    log,
	}
}

func (s *syncService) publish(kind string, payload any) {
	if s.events == nil {
		return
	}
	s.events.Publish(bus.Event{Kind: kind, Timestamp: s.now(), Payload: payload})
}

func (s *syncService) SetOnline(ctx context.Context, online bool) {
	was := s.online.Swap(online)
	if was == online {
		return
	}

	s.logger.Info().
		Str("func", "*syncService.SetOnline").
		Bool("online", online).
		Msg("connectivity changed")
	s.publish(bus.KindConnectivityChanged, online)

	if online {
		if err := s.SyncIfPending(ctx); err != nil {
			s.logger.Warn().Err(err).
				Str("func", "*syncService.SetOnline").
				Msg("sync after reconnect failed")
		}
	}
}

func (s *syncService) Online() bool {
	return s.online.Load()
}

func (s *syncService) Status() models.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.status
	st.Online = s.online.Load()
	if st.LastSyncAt != nil {
		at := *st.LastSyncAt
		st.LastSyncAt = &at
	}
	if st.LastReport != nil {
		report := *st.LastReport
		st.LastReport = &report
	}
	return st
}

func (s *syncService) SyncNow(ctx context.Context) (models.ReconcileReport, error) {
	return s.run(ctx, nil)
}

func (s *syncService) SyncIfPending(ctx context.Context) error {
	if !s.Online() {
		return nil
	}

	pending, err := s.RefreshPending(ctx)
	if err != nil {
		return err
	}
	if pending == 0 {
		return nil
	}

	_, err = s.SyncNow(ctx)
	return err
}

func (s *syncService) Notify(ctx context.Context, msg models.SyncMessage) (models.ReconcileReport, error) {
	var stores []string
	switch msg.Type {
	case models.SyncPrayers:
		stores = []string{store.StorePrayerHistory}
	case models.SyncJournal:
		stores = []string{store.StoreJournalEntries}
	case models.SyncAll:
	default:
		return models.ReconcileReport{}, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}

	return s.run(ctx, stores)
}

func (s *syncService) RefreshPending(ctx context.Context) (int, error) {
	pending, err := s.queue.PendingCount(ctx, s.routeStores()...)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.status.Pending = pending
	s.mu.Unlock()
	return pending, nil
}

func (s *syncService) routeStores() []string {
	routes := s.reconcile.Routes()
	names := make([]string, 0, len(routes))
	for _, route := range routes {
		names = append(names, route.Store)
	}
	return names
}

func (s *syncService) run(ctx context.Context, stores []string) (models.ReconcileReport, error) {
	if !s.Online() {
		return models.ReconcileReport{}, ErrOffline
	}

	key := "*"
	if len(stores) > 0 {
		sorted := slices.Clone(stores)
		slices.Sort(sorted)
		key = strings.Join(sorted, ",")
	}

	// The pass is shared by every caller that joins it, so it must outlive
	// whichever of them started it.
	passCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		s.runMu.Lock()
		defer s.runMu.Unlock()
		return s.pass(passCtx, stores)
	})

	select {
	case <-ctx.Done():
		return models.ReconcileReport{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.Debug().
				Str("func", "*syncService.run").
				Str("stores", key).
				Msg("joined sync pass in flight")
		}
		report, _ := res.Val.(models.ReconcileReport)
		return report, res.Err
	}
}

func (s *syncService) pass(ctx context.Context, stores []string) (models.ReconcileReport, error) {
	s.setSyncing(true)
	defer s.setSyncing(false)
	s.publish(bus.KindSyncStarted, stores)

	report, err := s.reconcile.Reconcile(ctx, stores...)
	if err == nil {
		if _, cleanupErr := s.cleanup.Cleanup(ctx, stores...); cleanupErr != nil {
			s.logger.Warn().Err(cleanupErr).
				Str("func", "*syncService.pass").
				Msg("cleanup after sync failed")
		}
	}

	if _, refreshErr := s.RefreshPending(ctx); refreshErr != nil {
		s.logger.Warn().Err(refreshErr).
			Str("func", "*syncService.pass").
			Msg("failed to recount pending rows")
	}

	s.finish(report, err)
	return report, err
}

func (s *syncService) setSyncing(syncing bool) {
	s.mu.Lock()
	s.status.Syncing = syncing
	s.mu.Unlock()
}

func (s *syncService) finish(report models.ReconcileReport, err error) {
	at := s.now()

	s.mu.Lock()
	s.status.LastSyncAt = &at
	s.status.LastReport = &report
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Err(err).
			Str("func", "*syncService.finish").
			Bool("aborted", report.Aborted).
			Msg("sync pass failed")
		s.publish(bus.KindSyncFailed, err.Error())
		return
	}
	s.publish(bus.KindSyncCompleted, report)
}
