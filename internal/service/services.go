package service

import (
	"time"

	"github.com/MKhiriev/go-spirit-connect/internal/adapter"
	"github.com/MKhiriev/go-spirit-connect/internal/bus"
	"github.com/MKhiriev/go-spirit-connect/internal/config"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/internal/utils"
)

type ClientServices struct {
	CacheService     CacheService
	QueueService     QueueService
	ReconcileService ReconcileService
	CleanupService   CleanupService
	SyncService      SyncService
	SyncJob          SyncJob
	JournalService   JournalService
	PrayerService    PrayerService
	ContentService   ContentService
}

func NewClientServices(
	records *store.Records,
	serverAdapter adapter.ServerAdapter,
	events *bus.Bus,
	cfg *config.ClientConfig,
	log *logger.Logger,
) *ClientServices {
	now := Clock(time.Now)
	policy := RetryPolicy{
		Base:        cfg.Sync.BackoffBase,
		Cap:         cfg.Sync.BackoffCap,
		MaxAttempts: cfg.Sync.MaxAttempts,
	}

	cacheSvc := NewCacheService(records, DefaultTTLs(cfg.Cache.GuidelineTTL), now, log)
	queueSvc := NewQueueService(records, utils.NewLocalIDGenerator(), policy, now, log)
	reconcileSvc := NewReconcileService(queueSvc, serverAdapter, DefaultRoutes(), cfg.Sync.RecordTimeout, now, log)

	routed := make([]string, 0)
	for _, route := range reconcileSvc.Routes() {
		routed = append(routed, route.Store)
	}
	cleanupSvc := NewCleanupService(records, routed, log)
	syncSvc := NewSyncService(reconcileSvc, cleanupSvc, queueSvc, events, now, log)

	return &ClientServices{
		CacheService:     cacheSvc,
		QueueService:     queueSvc,
		ReconcileService: reconcileSvc,
		CleanupService:   cleanupSvc,
		SyncService:      syncSvc,
		SyncJob:          NewSyncJob(syncSvc, log),
		JournalService:   NewJournalService(records, cacheSvc, queueSvc, serverAdapter, syncSvc, now, log),
		PrayerService:    NewPrayerService(records, queueSvc, syncSvc, now, log),
		ContentService:   NewContentService(cacheSvc, serverAdapter, syncSvc, log),
	}
}
