package service

import (
	"context"
	"errors"

	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/models"
)

type cleanupService struct {
	records *store.Records
	stores  []string

	logger *logger.Logger
}

// NewCleanupService creates a CleanupService sweeping stores when Cleanup is
// called without arguments.
func NewCleanupService(records *store.Records, stores []string, log *logger.Logger) CleanupService {
	return &cleanupService{
		records: records,
		stores:  stores,
		logger:  log,
	}
}

func (c *cleanupService) Cleanup(ctx context.Context, stores ...string) (models.CleanupReport, error) {
	if len(stores) == 0 {
		stores = c.stores
	}

	var report models.CleanupReport
	for _, storeName := range stores {
		deleted, err := c.sweep(ctx, storeName)
		report.Deleted += deleted
		if err != nil {
			return report, err
		}
	}

	if report.Deleted > 0 {
		c.logger.Info().
			Str("func", "*cleanupService.Cleanup").
			Int("deleted", report.Deleted).
			Msg("synced rows removed")
	}
	return report, nil
}

func (c *cleanupService) sweep(ctx context.Context, storeName string) (int, error) {
	records, err := c.records.GetAllByIndex(ctx, storeName, store.IndexSynced, models.SyncDone)
	if errors.Is(err, store.ErrIndexNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, rec := range records {
		row, err := decodeRecord(rec)
		if err != nil {
			continue
		}
		// Cached copies carry synced=1 too; they belong to the cache.
		if _, ok := row.(models.SyncedRow); !ok {
			continue
		}
		if err = c.records.Delete(ctx, storeName, rec.Key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
