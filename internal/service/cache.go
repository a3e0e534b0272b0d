package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/models"
)

type cacheService struct {
	records *store.Records
	ttl     map[string]time.Duration
	now     Clock

	logger *logger.Logger
}

// DefaultTTLs returns the freshness windows of the application stores.
// Stores without an entry never expire.
func DefaultTTLs(guidelineTTL time.Duration) map[string]time.Duration {
	return map[string]time.Duration{
		store.StoreGuidelines: guidelineTTL,
	}
}

// NewCacheService creates a CacheService over records. ttl maps a store name
// to its freshness window; a missing or zero window means no expiry.
func NewCacheService(records *store.Records, ttl map[string]time.Duration, now Clock, log *logger.Logger) CacheService {
	if now == nil {
		now = time.Now
	}
	return &cacheService{
		records: records,
		ttl:     ttl,
		now:     now,
		logger:  log,
	}
}

func (c *cacheService) CacheMany(ctx context.Context, storeName string, items ...models.Keyed) error {
	now := c.now()
	for _, item := range items {
		if err := c.put(ctx, storeName, item, now); err != nil {
			return err
		}
	}

	c.logger.Debug().
		Str("func", "*cacheService.CacheMany").
		Str("store", storeName).
		Int("count", len(items)).
		Msg("objects cached")
	return nil
}

func (c *cacheService) CacheOne(ctx context.Context, storeName string, item models.Keyed) error {
	return c.put(ctx, storeName, item, c.now())
}

func (c *cacheService) put(ctx context.Context, storeName string, item models.Keyed, now time.Time) error {
	key := item.RecordKey()
	if key == "" {
		return fmt.Errorf("cache into %s: %w", storeName, ErrNoKey)
	}

	data, err := encodePayload(item, key)
	if err != nil {
		return fmt.Errorf("cache %s into %s: %w", key, storeName, err)
	}

	row := models.CachedRow{ID: key, Data: data, CachedAt: now}
	err = c.records.Atomically(func() error {
		if local, err := c.holdsLocalWrite(ctx, storeName, key); err != nil || local {
			return err
		}
		return putRow(ctx, c.records, storeName, row)
	})
	if err != nil {
		c.logger.Err(err).
			Str("func", "*cacheService.put").
			Str("store", storeName).
			Str("key", key).
			Msg("failed to cache object")
		return err
	}
	return nil
}

func (c *cacheService) ReadCached(ctx context.Context, storeName string) ([]models.CachedRow, error) {
	return c.read(ctx, storeName, false)
}

func (c *cacheService) ReadFresh(ctx context.Context, storeName string) ([]models.CachedRow, error) {
	return c.read(ctx, storeName, true)
}

func (c *cacheService) read(ctx context.Context, storeName string, freshOnly bool) ([]models.CachedRow, error) {
	records, err := c.records.GetAll(ctx, storeName)
	if err != nil {
		return nil, err
	}

	now := c.now()
	rows := make([]models.CachedRow, 0, len(records))
	for _, rec := range records {
		row, err := decodeRecord(rec)
		if err != nil {
			c.logger.Warn().Err(err).
				Str("func", "*cacheService.read").
				Str("store", storeName).
				Str("key", rec.Key.String()).
				Msg("skipping undecodable row")
			continue
		}
		cached, ok := row.(models.CachedRow)
		if !ok {
			continue
		}
		if freshOnly && c.expired(storeName, cached, now) {
			continue
		}
		rows = append(rows, cached)
	}
	return rows, nil
}

func (c *cacheService) ReadCachedOne(ctx context.Context, storeName, key string) (models.CachedRow, error) {
	row, err := getRow(ctx, c.records, storeName, key)
	if errors.Is(err, store.ErrRecordNotFound) {
		return models.CachedRow{}, fmt.Errorf("%w: %s/%s", ErrCacheMiss, storeName, key)
	}
	if err != nil {
		return models.CachedRow{}, err
	}

	cached, ok := row.(models.CachedRow)
	if !ok {
		return models.CachedRow{}, fmt.Errorf("%w: %s/%s is not a server copy", ErrCacheMiss, storeName, key)
	}
	if c.expired(storeName, cached, c.now()) {
		return models.CachedRow{}, fmt.Errorf("%w: %s/%s expired", ErrCacheMiss, storeName, key)
	}
	return cached, nil
}

func (c *cacheService) Prune(ctx context.Context, storeName string, keep func(models.CachedRow) bool) (int, error) {
	rows, err := c.ReadCached(ctx, storeName)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, row := range rows {
		if keep(row) {
			continue
		}
		removed := false
		err = c.records.Atomically(func() error {
			current, err := getRow(ctx, c.records, storeName, row.ID)
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if _, still := current.(models.CachedRow); !still {
				return nil
			}
			removed = true
			return c.records.Delete(ctx, storeName, row.ID)
		})
		if err != nil {
			return deleted, err
		}
		if removed {
			deleted++
		}
	}
	return deleted, nil
}

// holdsLocalWrite reports whether key in store is a pending or dead-lettered
// row. Such a row carries a local write the server has not seen, so a server
// copy must not replace it.
func (c *cacheService) holdsLocalWrite(ctx context.Context, storeName, key string) (bool, error) {
	rec, err := c.records.Get(ctx, storeName, key)
	if errors.Is(err, store.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	current, err := decodeRecord(rec)
	if err != nil {
		return false, nil
	}

	switch current.(type) {
	case models.PendingRow, models.DeadLetterRow:
		c.logger.Debug().
			Str("func", "*cacheService.holdsLocalWrite").
			Str("store", storeName).
			Str("key", key).
			Msg("keeping local write over server copy")
		return true, nil
	}
	return false, nil
}

// expired compares whole milliseconds, the resolution of cachedAt on disk.
func (c *cacheService) expired(storeName string, row models.CachedRow, now time.Time) bool {
	ttl := c.ttl[storeName]
	if ttl <= 0 {
		return false
	}
	age := now.UnixMilli() - models.ToMillis(row.CachedAt)
	return age > ttl.Milliseconds()
}
