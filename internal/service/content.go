package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MKhiriev/go-spirit-connect/internal/adapter"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/models"
)

type contentService struct {
	cache   CacheService
	adapter adapter.ServerAdapter
	sync    SyncService

	logger *logger.Logger
}

// NewContentService creates the ContentService. While offline the network
// step fails with ErrOffline, so only cached values are served.
func NewContentService(cache CacheService, serverAdapter adapter.ServerAdapter, syncService SyncService, log *logger.Logger) ContentService {
	return &contentService{
		cache:   cache,
		adapter: serverAdapter,
		sync:    syncService,
		logger:  log,
	}
}

func (s *contentService) Guideline(ctx context.Context, id string, onCached func(models.Guideline)) (Loaded[models.Guideline], error) {
	if id == "" {
		return Loaded[models.Guideline]{}, ErrNoKey
	}
	return LoadOne(ctx, s.cache, store.StoreGuidelines, id,
		getObject[models.Guideline](s, adapter.ResourceGuidelines, id), onCached)
}

func (s *contentService) Guidelines(ctx context.Context, onCached func([]models.Guideline)) (Loaded[[]models.Guideline], error) {
	return LoadMany(ctx, s.cache, store.StoreGuidelines, nil,
		listObjects[models.Guideline](s, adapter.ResourceGuidelines, nil), onCached)
}

func (s *contentService) Announcements(ctx context.Context, onCached func([]models.Announcement)) (Loaded[[]models.Announcement], error) {
	return LoadMany(ctx, s.cache, store.StoreAnnouncements, nil,
		listObjects[models.Announcement](s, adapter.ResourceAnnouncements, nil), onCached)
}

func (s *contentService) Profile(ctx context.Context, userID string, onCached func(models.Profile)) (Loaded[models.Profile], error) {
	userID, err := resolveUserID(ctx, userID)
	if err != nil {
		return Loaded[models.Profile]{}, err
	}
	return LoadOne(ctx, s.cache, store.StoreProfiles, userID,
		getObject[models.Profile](s, adapter.ResourceProfiles, userID), onCached)
}

func (s *contentService) PrayerProgress(ctx context.Context, userID string, onCached func([]models.PrayerProgress)) (Loaded[[]models.PrayerProgress], error) {
	userID, err := resolveUserID(ctx, userID)
	if err != nil {
		return Loaded[[]models.PrayerProgress]{}, err
	}
	ownedBy := func(p models.PrayerProgress) bool { return p.UserID == userID }
	return LoadMany(ctx, s.cache, store.StorePrayerProgress, ownedBy,
		listObjects[models.PrayerProgress](s, adapter.ResourcePrayerProgress, map[string]string{"user_id": userID}), onCached)
}

func getObject[T any](s *contentService, resource, id string) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var v T
		if !s.sync.Online() {
			return v, ErrOffline
		}

		raw, err := s.adapter.Get(ctx, resource, id)
		if err != nil {
			return v, mapAdapterError(err)
		}
		if err = json.Unmarshal(raw, &v); err != nil {
			return v, fmt.Errorf("failed to decode %s/%s: %w", resource, id, err)
		}
		return v, nil
	}
}

func listObjects[T any](s *contentService, resource string, filter map[string]string) func(context.Context) ([]T, error) {
	return func(ctx context.Context) ([]T, error) {
		if !s.sync.Online() {
			return nil, ErrOffline
		}

		raw, err := s.adapter.List(ctx, resource, filter)
		if err != nil {
			return nil, mapAdapterError(err)
		}

		items := make([]T, 0, len(raw))
		for _, item := range raw {
			var v T
			if err = json.Unmarshal(item, &v); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", resource, err)
			}
			items = append(items, v)
		}
		return items, nil
	}
}
