package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MKhiriev/go-spirit-connect/internal/adapter"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/internal/utils"
	"github.com/MKhiriev/go-spirit-connect/internal/validators"
	"github.com/MKhiriev/go-spirit-connect/models"
)

type journalService struct {
	records   *store.Records
	cache     CacheService
	queue     QueueService
	adapter   adapter.ServerAdapter
	sync      SyncService
	ids       *utils.UUIDGenerator
	validator validators.Validator
	now       Clock

	logger *logger.Logger
}

// NewJournalService creates the JournalService. Connectivity is read from
// syncService.
func NewJournalService(
	records *store.Records,
	cache CacheService,
	queue QueueService,
	serverAdapter adapter.ServerAdapter,
	syncService SyncService,
	now Clock,
	log *logger.Logger,
) JournalService {
	if now == nil {
		now = time.Now
	}
	return &journalService{
		records:   records,
		cache:     cache,
		queue:     queue,
		adapter:   serverAdapter,
		sync:      syncService,
		ids:       utils.NewUUIDGenerator(),
		validator: validators.NewRecordValidator(),
		now:       now,
		logger:    log,
	}
}

func resolveUserID(ctx context.Context, userID string) (string, error) {
	if userID != "" {
		return userID, nil
	}
	if id, ok := utils.GetUserIDFromContext(ctx); ok {
		return id, nil
	}
	return "", ErrNoUserID
}

func (s *journalService) Save(ctx context.Context, entry models.JournalEntry) (models.JournalEntry, error) {
	userID, err := resolveUserID(ctx, entry.UserID)
	if err != nil {
		return models.JournalEntry{}, err
	}
	entry.UserID = userID

	now := s.now()
	if entry.Date == "" {
		entry.Date = now.Format(models.DateLayout)
	}
	if entry.CreatedAt == nil {
		entry.CreatedAt = &now
	}
	if err = s.validator.Validate(ctx, entry); err != nil {
		return models.JournalEntry{}, fmt.Errorf("%w: %w", ErrInvalidDataProvided, err)
	}

	// An entry still waiting for upload is replaced in the queue, so that
	// the older queued copy can never overwrite it on the server later.
	_, local, err := s.localRow(ctx, entry.ID)
	if err != nil {
		return models.JournalEntry{}, err
	}

	if s.sync.Online() && !local {
		if entry.ID == "" {
			entry.ID = s.ids.Generate()
		}
		saved, err := s.saveOnline(ctx, entry)
		if err == nil {
			return saved, nil
		}
		s.logger.Warn().Err(err).
			Str("func", "*journalService.Save").
			Str("id", entry.ID).
			Msg("online save failed, queueing entry")
	}

	row, err := s.queue.WriteOffline(ctx, store.StoreJournalEntries, entry)
	if err != nil {
		return models.JournalEntry{}, err
	}
	return decodePayload[models.JournalEntry](row)
}

func (s *journalService) saveOnline(ctx context.Context, entry models.JournalEntry) (models.JournalEntry, error) {
	data, err := encodePayload(entry, entry.ID)
	if err != nil {
		return models.JournalEntry{}, err
	}

	resp, err := s.adapter.Upsert(ctx, adapter.ResourceJournalEntries, entry.ID, data)
	if err != nil {
		return models.JournalEntry{}, mapAdapterError(err)
	}

	saved := entry
	if err = json.Unmarshal(resp, &saved); err != nil || saved.ID == "" {
		saved = entry
	}

	if err = s.cache.CacheOne(ctx, store.StoreJournalEntries, saved); err != nil {
		s.logger.Warn().Err(err).
			Str("func", "*journalService.saveOnline").
			Str("id", saved.ID).
			Msg("failed to cache saved entry")
	}
	return saved, nil
}

func (s *journalService) Fetch(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	userID, err := resolveUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.sync.Online() {
		entries, err := s.fetchOnline(ctx, userID)
		if err == nil {
			return entries, nil
		}
		s.logger.Warn().Err(err).
			Str("func", "*journalService.Fetch").
			Msg("server fetch failed, serving local entries")
	}

	return s.fetchLocal(ctx, userID)
}

func (s *journalService) fetchOnline(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	raw, err := s.adapter.List(ctx, adapter.ResourceJournalEntries, map[string]string{"user_id": userID})
	if err != nil {
		return nil, mapAdapterError(err)
	}

	entries := make([]models.JournalEntry, 0, len(raw))
	items := make([]models.Keyed, 0, len(raw))
	onServer := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		var entry models.JournalEntry
		if err = json.Unmarshal(item, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode journal entry: %w", err)
		}
		entries = append(entries, entry)
		items = append(items, entry)
		onServer[entry.ID] = struct{}{}
	}

	if err = s.cache.CacheMany(ctx, store.StoreJournalEntries, items...); err != nil {
		s.logger.Warn().Err(err).Str("func", "*journalService.fetchOnline").Msg("failed to cache entries")
	}

	// Entries deleted on the server disappear from the cache too.
	_, err = s.cache.Prune(ctx, store.StoreJournalEntries, func(row models.CachedRow) bool {
		entry, err := decodePayload[models.JournalEntry](row)
		if err != nil || entry.UserID != userID {
			return true
		}
		_, ok := onServer[row.ID]
		return ok
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("func", "*journalService.fetchOnline").Msg("failed to prune cache")
	}

	unsynced, err := s.unsyncedEntries(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A local edit not uploaded yet is newer than the server copy.
	localByID := make(map[string]models.JournalEntry, len(unsynced))
	for _, entry := range unsynced {
		localByID[entry.ID] = entry
	}
	merged := make([]models.JournalEntry, 0, len(entries)+len(unsynced))
	for _, entry := range entries {
		if local, ok := localByID[entry.ID]; ok {
			entry = local
			delete(localByID, entry.ID)
		}
		merged = append(merged, entry)
	}
	for _, entry := range unsynced {
		if _, ok := localByID[entry.ID]; ok {
			merged = append(merged, entry)
		}
	}

	sortNewestFirst(merged)
	return merged, nil
}

func (s *journalService) fetchLocal(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	cached, err := s.cache.ReadCached(ctx, store.StoreJournalEntries)
	if err != nil {
		return nil, err
	}

	entries := make([]models.JournalEntry, 0, len(cached))
	for _, row := range cached {
		entry, err := decodePayload[models.JournalEntry](row)
		if err != nil {
			continue
		}
		if entry.UserID == userID {
			entries = append(entries, entry)
		}
	}

	unsynced, err := s.unsyncedEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries = append(entries, unsynced...)

	sortNewestFirst(entries)
	return entries, nil
}

func (s *journalService) unsyncedEntries(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	rows, err := s.queue.ReadUnsynced(ctx, store.StoreJournalEntries)
	if err != nil {
		return nil, err
	}

	entries := make([]models.JournalEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := decodePayload[models.JournalEntry](row)
		if err != nil {
			continue
		}
		if entry.UserID == userID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func sortNewestFirst(entries []models.JournalEntry) {
	slices.SortStableFunc(entries, func(a, b models.JournalEntry) int {
		return b.SortTime().Compare(a.SortTime())
	})
}

// localRow returns the row of id when it has not reached the server yet.
func (s *journalService) localRow(ctx context.Context, id string) (models.Row, bool, error) {
	if id == "" {
		return nil, false, nil
	}
	row, err := getRow(ctx, s.records, store.StoreJournalEntries, id)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	switch row.(type) {
	case models.PendingRow, models.DeadLetterRow:
		return row, true, nil
	}
	return row, false, nil
}

func (s *journalService) Update(ctx context.Context, id string, patch models.JournalEntryPatch) (models.JournalEntry, error) {
	if id == "" {
		return models.JournalEntry{}, ErrNoKey
	}
	if err := s.validator.Validate(ctx, patch); err != nil {
		return models.JournalEntry{}, fmt.Errorf("%w: %w", ErrInvalidDataProvided, err)
	}

	var (
		row     models.Row
		local   bool
		updated models.JournalEntry
	)
	err := s.records.Atomically(func() error {
		var err error
		row, local, err = s.localRow(ctx, id)
		if err != nil || !local {
			return err
		}
		updated, err = s.updateLocal(ctx, row, patch)
		return err
	})
	if err != nil {
		return models.JournalEntry{}, err
	}
	if local {
		return updated, nil
	}

	if !s.sync.Online() {
		return models.JournalEntry{}, ErrOffline
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return models.JournalEntry{}, fmt.Errorf("%w: %w", ErrInvalidDataProvided, err)
	}
	resp, err := s.adapter.Patch(ctx, adapter.ResourceJournalEntries, id, body)
	if err != nil {
		return models.JournalEntry{}, mapAdapterError(err)
	}

	var remote models.JournalEntry
	if row != nil {
		if base, err := decodePayload[models.JournalEntry](row); err == nil {
			remote = patch.Apply(base, s.now())
		}
	}
	if err = json.Unmarshal(resp, &remote); err != nil {
		return models.JournalEntry{}, fmt.Errorf("failed to decode updated entry: %w", err)
	}
	if remote.ID == "" {
		remote.ID = id
	}

	if remote.UserID != "" {
		if err = s.cache.CacheOne(ctx, store.StoreJournalEntries, remote); err != nil {
			s.logger.Warn().Err(err).Str("func", "*journalService.Update").Msg("failed to cache updated entry")
		}
	}
	return remote, nil
}

func (s *journalService) updateLocal(ctx context.Context, row models.Row, patch models.JournalEntryPatch) (models.JournalEntry, error) {
	entry, err := decodePayload[models.JournalEntry](row)
	if err != nil {
		return models.JournalEntry{}, err
	}
	entry = patch.Apply(entry, s.now())

	data, err := encodePayload(entry, row.Key())
	if err != nil {
		return models.JournalEntry{}, err
	}

	var updated models.Row
	switch r := row.(type) {
	case models.PendingRow:
		r.Data = data
		updated = r
	case models.DeadLetterRow:
		// An edit is a fresh attempt at the upload.
		r.Data = data
		updated = r.Requeue()
	}

	if err = putRow(ctx, s.records, store.StoreJournalEntries, updated); err != nil {
		return models.JournalEntry{}, err
	}
	return entry, nil
}

func (s *journalService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNoKey
	}

	var local bool
	err := s.records.Atomically(func() error {
		var err error
		if _, local, err = s.localRow(ctx, id); err != nil || !local {
			return err
		}
		return s.records.Delete(ctx, store.StoreJournalEntries, id)
	})
	if err != nil || local {
		return err
	}

	if !s.sync.Online() {
		return ErrOffline
	}

	if err = s.adapter.Delete(ctx, adapter.ResourceJournalEntries, id); err != nil {
		return mapAdapterError(err)
	}

	if err = s.records.Delete(ctx, store.StoreJournalEntries, id); err != nil {
		s.logger.Warn().Err(err).Str("func", "*journalService.Delete").Msg("failed to drop cached entry")
	}
	return nil
}
