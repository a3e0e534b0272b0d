package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/internal/validators"
	"github.com/MKhiriev/go-spirit-connect/models"
)

type prayerService struct {
	records   *store.Records
	queue     QueueService
	sync      SyncService
	validator validators.Validator
	now       Clock

	logger *logger.Logger
}

// NewPrayerService creates the PrayerService.
func NewPrayerService(records *store.Records, queue QueueService, syncService SyncService, now Clock, log *logger.Logger) PrayerService {
	if now == nil {
		now = time.Now
	}
	return &prayerService{
		records:   records,
		queue:     queue,
		sync:      syncService,
		validator: validators.NewRecordValidator(),
		now:       now,
		logger:    log,
	}
}

func (s *prayerService) RecordCompletion(ctx context.Context, completion models.PrayerCompletion) (models.PrayerCompletion, error) {
	userID, err := resolveUserID(ctx, completion.UserID)
	if err != nil {
		return models.PrayerCompletion{}, err
	}
	completion.UserID = userID
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = s.now()
	}
	completion = completion.Normalize()
	if err = s.validator.Validate(ctx, completion); err != nil {
		return models.PrayerCompletion{}, fmt.Errorf("%w: %w", ErrInvalidDataProvided, err)
	}

	existing, found, err := s.findDuplicate(ctx, completion)
	if err != nil {
		return models.PrayerCompletion{}, err
	}
	if found {
		s.logger.Debug().
			Str("func", "*prayerService.RecordCompletion").
			Str("id", existing.ID).
			Msg("completion already queued")
		return existing, nil
	}

	msg := models.SyncMessage{Type: models.SyncPrayers}
	reflection := completion.JournalEntry
	completion.JournalEntry = nil

	if reflection != nil {
		entry := *reflection
		if entry.UserID == "" {
			entry.UserID = userID
		}
		if entry.Date == "" {
			entry.Date = completion.CompletedAt.Format(models.DateLayout)
		}
		if entry.CreatedAt == nil {
			at := completion.CompletedAt
			entry.CreatedAt = &at
		}
		if _, err = s.queue.WriteOffline(ctx, store.StoreJournalEntries, entry); err != nil {
			return models.PrayerCompletion{}, err
		}
		msg.Type = models.SyncAll
	}

	row, err := s.queue.WriteOffline(ctx, store.StorePrayerHistory, completion)
	if err != nil {
		return models.PrayerCompletion{}, err
	}
	saved, err := decodePayload[models.PrayerCompletion](row)
	if err != nil {
		return models.PrayerCompletion{}, err
	}

	if s.sync.Online() {
		if _, err = s.sync.Notify(ctx, msg); err != nil {
			s.logger.Warn().Err(err).
				Str("func", "*prayerService.RecordCompletion").
				Msg("sync after completion failed")
		}
	}
	return saved, nil
}

// findDuplicate looks for a pending completion of the same guideline by the
// same user on the same weekday of the same ISO week.
func (s *prayerService) findDuplicate(ctx context.Context, c models.PrayerCompletion) (models.PrayerCompletion, bool, error) {
	pending, err := s.queue.ReadUnsynced(ctx, store.StorePrayerHistory)
	if err != nil {
		return models.PrayerCompletion{}, false, err
	}

	year, week := c.CompletedAt.ISOWeek()
	for _, row := range pending {
		other, err := decodePayload[models.PrayerCompletion](row)
		if err != nil {
			continue
		}
		otherYear, otherWeek := other.CompletedAt.ISOWeek()
		if other.UserID == c.UserID &&
			sameGuideline(other.GuidelineID, c.GuidelineID) &&
			other.DayOfWeek == c.DayOfWeek &&
			otherYear == year && otherWeek == week {
			return other, true, nil
		}
	}
	return models.PrayerCompletion{}, false, nil
}

func sameGuideline(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *prayerService) History(ctx context.Context, userID string) ([]models.PrayerCompletion, error) {
	userID, err := resolveUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := s.records.GetAll(ctx, store.StorePrayerHistory)
	if err != nil {
		return nil, err
	}

	history := make([]models.PrayerCompletion, 0, len(records))
	for _, rec := range records {
		row, err := decodeRecord(rec)
		if err != nil {
			continue
		}
		completion, err := decodePayload[models.PrayerCompletion](row)
		if err != nil || completion.UserID != userID {
			continue
		}
		history = append(history, completion)
	}

	slices.SortStableFunc(history, func(a, b models.PrayerCompletion) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})
	return history, nil
}
