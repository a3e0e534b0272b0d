package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/MKhiriev/go-spirit-connect/internal/adapter"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/internal/utils"
	"github.com/MKhiriev/go-spirit-connect/models"
)

// RetryPolicy controls how failed uploads are rescheduled.
type RetryPolicy struct {
	// Base is the delay after the first failure. It doubles on every further
	// failure.
	Base time.Duration
	// Cap bounds a single delay.
	Cap time.Duration
	// MaxAttempts is the number of failures after which a row becomes a dead
	// letter.
	MaxAttempts int
}

// Delay returns the wait before the upload that follows failure number
// attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 || p.Base <= 0 {
		return 0
	}

	var b retry.Backoff = retry.NewExponential(p.Base)
	if p.Cap > 0 {
		b = retry.WithCappedDuration(p.Cap, b)
	}

	var d time.Duration
	for i := 0; i < attempt; i++ {
		d, _ = b.Next()
	}
	return d
}

type queueService struct {
	records *store.Records
	ids     *utils.LocalIDGenerator
	policy  RetryPolicy
	now     Clock

	logger *logger.Logger
}

// NewQueueService creates a QueueService over records.
func NewQueueService(records *store.Records, ids *utils.LocalIDGenerator, policy RetryPolicy, now Clock, log *logger.Logger) QueueService {
	if now == nil {
		now = time.Now
	}
	if ids == nil {
		ids = utils.NewLocalIDGenerator()
	}
	return &queueService{
		records: records,
		ids:     ids,
		policy:  policy,
		now:     now,
		logger:  log,
	}
}

func (q *queueService) WriteOffline(ctx context.Context, storeName string, payload models.Keyed) (models.PendingRow, error) {
	if payload == nil {
		return models.PendingRow{}, fmt.Errorf("%w: nil payload", ErrInvalidDataProvided)
	}

	key := payload.RecordKey()
	if key == "" {
		key = q.ids.Generate()
	}

	data, err := encodePayload(payload, key)
	if err != nil {
		return models.PendingRow{}, err
	}

	row := models.PendingRow{
		LocalID:   key,
		Data:      data,
		CreatedAt: q.now(),
	}
	err = q.records.Atomically(func() error {
		return putRow(ctx, q.records, storeName, row)
	})
	if err != nil {
		q.logger.Err(err).
			Str("func", "*queueService.WriteOffline").
			Str("store", storeName).
			Str("key", key).
			Msg("failed to write pending row")
		return models.PendingRow{}, err
	}

	q.logger.Debug().
		Str("func", "*queueService.WriteOffline").
		Str("store", storeName).
		Str("key", key).
		Msg("pending row written")
	return row, nil
}

// unsyncedRows returns the decoded rows of store whose synced flag is 0.
func (q *queueService) unsyncedRows(ctx context.Context, storeName string) ([]models.Row, error) {
	records, err := q.records.GetAllByIndex(ctx, storeName, store.IndexSynced, models.SyncPending)
	if errors.Is(err, store.ErrIndexNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows := make([]models.Row, 0, len(records))
	for _, rec := range records {
		row, err := decodeRecord(rec)
		if err != nil {
			q.logger.Warn().Err(err).
				Str("func", "*queueService.unsyncedRows").
				Str("store", storeName).
				Str("key", rec.Key.String()).
				Msg("skipping undecodable row")
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (q *queueService) ReadUnsynced(ctx context.Context, storeName string) ([]models.PendingRow, error) {
	rows, err := q.unsyncedRows(ctx, storeName)
	if err != nil {
		return nil, err
	}

	pending := make([]models.PendingRow, 0, len(rows))
	for _, row := range rows {
		if p, ok := row.(models.PendingRow); ok {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

func (q *queueService) ReadDeadLetters(ctx context.Context, storeName string) ([]models.DeadLetterRow, error) {
	rows, err := q.unsyncedRows(ctx, storeName)
	if err != nil {
		return nil, err
	}

	dead := make([]models.DeadLetterRow, 0)
	for _, row := range rows {
		if d, ok := row.(models.DeadLetterRow); ok {
			dead = append(dead, d)
		}
	}
	return dead, nil
}

func (q *queueService) MarkSynced(ctx context.Context, storeName string, uploaded models.PendingRow) error {
	key := uploaded.LocalID
	return q.records.Atomically(func() error {
		rec, err := q.records.Get(ctx, storeName, key)
		if err != nil {
			return err
		}

		var env models.StoredRow
		if err = rec.Decode(&env); err != nil {
			return err
		}
		if env.Cached {
			return fmt.Errorf("%w: %s/%s is a cached copy", ErrNotPending, storeName, key)
		}
		if env.Synced == models.SyncDone {
			return nil
		}
		if !samePayload(env.Data, uploaded.Data) {
			q.logger.Debug().
				Str("func", "*queueService.MarkSynced").
				Str("store", storeName).
				Str("key", key).
				Msg("row changed during upload, keeping it pending")
			return fmt.Errorf("%w: %s/%s", ErrRowChanged, storeName, key)
		}

		env.Synced = models.SyncDone
		env.SyncedAt = models.ToMillis(q.now())
		env.NextAttemptAt = 0
		env.LastError = ""
		env.DeadLetter = false

		if _, err = q.records.Put(ctx, storeName, env); err != nil {
			q.logger.Err(err).
				Str("func", "*queueService.MarkSynced").
				Str("store", storeName).
				Str("key", key).
				Msg("failed to mark row as synced")
			return err
		}
		return nil
	})
}

func (q *queueService) MarkFailed(ctx context.Context, storeName, key string, cause error) (models.Row, error) {
	var updated models.Row
	err := q.records.Atomically(func() error {
		var err error
		updated, err = q.markFailed(ctx, storeName, key, cause)
		return err
	})
	return updated, err
}

func (q *queueService) markFailed(ctx context.Context, storeName, key string, cause error) (models.Row, error) {
	row, err := getRow(ctx, q.records, storeName, key)
	if err != nil {
		return nil, err
	}

	pending, ok := row.(models.PendingRow)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotPending, storeName, key)
	}

	now := q.now()
	pending.Attempts++
	if cause != nil {
		pending.LastError = cause.Error()
	}

	var updated models.Row
	if pending.Attempts >= q.policy.MaxAttempts || adapter.IsPermanent(cause) {
		updated = models.DeadLetterRow{
			LocalID:   pending.LocalID,
			Data:      pending.Data,
			CreatedAt: pending.CreatedAt,
			Attempts:  pending.Attempts,
			LastError: pending.LastError,
		}
	} else {
		pending.NextAttemptAt = now.Add(q.policy.Delay(pending.Attempts))
		updated = pending
	}

	if err = putRow(ctx, q.records, storeName, updated); err != nil {
		return nil, err
	}

	event := q.logger.Warn()
	if _, dead := updated.(models.DeadLetterRow); dead {
		event = q.logger.Error()
	}
	event.Err(cause).
		Str("func", "*queueService.MarkFailed").
		Str("store", storeName).
		Str("key", key).
		Int("attempts", pending.Attempts).
		Msg("upload failed")

	return updated, nil
}

func (q *queueService) Requeue(ctx context.Context, storeName, key string) error {
	return q.records.Atomically(func() error {
		row, err := getRow(ctx, q.records, storeName, key)
		if err != nil {
			return err
		}

		dead, ok := row.(models.DeadLetterRow)
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrNotDeadLetter, storeName, key)
		}
		return putRow(ctx, q.records, storeName, dead.Requeue())
	})
}

func (q *queueService) AddToSyncQueue(ctx context.Context, actionType string, data any) (models.SyncAction, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return models.SyncAction{}, fmt.Errorf("%w: %w", ErrInvalidDataProvided, err)
	}

	action := models.SyncAction{
		Type:      actionType,
		Data:      raw,
		Timestamp: q.now().UnixMilli(),
	}
	key, err := q.records.Put(ctx, store.StoreSyncQueue, action)
	if err != nil {
		q.logger.Err(err).
			Str("func", "*queueService.AddToSyncQueue").
			Str("type", actionType).
			Msg("failed to queue action")
		return models.SyncAction{}, err
	}

	action.ID = key.Int()
	return action, nil
}

func (q *queueService) GetSyncQueue(ctx context.Context) ([]models.SyncAction, error) {
	records, err := q.records.GetAll(ctx, store.StoreSyncQueue)
	if err != nil {
		return nil, err
	}

	actions := make([]models.SyncAction, 0, len(records))
	for _, rec := range records {
		var action models.SyncAction
		if err = rec.Decode(&action); err != nil {
			return nil, fmt.Errorf("failed to decode sync action %s: %w", rec.Key, err)
		}
		action.ID = rec.Key.Int()
		actions = append(actions, action)
	}
	return actions, nil
}

func (q *queueService) RemoveFromSyncQueue(ctx context.Context, actions []models.SyncAction) error {
	for _, action := range actions {
		if err := q.records.Delete(ctx, store.StoreSyncQueue, action.ID); err != nil {
			return err
		}
	}
	return nil
}

func (q *queueService) ClearSyncQueue(ctx context.Context) error {
	return q.records.Clear(ctx, store.StoreSyncQueue)
}

func (q *queueService) PendingCount(ctx context.Context, stores ...string) (int, error) {
	total, err := q.records.Count(ctx, store.StoreSyncQueue)
	if err != nil {
		return 0, err
	}

	for _, storeName := range stores {
		pending, err := q.ReadUnsynced(ctx, storeName)
		if err != nil {
			return 0, err
		}
		total += len(pending)
	}
	return total, nil
}
