package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MKhiriev/go-spirit-connect/internal/logger"
)

// Records is the generic accessor over the named stores of the database.
// It knows nothing about sync flags or cache freshness.
type Records struct {
	manager *Manager

	// rowMu is held by Atomically.
	rowMu sync.Mutex

	logger *logger.Logger
}

// NewRecords constructs a Records accessor backed by manager.
func NewRecords(manager *Manager, log *logger.Logger) *Records {
	return &Records{
		manager: manager,
		logger:  log,
	}
}

func (r *Records) handle(ctx context.Context) (Handle, error) {
	return r.manager.Open(ctx)
}

// Atomically runs fn while no other Atomically call on r is running. Layers
// that read a row, decide, and write it back do so inside fn so that two such
// cycles on the same row cannot interleave.
func (r *Records) Atomically(fn func() error) error {
	r.rowMu.Lock()
	defer r.rowMu.Unlock()
	return fn()
}

// Put inserts or fully replaces value in store and returns its key.
func (r *Records) Put(ctx context.Context, store string, value any) (Key, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return Key{}, err
	}

	key, err := h.Put(ctx, store, value)
	if err != nil {
		return Key{}, fmt.Errorf("failed to put into %s: %w", store, err)
	}

	logger.FromContext(ctx).Debug().
		Str("func", "Records.Put").
		Str("store", store).
		Str("key", key.String()).
		Msg("record stored")

	return key, nil
}

// Get returns the record of store with key. A missing record is reported as
// [ErrRecordNotFound].
func (r *Records) Get(ctx context.Context, store string, key any) (Record, error) {
	k, err := KeyOf(key)
	if err != nil {
		return Record{}, err
	}

	h, err := r.handle(ctx)
	if err != nil {
		return Record{}, err
	}

	rec, err := h.Get(ctx, store, k)
	if err != nil {
		return Record{}, fmt.Errorf("failed to get from %s: %w", store, err)
	}
	return rec, nil
}

// GetAll returns every record of store in key order.
func (r *Records) GetAll(ctx context.Context, store string) ([]Record, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return nil, err
	}

	records, err := h.GetAll(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", store, err)
	}
	return records, nil
}

// GetAllByIndex returns the records of store whose index value equals value.
// An undeclared index is reported as [ErrIndexNotFound].
func (r *Records) GetAllByIndex(ctx context.Context, store, index string, value any) ([]Record, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return nil, err
	}

	records, err := h.GetAllByIndex(ctx, store, index, value)
	if err != nil {
		if errors.Is(err, ErrIndexNotFound) {
			logger.FromContext(ctx).Warn().
				Str("func", "Records.GetAllByIndex").
				Str("store", store).
				Str("index", index).
				Msg("index is not declared")
		}
		return nil, fmt.Errorf("failed to query %s by %s: %w", store, index, err)
	}
	return records, nil
}

// Delete removes the record with key. Deleting an absent key succeeds.
func (r *Records) Delete(ctx context.Context, store string, key any) error {
	k, err := KeyOf(key)
	if err != nil {
		return err
	}

	h, err := r.handle(ctx)
	if err != nil {
		return err
	}

	if err = h.Delete(ctx, store, k); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", store, err)
	}
	return nil
}

// Clear empties store.
func (r *Records) Clear(ctx context.Context, store string) error {
	h, err := r.handle(ctx)
	if err != nil {
		return err
	}

	if err = h.Clear(ctx, store); err != nil {
		return fmt.Errorf("failed to clear %s: %w", store, err)
	}

	logger.FromContext(ctx).Debug().
		Str("func", "Records.Clear").
		Str("store", store).
		Msg("store cleared")
	return nil
}

// Count returns the number of records in store.
func (r *Records) Count(ctx context.Context, store string) (int, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return 0, err
	}

	n, err := h.Count(ctx, store)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", store, err)
	}
	return n, nil
}

// GetValue reads one record and decodes it into T.
func GetValue[T any](ctx context.Context, r *Records, store string, key any) (T, error) {
	var v T

	rec, err := r.Get(ctx, store, key)
	if err != nil {
		return v, err
	}

	err = rec.Decode(&v)
	return v, err
}

// GetAllValues reads every record of store and decodes each into T.
func GetAllValues[T any](ctx context.Context, r *Records, store string) ([]T, error) {
	records, err := r.GetAll(ctx, store)
	if err != nil {
		return nil, err
	}

	values := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err = rec.Decode(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
