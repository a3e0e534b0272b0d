package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Values of the synced flag as stored on disk.
const (
	SyncPending = 0
	SyncDone    = 1
)

// ErrInvalidRow is returned by [DecodeRow] for an envelope that matches no
// row kind.
var ErrInvalidRow = errors.New("invalid stored row")

// StoredRow is the on-disk envelope of every row of a domain store. Times are
// milliseconds since the Unix epoch; a zero value means "not set".
//
// The flags overlap by nature of the storage format; code outside this
// package works with the [Row] variants returned by [DecodeRow].
type StoredRow struct {
	ID            string          `json:"id"`
	Cached        bool            `json:"cached"`
	Synced        int             `json:"synced"`
	CachedAt      int64           `json:"cachedAt,omitempty"`
	CreatedAt     int64           `json:"createdAt,omitempty"`
	SyncedAt      int64           `json:"syncedAt,omitempty"`
	Attempts      int             `json:"attempts,omitempty"`
	NextAttemptAt int64           `json:"nextAttemptAt,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
	DeadLetter    bool            `json:"deadLetter,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// Row is one decoded row of a domain store. It is exactly one of
// [CachedRow], [PendingRow], [SyncedRow] or [DeadLetterRow].
type Row interface {
	// Key is the primary key of the row.
	Key() string
	// Payload is the domain object as JSON.
	Payload() json.RawMessage
	// Envelope converts the row back to its on-disk form.
	Envelope() StoredRow

	row()
}

// CachedRow is a copy of a server-side object. It is never uploaded.
type CachedRow struct {
	ID       string
	Data     json.RawMessage
	CachedAt time.Time
}

// PendingRow is a locally created object waiting for upload.
type PendingRow struct {
	LocalID       string
	Data          json.RawMessage
	CreatedAt     time.Time
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
}

// SyncedRow is a locally created object the server has accepted. It stays on
// disk until the cleanup sweep removes it.
type SyncedRow struct {
	LocalID   string
	Data      json.RawMessage
	CreatedAt time.Time
	SyncedAt  time.Time
}

// DeadLetterRow is a pending row that ran out of upload attempts. It is kept
// until requeued.
type DeadLetterRow struct {
	LocalID   string
	Data      json.RawMessage
	CreatedAt time.Time
	Attempts  int
	LastError string
}

func (CachedRow) row()     {}
func (PendingRow) row()    {}
func (SyncedRow) row()     {}
func (DeadLetterRow) row() {}

func (r CachedRow) Key() string     { return r.ID }
func (r PendingRow) Key() string    { return r.LocalID }
func (r SyncedRow) Key() string     { return r.LocalID }
func (r DeadLetterRow) Key() string { return r.LocalID }

func (r CachedRow) Payload() json.RawMessage     { return r.Data }
func (r PendingRow) Payload() json.RawMessage    { return r.Data }
func (r SyncedRow) Payload() json.RawMessage     { return r.Data }
func (r DeadLetterRow) Payload() json.RawMessage { return r.Data }

// Envelope stores a cached row as already synced so neither the upload nor
// the cleanup path ever selects it.
func (r CachedRow) Envelope() StoredRow {
	return StoredRow{
		ID:       r.ID,
		Cached:   true,
		Synced:   SyncDone,
		CachedAt: ToMillis(r.CachedAt),
		Data:     r.Data,
	}
}

func (r PendingRow) Envelope() StoredRow {
	return StoredRow{
		ID:            r.LocalID,
		Synced:        SyncPending,
		CreatedAt:     ToMillis(r.CreatedAt),
		Attempts:      r.Attempts,
		NextAttemptAt: ToMillis(r.NextAttemptAt),
		LastError:     r.LastError,
		Data:          r.Data,
	}
}

func (r SyncedRow) Envelope() StoredRow {
	return StoredRow{
		ID:        r.LocalID,
		Synced:    SyncDone,
		CreatedAt: ToMillis(r.CreatedAt),
		SyncedAt:  ToMillis(r.SyncedAt),
		Data:      r.Data,
	}
}

func (r DeadLetterRow) Envelope() StoredRow {
	return StoredRow{
		ID:         r.LocalID,
		Synced:     SyncPending,
		CreatedAt:  ToMillis(r.CreatedAt),
		Attempts:   r.Attempts,
		LastError:  r.LastError,
		DeadLetter: true,
		Data:       r.Data,
	}
}

// Synced returns the row after the server accepted it.
func (r PendingRow) Synced(at time.Time) SyncedRow {
	return SyncedRow{
		LocalID:   r.LocalID,
		Data:      r.Data,
		CreatedAt: r.CreatedAt,
		SyncedAt:  at,
	}
}

// Due reports whether the row may be uploaded at now.
func (r PendingRow) Due(now time.Time) bool {
	return r.NextAttemptAt.IsZero() || !now.Before(r.NextAttemptAt)
}

// Requeue returns the dead letter as a fresh pending row.
func (r DeadLetterRow) Requeue() PendingRow {
	return PendingRow{
		LocalID:   r.LocalID,
		Data:      r.Data,
		CreatedAt: r.CreatedAt,
	}
}

// DecodeRow maps an envelope onto its row kind. The cached flag wins over
// the synced flag: a server copy is never treated as a local write.
func DecodeRow(s StoredRow) (Row, error) {
	if s.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidRow)
	}

	switch {
	case s.Cached:
		return CachedRow{ID: s.ID, Data: s.Data, CachedAt: FromMillis(s.CachedAt)}, nil
	case s.Synced == SyncDone:
		return SyncedRow{
			LocalID:   s.ID,
			Data:      s.Data,
			CreatedAt: FromMillis(s.CreatedAt),
			SyncedAt:  FromMillis(s.SyncedAt),
		}, nil
	case s.Synced != SyncPending:
		return nil, fmt.Errorf("%w: synced flag %d", ErrInvalidRow, s.Synced)
	case s.DeadLetter:
		return DeadLetterRow{
			LocalID:   s.ID,
			Data:      s.Data,
			CreatedAt: FromMillis(s.CreatedAt),
			Attempts:  s.Attempts,
			LastError: s.LastError,
		}, nil
	default:
		return PendingRow{
			LocalID:       s.ID,
			Data:          s.Data,
			CreatedAt:     FromMillis(s.CreatedAt),
			Attempts:      s.Attempts,
			NextAttemptAt: FromMillis(s.NextAttemptAt),
			LastError:     s.LastError,
		}, nil
	}
}

// ToMillis converts t to milliseconds since the epoch; the zero time maps to 0.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis is the inverse of [ToMillis]. Times come back in UTC.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
