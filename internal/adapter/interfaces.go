// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides transport-layer abstractions for communicating with
// the Spirit Connect backend.
//
// The primary abstraction is [ServerAdapter], which decouples the sync engine
// from the underlying protocol. The package ships an HTTP/REST implementation
// ([NewHTTPServerAdapter]) built on resty.
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic error
// handling (e.g. [ErrConflict] for 409, [ErrUnauthorized] for 401).
package adapter

import (
	"context"
	"encoding/json"

	"github.com/MKhiriev/go-spirit-connect/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/server_adapter_mock.go -package=mock

// Backend resource names.
const (
	ResourceJournalEntries = "journal_entries"
	ResourceDailyPrayers   = "daily_prayers"
	ResourceGuidelines     = "guidelines"
	ResourceAnnouncements  = "announcements"
	ResourceProfiles       = "profiles"
	ResourcePrayerProgress = "prayer_progress"
)

// ServerAdapter defines transport-agnostic communication with the backend.
// Objects travel as raw JSON so the adapter stays independent of the domain
// types; implementations handle authentication headers and map transport
// failures to the sentinel values of this package.
type ServerAdapter interface {
	// SetToken stores the bearer token attached to every subsequent request.
	SetToken(token string)

	// Token returns the bearer token currently stored in the adapter, or an
	// empty string if no token has been set yet.
	Token() string

	// Upsert creates or replaces the object with id in resource and returns
	// the object as stored by the server. id doubles as the idempotency key:
	// repeating the call with the same id never creates a second object.
	Upsert(ctx context.Context, resource, id string, data json.RawMessage) (json.RawMessage, error)

	// Patch applies a partial update to an existing object.
	Patch(ctx context.Context, resource, id string, data json.RawMessage) (json.RawMessage, error)

	// Get fetches one object. A missing object is reported as [ErrNotFound].
	Get(ctx context.Context, resource, id string) (json.RawMessage, error)

	// List fetches the objects of resource matching every filter pair.
	List(ctx context.Context, resource string, filter map[string]string) ([]json.RawMessage, error)

	// Delete removes one object. Deleting a missing object succeeds.
	Delete(ctx context.Context, resource, id string) error

	// Replay sends a batch of queued actions. The server accepts or rejects
	// the batch as a whole.
	Replay(ctx context.Context, actions []models.SyncAction) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
