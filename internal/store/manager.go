package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/MKhiriev/go-spirit-connect/internal/logger"
)

// Manager opens the application database once and hands the same [Handle]
// to every caller. Concurrent callers during the first open wait for it; a
// failed open is not remembered, so the next call tries again.
type Manager struct {
	schema Schema
	opener Opener
	logger *logger.Logger

	mu     sync.Mutex
	handle Handle
}

// NewManager constructs a Manager. Nothing is opened until the first call to
// [Manager.Open].
func NewManager(schema Schema, opener Opener, log *logger.Logger) *Manager {
	return &Manager{
		schema: schema,
		opener: opener,
		logger: log,
	}
}

// Open returns the cached handle or opens the database, creating and
// upgrading its stores as needed. Errors wrap [ErrStoreOpen].
func (m *Manager) Open(ctx context.Context) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		return m.handle, nil
	}

	h, err := m.opener(ctx, m.schema)
	if err != nil {
		m.logger.Err(err).
			Str("func", "Manager.Open").
			Str("db", m.schema.Name).
			Int("version", m.schema.Version).
			Msg("failed to open local store")
		return nil, fmt.Errorf("%w: %w", ErrStoreOpen, err)
	}

	m.logger.Info().
		Str("func", "Manager.Open").
		Str("db", h.Name()).
		Int("version", h.Version()).
		Msg("local store opened")

	m.handle = h
	return h, nil
}

// Schema returns the declared schema.
func (m *Manager) Schema() Schema {
	return m.schema
}

// Close closes the cached handle, if any. A later Open reopens the database.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return nil
	}

	err := m.handle.Close()
	m.handle = nil
	return err
}
