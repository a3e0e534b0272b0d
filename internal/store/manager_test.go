package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-spirit-connect/internal/logger"
)

// countingOpener wraps an Opener and counts its invocations; the first
// failures calls fail.
func countingOpener(inner Opener, failures int32, calls *atomic.Int32) Opener {
	return func(ctx context.Context, schema Schema) (Handle, error) {
		n := calls.Add(1)
		if n <= failures {
			return nil, errors.New("disk unavailable")
		}
		return inner(ctx, schema)
	}
}

func TestManager_OpenIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(DefaultSchema(), countingOpener(MemoryOpener(""), 0, &calls), logger.Nop())

	h1, err := m.Open(context.Background())
	require.NoError(t, err)
	h2, err := m.Open(context.Background())
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 3, h1.Version())
	assert.Equal(t, DatabaseName, h1.Name())
}

// TestManager_ConcurrentFirstOpen verifies that callers racing on the first
// open share one underlying open.
func TestManager_ConcurrentFirstOpen(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(DefaultSchema(), countingOpener(MemoryOpener(""), 0, &calls), logger.Nop())

	const callers = 16
	handles := make([]Handle, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := m.Open(context.Background())
			assert.NoError(t, err)
			handles[i] = h
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
}

// TestManager_FailedOpenIsRetried verifies a failed open is reported as
// ErrStoreOpen and not cached.
func TestManager_FailedOpenIsRetried(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(DefaultSchema(), countingOpener(MemoryOpener(""), 1, &calls), logger.Nop())

	_, err := m.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreOpen)

	h, err := m.Open(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, int32(2), calls.Load())
}

func TestManager_CloseAllowsReopen(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(DefaultSchema(), countingOpener(MemoryOpener(""), 0, &calls), logger.Nop())

	require.NoError(t, m.Close())

	_, err := m.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Close())
	_, err = m.Open(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

// TestRecords_OpenFailurePropagates verifies that accessor calls surface the
// open failure instead of falling back to memory.
func TestRecords_OpenFailurePropagates(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(DefaultSchema(), countingOpener(MemoryOpener(""), 100, &calls), logger.Nop())
	r := NewRecords(m, logger.Nop())

	_, err := r.GetAll(context.Background(), StoreGuidelines)
	assert.ErrorIs(t, err, ErrStoreOpen)
}
