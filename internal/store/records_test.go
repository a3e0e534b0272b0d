package store

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-spirit-connect/internal/config"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
)

type backend struct {
	name   string
	opener func(t *testing.T) Opener
}

func backends() []backend {
	return []backend{
		{
			name: "sqlite",
			opener: func(t *testing.T) Opener {
				dsn := filepath.Join(t.TempDir(), "offline.db")
				return SQLiteOpener(config.ClientDB{DSN: dsn}, logger.Nop())
			},
		},
		{
			name: "memory",
			opener: func(t *testing.T) Opener {
				return MemoryOpener("")
			},
		},
		{
			name: "memory-file",
			opener: func(t *testing.T) Opener {
				return MemoryOpener(filepath.Join(t.TempDir(), "offline.json"))
			},
		},
	}
}

func newTestRecords(t *testing.T, b backend) *Records {
	t.Helper()
	m := NewManager(DefaultSchema(), b.opener(t), logger.Nop())
	t.Cleanup(func() { _ = m.Close() })
	return NewRecords(m, logger.Nop())
}

type guideline struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

type row struct {
	ID     string         `json:"id"`
	Synced int            `json:"synced"`
	Cached bool           `json:"cached,omitempty"`
	Data   map[string]any `json:"data"`
}

type queued struct {
	ID        int64  `json:"id,omitempty"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func TestRecords_PutGet(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			r := newTestRecords(t, b)

			key, err := r.Put(ctx, StoreGuidelines, guideline{ID: "g1", Title: "Fajr"})
			require.NoError(t, err)
			assert.Equal(t, StringKey("g1"), key)

			got, err := GetValue[guideline](ctx, r, StoreGuidelines, "g1")
			require.NoError(t, err)
			assert.Equal(t, guideline{ID: "g1", Title: "Fajr"}, got)
		})
	}
}

// TestRecords_PutReplacesWholeValue verifies that a second put with the same
// key overwrites the value instead of merging fields.
func TestRecords_PutReplacesWholeValue(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			r := newTestRecords(t, b)

			_, err := r.Put(ctx, StoreGuidelines, guideline{ID: "g1", Title: "old", Body: "text"})
			require.NoError(t, err)
			_, err = r.Put(ctx, StoreGuidelines, guideline{ID: "g1", Title: "new"})
			require.NoError(t, err)

			got, err := GetValue[guideline](ctx, r, StoreGuidelines, "g1")
			require.NoError(t, err)
			assert.Equal(t, guideline{ID: "g1", Title: "new"}, got)

			n, err := r.Count(ctx, StoreGuidelines)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestRecords_GetMissing(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			r := newTestRecords(t, b)

			_, err := r.Get(context.Background(), StoreGuidelines, "absent")
			assert.ErrorIs(t, err, ErrRecordNotFound)
		})
	}
}

func TestRecords_UnknownStore(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			r := newTestRecords(t, b)

			_, err := r.Put(ctx, "reminders", guideline{ID: "x"})
			assert.ErrorIs(t, err, ErrStoreNotFound)

			_, err = r.GetAll(ctx, "reminders")
			assert.ErrorIs(t, err, ErrStoreNotFound)
		})
	}
}

func TestRecords_MissingKey(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			_, err := newTestRecords(t, b).Put(context.Background(), StoreGuidelines, guideline{Title: "no id"})
			assert.ErrorIs(t, err, ErrMissingKey)
		})
	}
}

// TestRecords_AutoIncrement verifies generated keys, their injection into the
// stored value and the generator moving past explicit keys.
func TestRecords_AutoIncrement(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			r := newTestRecords(t, b)

			k1, err := r.Put(ctx, StoreSyncQueue, queued{Type: "journal", Timestamp: 1})
			require.NoError(t, err)
			k2, err := r.Put(ctx, StoreSyncQueue, queued{Type: "prayer", Timestamp: 2})
			require.NoError(t, err)
			assert.Equal(t, IntKey(1), k1)
			assert.Equal(t, IntKey(2), k2)

			_, err = r.Put(ctx, StoreSyncQueue, queued{ID: 10, Type: "journal", Timestamp: 3})
			require.NoError(t, err)
			k4, err := r.Put(ctx, StoreSyncQueue, queued{Type: "journal", Timestamp: 4})
			require.NoError(t, err)
			assert.Equal(t, IntKey(11), k4)

			items, err := GetAllValues[queued](ctx, r, StoreSyncQueue)
			require.NoError(t, err)
			require.Len(t, items, 4)
			assert.Equal(t, []int64{1, 2, 10, 11}, []int64{items[0].ID, items[1].ID, items[2].ID, items[3].ID})
		})
	}
}

func TestRecords_GetAllByIndex(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			r := newTestRecords(t, b)

			for _, v := range []row{
				{ID: "b", Synced: 0, Data: map[string]any{"created_at": "2024-01-02"}},
				{ID: "a", Synced: 0, Data: map[string]any{"created_at": "2024-01-01"}},
				{ID: "c", Synced: 1, Data: map[string]any{"created_at": "2024-01-01"}},
			} {
				_, err := r.Put(ctx, StoreJournalEntries, v)
				require.NoError(t, err)
			}

			pending, err := r.GetAllByIndex(ctx, StoreJournalEntries, IndexSynced, 0)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, StringKey("a"), pending[0].Key)
			assert.Equal(t, StringKey("b"), pending[1].Key)

			byDate, err := r.GetAllByIndex(ctx, StoreJournalEntries, IndexCreatedAt, "2024-01-01")
			require.NoError(t, err)
			assert.Len(t, byDate, 2)

			none, err := r.GetAllByIndex(ctx, StoreJournalEntries, IndexSynced, "0")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestRecords_IndexNotFound(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			_, err := newTestRecords(t, b).GetAllByIndex(context.Background(), StoreGuidelines, IndexSynced, 0)
			assert.ErrorIs(t, err, ErrIndexNotFound)
		})
	}
}

func TestRecords_DeleteClearCount(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			r := newTestRecords(t, b)

			for _, id := range []string{"g1", "g2", "g3"} {
				_, err := r.Put(ctx, StoreGuidelines, guideline{ID: id})
				require.NoError(t, err)
			}

			require.NoError(t, r.Delete(ctx, StoreGuidelines, "g2"))
			require.NoError(t, r.Delete(ctx, StoreGuidelines, "never-existed"))

			n, err := r.Count(ctx, StoreGuidelines)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			require.NoError(t, r.Clear(ctx, StoreGuidelines))
			all, err := r.GetAll(ctx, StoreGuidelines)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

// TestRecords_KeyOrdering verifies integer keys sort numerically and before
// string keys.
func TestRecords_KeyOrdering(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			r := newTestRecords(t, b)

			for _, id := range []any{"b", 10, "a", 2} {
				_, err := r.Put(ctx, StoreProfiles, map[string]any{"id": id})
				require.NoError(t, err)
			}

			all, err := r.GetAll(ctx, StoreProfiles)
			require.NoError(t, err)
			require.Len(t, all, 4)
			assert.Equal(t, []Key{IntKey(2), IntKey(10), StringKey("a"), StringKey("b")},
				[]Key{all[0].Key, all[1].Key, all[2].Key, all[3].Key})
		})
	}
}

// TestRecords_SurvivesReopen verifies a committed write is visible after the
// database is closed and opened again.
func TestRecords_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "offline.db")
	opener := SQLiteOpener(config.ClientDB{DSN: dsn}, logger.Nop())

	m := NewManager(DefaultSchema(), opener, logger.Nop())
	_, err := NewRecords(m, logger.Nop()).Put(ctx, StoreJournalEntries, row{ID: "offline_1", Data: map[string]any{}})
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened := NewManager(DefaultSchema(), opener, logger.Nop())
	defer reopened.Close()

	_, err = NewRecords(reopened, logger.Nop()).Get(ctx, StoreJournalEntries, "offline_1")
	assert.NoError(t, err)
}

// TestRecords_AtomicallySerializesReadModifyWrite verifies that concurrent
// read-then-write cycles inside Atomically never lose an update.
func TestRecords_AtomicallySerializesReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	r := newTestRecords(t, backends()[1])

	_, err := r.Put(ctx, StoreGuidelines, guideline{ID: "counter", Title: "0"})
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Atomically(func() error {
				g, err := GetValue[guideline](ctx, r, StoreGuidelines, "counter")
				if err != nil {
					return err
				}
				n, _ := strconv.Atoi(g.Title)
				g.Title = strconv.Itoa(n + 1)
				_, err = r.Put(ctx, StoreGuidelines, g)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := GetValue[guideline](ctx, r, StoreGuidelines, "counter")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(writers), got.Title)
}

func TestRecords_AtomicallyReturnsFnError(t *testing.T) {
	r := newTestRecords(t, backends()[1])
	assert.ErrorIs(t, r.Atomically(func() error { return assert.AnError }), assert.AnError)
}
