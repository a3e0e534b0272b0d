package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// memoryHandle keeps every store in process memory. When path is set the
// whole state is written to a JSON file after each mutation and read back on
// open, which gives tests and single-process tools a durable backend without
// SQLite.
type memoryHandle struct {
	path     string
	inMemory bool
	schema   Schema

	mu      sync.RWMutex
	closed  bool
	version int
	stores  map[string]*memoryStore
}

type memoryStore struct {
	KeyPath       string                     `json:"key_path"`
	AutoIncrement bool                       `json:"auto_increment"`
	Indexes       []IndexSpec                `json:"indexes"`
	NextKey       int64                      `json:"next_key"`
	Records       map[string]json.RawMessage `json:"records"`
}

type memoryPersistedState struct {
	Version int                     `json:"version"`
	Stores  map[string]*memoryStore `json:"stores"`
}

// MemoryOpener returns an [Opener] for the in-memory backend. An empty path
// or ":memory:" keeps nothing on disk; any other path is a JSON snapshot file.
func MemoryOpener(path string) Opener {
	return func(ctx context.Context, schema Schema) (Handle, error) {
		return newMemoryHandle(path, schema)
	}
}

func newMemoryHandle(path string, schema Schema) (*memoryHandle, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	h := &memoryHandle{
		path:     path,
		inMemory: path == "" || path == ":memory:" || path == "memory",
		schema:   schema,
		stores:   make(map[string]*memoryStore),
	}

	if err := h.load(); err != nil {
		return nil, err
	}

	if h.version > schema.Version {
		return nil, fmt.Errorf("%w: stored %d, requested %d", ErrVersionDowngrade, h.version, schema.Version)
	}

	for _, step := range schema.plan(h.version) {
		h.applyStep(step)
		h.version = step.version
	}
	for _, spec := range schema.Stores {
		h.createStore(spec, spec.indexesAt(schema.Version))
	}

	if err := h.persist(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *memoryHandle) applyStep(step upgradeStep) {
	for _, spec := range step.recreate {
		delete(h.stores, spec.Name)
		h.createStore(spec, spec.indexesAt(step.version))
	}
	for _, spec := range step.create {
		h.createStore(spec, spec.indexesAt(step.version))
	}
	for name, indexes := range step.addIndexes {
		st, ok := h.stores[name]
		if !ok {
			continue
		}
		for _, idx := range indexes {
			if !hasIndex(st.Indexes, idx.Name) {
				st.Indexes = append(st.Indexes, idx)
			}
		}
	}
}

func (h *memoryHandle) createStore(spec StoreSpec, indexes []IndexSpec) {
	st, ok := h.stores[spec.Name]
	if !ok {
		h.stores[spec.Name] = &memoryStore{
			KeyPath:       spec.KeyPath,
			AutoIncrement: spec.AutoIncrement,
			Indexes:       append([]IndexSpec(nil), indexes...),
			NextKey:       1,
			Records:       make(map[string]json.RawMessage),
		}
		return
	}
	for _, idx := range indexes {
		if !hasIndex(st.Indexes, idx.Name) {
			st.Indexes = append(st.Indexes, idx)
		}
	}
}

func hasIndex(indexes []IndexSpec, name string) bool {
	for _, idx := range indexes {
		if idx.Name == name {
			return true
		}
	}
	return false
}

func (h *memoryHandle) load() error {
	if h.inMemory {
		return nil
	}

	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read local storage file: %w", err)
	}

	var st memoryPersistedState
	if err = json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode local storage file: %w", err)
	}

	for _, s := range st.Stores {
		if s.Records == nil {
			s.Records = make(map[string]json.RawMessage)
		}
		if s.NextKey <= 0 {
			s.NextKey = 1
		}
	}
	if st.Stores != nil {
		h.stores = st.Stores
	}
	h.version = st.Version

	return nil
}

func (h *memoryHandle) persist() error {
	if h.inMemory {
		return nil
	}

	dir := filepath.Dir(h.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create local storage dir: %w", err)
		}
	}

	payload, err := json.Marshal(memoryPersistedState{Version: h.version, Stores: h.stores})
	if err != nil {
		return fmt.Errorf("encode local storage: %w", err)
	}

	tmp := h.path + ".tmp"
	if err = os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write local storage file: %w", err)
	}
	if err = os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("replace local storage file: %w", err)
	}

	return nil
}

func (h *memoryHandle) Name() string   { return h.schema.Name }
func (h *memoryHandle) Schema() Schema { return h.schema }

func (h *memoryHandle) Version() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.version
}

// lookup must be called with h.mu held.
func (h *memoryHandle) lookup(name string) (*memoryStore, error) {
	if h.closed {
		return nil, ErrHandleClosed
	}
	st, ok := h.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, name)
	}
	return st, nil
}

func (h *memoryHandle) Put(ctx context.Context, store string, value any) (Key, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, err := h.lookup(store)
	if err != nil {
		return Key{}, err
	}

	prevNext := st.NextKey
	spec := StoreSpec{Name: store, KeyPath: st.KeyPath, AutoIncrement: st.AutoIncrement}
	rec, err := prepareRecord(spec, value, func() (int64, error) {
		n := st.NextKey
		st.NextKey++
		return n, nil
	})
	if err != nil {
		return Key{}, err
	}

	if st.AutoIncrement && rec.key.IsNumber() && !rec.generated && rec.key.Int() >= st.NextKey {
		st.NextKey = rec.key.Int() + 1
	}

	encoded := rec.key.encode()
	if err = st.checkUnique(encoded, rec.doc); err != nil {
		st.NextKey = prevNext
		return Key{}, err
	}

	prev, existed := st.Records[encoded]
	st.Records[encoded] = rec.raw

	if err = h.persist(); err != nil {
		if existed {
			st.Records[encoded] = prev
		} else {
			delete(st.Records, encoded)
		}
		st.NextKey = prevNext
		return Key{}, err
	}

	return rec.key, nil
}

func (st *memoryStore) checkUnique(encoded string, doc Document) error {
	for _, idx := range st.Indexes {
		if !idx.Unique {
			continue
		}
		raw, _ := doc.Lookup(idx.KeyPath)
		want, ok := indexValue(raw)
		if !ok {
			continue
		}
		for k, value := range st.Records {
			if k == encoded {
				continue
			}
			other, err := decodeDocument(value)
			if err != nil {
				continue
			}
			raw, _ := other.Lookup(idx.KeyPath)
			if got, ok := indexValue(raw); ok && got == want {
				return fmt.Errorf("%w: %s", ErrConstraint, idx.Name)
			}
		}
	}
	return nil
}

func (h *memoryHandle) Get(ctx context.Context, store string, key Key) (Record, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st, err := h.lookup(store)
	if err != nil {
		return Record{}, err
	}

	value, ok := st.Records[key.encode()]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, store, key)
	}

	return Record{Key: key, Value: cloneRaw(value)}, nil
}

func (h *memoryHandle) GetAll(ctx context.Context, store string) ([]Record, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st, err := h.lookup(store)
	if err != nil {
		return nil, err
	}

	return st.sorted(func(Document) bool { return true })
}

func (h *memoryHandle) GetAllByIndex(ctx context.Context, store, index string, value any) ([]Record, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st, err := h.lookup(store)
	if err != nil {
		return nil, err
	}

	var keyPath string
	for _, idx := range st.Indexes {
		if idx.Name == index {
			keyPath = idx.KeyPath
		}
	}
	if keyPath == "" {
		return nil, fmt.Errorf("%w: %s.%s", ErrIndexNotFound, store, index)
	}

	want, ok := indexValue(value)
	if !ok {
		return []Record{}, nil
	}

	return st.sorted(func(doc Document) bool {
		raw, _ := doc.Lookup(keyPath)
		got, ok := indexValue(raw)
		return ok && got == want
	})
}

func (st *memoryStore) sorted(match func(Document) bool) ([]Record, error) {
	records := make([]Record, 0, len(st.Records))
	for encoded, value := range st.Records {
		doc, err := decodeDocument(value)
		if err != nil {
			return nil, err
		}
		if !match(doc) {
			continue
		}
		key, err := decodeKey(encoded)
		if err != nil {
			return nil, err
		}
		records = append(records, Record{Key: key, Value: cloneRaw(value)})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Key.Less(records[j].Key) })
	return records, nil
}

func (h *memoryHandle) Delete(ctx context.Context, store string, key Key) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, err := h.lookup(store)
	if err != nil {
		return err
	}

	encoded := key.encode()
	prev, existed := st.Records[encoded]
	if !existed {
		return nil
	}
	delete(st.Records, encoded)

	if err = h.persist(); err != nil {
		st.Records[encoded] = prev
		return err
	}
	return nil
}

func (h *memoryHandle) Clear(ctx context.Context, store string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, err := h.lookup(store)
	if err != nil {
		return err
	}

	prev := st.Records
	st.Records = make(map[string]json.RawMessage)

	if err = h.persist(); err != nil {
		st.Records = prev
		return err
	}
	return nil
}

func (h *memoryHandle) Count(ctx context.Context, store string) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st, err := h.lookup(store)
	if err != nil {
		return 0, err
	}
	return len(st.Records), nil
}

func (h *memoryHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	return nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), raw...)
}
