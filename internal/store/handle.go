package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handle is an opened database. It is the seam between the record accessor
// and a concrete backend: the SQLite file database in production and the
// in-memory database in tests.
type Handle interface {
	// Name returns the database name.
	Name() string
	// Version returns the schema version the database was upgraded to.
	Version() int
	// Schema returns the schema the handle was opened with.
	Schema() Schema

	// Put inserts or fully replaces a record and returns its key.
	Put(ctx context.Context, store string, value any) (Key, error)
	// Get returns the record with key or ErrRecordNotFound.
	Get(ctx context.Context, store string, key Key) (Record, error)
	// GetAll returns every record of the store in key order.
	GetAll(ctx context.Context, store string) ([]Record, error)
	// GetAllByIndex returns the records whose index key path equals value,
	// in key order.
	GetAllByIndex(ctx context.Context, store, index string, value any) ([]Record, error)
	// Delete removes the record with key; absent keys are not an error.
	Delete(ctx context.Context, store string, key Key) error
	// Clear removes every record of the store.
	Clear(ctx context.Context, store string) error
	// Count returns the number of records in the store.
	Count(ctx context.Context, store string) (int, error)

	// Close releases the underlying resources.
	Close() error
}

// Opener opens (creating or upgrading as needed) a database for schema.
type Opener func(ctx context.Context, schema Schema) (Handle, error)

// Record is one stored value together with its key.
type Record struct {
	Key   Key
	Value json.RawMessage
}

// Decode unmarshals the stored value into dst.
func (r Record) Decode(dst any) error {
	if err := json.Unmarshal(r.Value, dst); err != nil {
		return fmt.Errorf("failed to decode record %s: %w", r.Key, err)
	}
	return nil
}

// Document decodes the stored value as a Document.
func (r Record) Document() (Document, error) {
	return decodeDocument(r.Value)
}

// preparedRecord is a value ready to be written: its key, canonical JSON
// and decoded document.
type preparedRecord struct {
	key Key
	raw []byte
	doc Document
	// generated is true when the key was assigned by the store.
	generated bool
}

// prepareRecord extracts or generates the key of value. nextKey is called
// only when the store auto-increments and the value has no key.
func prepareRecord(spec StoreSpec, value any, nextKey func() (int64, error)) (preparedRecord, error) {
	doc, err := toDocument(value)
	if err != nil {
		return preparedRecord{}, err
	}

	rec := preparedRecord{doc: doc}

	raw, found := doc.Lookup(spec.KeyPath)
	if found && raw != nil && raw != "" {
		rec.key, err = KeyOf(raw)
		if err != nil {
			return preparedRecord{}, err
		}
	} else {
		if !spec.AutoIncrement {
			return preparedRecord{}, fmt.Errorf("%w: %s", ErrMissingKey, spec.KeyPath)
		}
		n, err := nextKey()
		if err != nil {
			return preparedRecord{}, err
		}
		rec.key = IntKey(n)
		rec.generated = true
		doc.set(spec.KeyPath, n)
	}

	rec.raw, err = json.Marshal(doc)
	if err != nil {
		return preparedRecord{}, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	return rec, nil
}
