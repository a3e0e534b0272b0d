package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/models"
)

func decodeRecord(rec store.Record) (models.Row, error) {
	var env models.StoredRow
	if err := rec.Decode(&env); err != nil {
		return nil, err
	}
	return models.DecodeRow(env)
}

func getRow(ctx context.Context, records *store.Records, storeName, key string) (models.Row, error) {
	rec, err := records.Get(ctx, storeName, key)
	if err != nil {
		return nil, err
	}
	return decodeRecord(rec)
}

func putRow(ctx context.Context, records *store.Records, storeName string, row models.Row) error {
	_, err := records.Put(ctx, storeName, row.Envelope())
	return err
}

// encodePayload marshals payload and makes sure its "id" field equals id, so
// a payload read back from a row carries the row key.
func encodePayload(payload any, id string) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataProvided, err)
	}

	var fields map[string]json.RawMessage
	if err = json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrInvalidDataProvided)
	}

	idJSON, _ := json.Marshal(id)
	fields["id"] = idJSON

	return json.Marshal(fields)
}

func decodePayload[T any](row models.Row) (T, error) {
	var v T
	if err := json.Unmarshal(row.Payload(), &v); err != nil {
		return v, fmt.Errorf("failed to decode payload of %s: %w", row.Key(), err)
	}
	return v, nil
}

// samePayload reports whether a and b encode the same JSON value.
func samePayload(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}
