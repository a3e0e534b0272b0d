package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Document is the structured value kept in a store. Numbers decode as
// json.Number.
type Document map[string]any

func decodeDocument(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrInvalidValue
	}
	return Document(m), nil
}

// toDocument encodes an arbitrary Go value and decodes it back as a Document.
func toDocument(value any) (Document, error) {
	switch v := value.(type) {
	case Document:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		return decodeDocument(raw)
	case json.RawMessage:
		return decodeDocument(v)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return decodeDocument(raw)
}

// Lookup resolves a dotted key path ("payload.date").
func (d Document) Lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (d Document) set(path string, v any) {
	parts := strings.Split(path, ".")
	cur := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

// indexValue normalizes a value found at an index key path into a
// comparable form: int64, float64 or string. Booleans index as 1 and 0.
// Objects, arrays and null are not indexed.
func indexValue(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case bool:
		if x {
			return int64(1), true
		}
		return int64(0), true
	case string:
		return x, true
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x), true
		}
		return x, true
	case float32:
		return indexValue(float64(x))
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint32:
		return int64(x), true
	case Key:
		return x.Value(), true
	default:
		return nil, false
	}
}
