package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Key identifies a record inside a store. Keys are strings or integers;
// integer keys sort before string keys.
type Key struct {
	str   string
	num   int64
	isNum bool
}

// IntKey returns an integer key.
func IntKey(n int64) Key {
	return Key{num: n, isNum: true}
}

// StringKey returns a string key.
func StringKey(s string) Key {
	return Key{str: s}
}

// KeyOf converts a Go value into a Key. Strings, signed and unsigned
// integers, integral floats and json.Number are accepted.
func KeyOf(v any) (Key, error) {
	switch k := v.(type) {
	case Key:
		return k, nil
	case string:
		return StringKey(k), nil
	case int:
		return IntKey(int64(k)), nil
	case int32:
		return IntKey(int64(k)), nil
	case int64:
		return IntKey(k), nil
	case uint32:
		return IntKey(int64(k)), nil
	case uint64:
		if k > math.MaxInt64 {
			return Key{}, fmt.Errorf("%w: %d overflows int64", ErrInvalidKey, k)
		}
		return IntKey(int64(k)), nil
	case float64:
		if k != math.Trunc(k) || math.IsInf(k, 0) {
			return Key{}, fmt.Errorf("%w: %v is not integral", ErrInvalidKey, k)
		}
		return IntKey(int64(k)), nil
	case json.Number:
		n, err := k.Int64()
		if err != nil {
			return Key{}, fmt.Errorf("%w: %s", ErrInvalidKey, k)
		}
		return IntKey(n), nil
	default:
		return Key{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidKey, v)
	}
}

// IsNumber reports whether k is an integer key.
func (k Key) IsNumber() bool { return k.isNum }

// Int returns the integer value of k; zero for string keys.
func (k Key) Int() int64 { return k.num }

// Value returns k as int64 or string.
func (k Key) Value() any {
	if k.isNum {
		return k.num
	}
	return k.str
}

func (k Key) String() string {
	if k.isNum {
		return strconv.FormatInt(k.num, 10)
	}
	return k.str
}

// Less orders integer keys numerically before string keys, and string keys
// lexically.
func (k Key) Less(o Key) bool {
	switch {
	case k.isNum && o.isNum:
		return k.num < o.num
	case k.isNum != o.isNum:
		return k.isNum
	default:
		return k.str < o.str
	}
}

// encode returns the persisted form of k: its JSON text, so 5 and "5" stay
// distinct.
func (k Key) encode() string {
	if k.isNum {
		return strconv.FormatInt(k.num, 10)
	}
	b, _ := json.Marshal(k.str)
	return string(b)
}

func decodeKey(s string) (Key, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return KeyOf(v)
}

// MarshalJSON encodes k as a JSON number or string.
func (k Key) MarshalJSON() ([]byte, error) {
	return []byte(k.encode()), nil
}
