package models

// Keyed is implemented by every payload kept in a local store. RecordKey
// returns the value of the store key path, or "" when the payload has not
// been assigned an id yet.
type Keyed interface {
	RecordKey() string
}
