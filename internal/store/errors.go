package store

import "errors"

// Sentinel errors returned by the store manager, the handles and the record
// accessor. Callers should use [errors.Is] to match against these values.
var (
	// ErrStoreOpen wraps every failure to open or upgrade the local database.
	// A failed open is not cached; the next call retries.
	ErrStoreOpen = errors.New("failed to open local store")

	// ErrStoreNotFound is returned when an operation names a store that is
	// not part of the opened schema.
	ErrStoreNotFound = errors.New("store not found")

	// ErrIndexNotFound is returned by index queries when the store exists but
	// does not declare the requested index.
	ErrIndexNotFound = errors.New("index not found")

	// ErrRecordNotFound is returned by Get when no record has the given key.
	ErrRecordNotFound = errors.New("record not found")

	// ErrMissingKey is returned by Put when the value has no key at the
	// store's key path and the store does not generate keys.
	ErrMissingKey = errors.New("value has no key at the store key path")

	// ErrInvalidKey is returned when a key is neither a string nor an integer.
	ErrInvalidKey = errors.New("invalid record key")

	// ErrInvalidValue is returned by Put when the value does not encode to a
	// JSON object.
	ErrInvalidValue = errors.New("record value must be an object")

	// ErrConstraint is returned when a write violates a unique index.
	ErrConstraint = errors.New("unique index constraint violated")

	// ErrVersionDowngrade is returned when the database on disk was written by
	// a newer schema version than the one being opened.
	ErrVersionDowngrade = errors.New("stored schema version is newer than requested")

	// ErrInvalidSchema is returned when a schema declaration is inconsistent.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrHandleClosed is returned by operations on a closed handle.
	ErrHandleClosed = errors.New("store handle is closed")
)

// Low-level database operation errors, wrapped around driver errors by the
// SQLite handle.
var (
	// ErrBuildingSQLQuery is returned when constructing a SQL query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a query fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the driver cannot start a
	// transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing a transaction fails.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrScanningRows is returned when scanning result rows fails.
	ErrScanningRows = errors.New("failed to scan record rows")
)
