package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/sethvargo/go-retry"

	"github.com/MKhiriev/go-spirit-connect/internal/config"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
)

const (
	busyRetries = 3
	busyBackoff = 50 * time.Millisecond
)

// sqliteHandle keeps every store in the generic records table; the
// object_stores and store_indexes tables hold the catalog.
type sqliteHandle struct {
	*DB
	schema  Schema
	version int
	builder sq.StatementBuilderType

	mu      sync.RWMutex
	catalog map[string]StoreSpec
}

// SQLiteOpener returns an [Opener] backed by the SQLite file in cfg.DSN.
func SQLiteOpener(cfg config.ClientDB, log *logger.Logger) Opener {
	return func(ctx context.Context, schema Schema) (Handle, error) {
		db, err := NewConnectSQLite(ctx, cfg, log)
		if err != nil {
			return nil, err
		}

		if err = db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}

		h := newSQLiteHandle(db, schema)
		if err = h.upgrade(ctx); err != nil {
			db.Close()
			return nil, err
		}

		return h, nil
	}
}

func newSQLiteHandle(db *DB, schema Schema) *sqliteHandle {
	return &sqliteHandle{
		DB:      db,
		schema:  schema,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		catalog: make(map[string]StoreSpec),
	}
}

func (h *sqliteHandle) Name() string   { return h.schema.Name }
func (h *sqliteHandle) Version() int   { return h.version }
func (h *sqliteHandle) Schema() Schema { return h.schema }

func (h *sqliteHandle) store(name string) (StoreSpec, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	spec, ok := h.catalog[name]
	if !ok {
		return StoreSpec{}, fmt.Errorf("%w: %s", ErrStoreNotFound, name)
	}
	return spec, nil
}

// withRetry runs fn again while the driver reports lock contention.
func (h *sqliteHandle) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(busyRetries, retry.NewConstant(busyBackoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && h.errorClassificator.Classify(err) == Retryable {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (h *sqliteHandle) Put(ctx context.Context, store string, value any) (Key, error) {
	log := logger.FromContext(ctx)

	spec, err := h.store(store)
	if err != nil {
		return Key{}, err
	}

	var key Key
	err = h.withRetry(ctx, func(ctx context.Context) error {
		tx, err := h.DB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
		}
		defer tx.Rollback()

		rec, err := prepareRecord(spec, value, func() (int64, error) {
			return h.nextKey(ctx, tx, store)
		})
		if err != nil {
			return err
		}

		if spec.AutoIncrement && rec.key.IsNumber() && !rec.generated {
			if err = h.bumpKeyGenerator(ctx, tx, store, rec.key.Int()); err != nil {
				return err
			}
		}

		query, args, err := h.builder.
			Insert("records").
			Columns("store_name", "record_key", "key_num", "value").
			Values(store, rec.key.encode(), keyNum(rec.key), string(rec.raw)).
			Suffix("ON CONFLICT (store_name, record_key) DO UPDATE SET key_num = excluded.key_num, value = excluded.value").
			ToSql()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
		}

		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			if isConstraintError(err) {
				return fmt.Errorf("%w: %w", ErrConstraint, err)
			}
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}

		if err = tx.Commit(); err != nil {
			return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
		}

		key = rec.key
		return nil
	})
	if err != nil {
		log.Err(err).
			Str("func", "sqliteHandle.Put").
			Str("store", store).
			Msg("failed to put record")
		return Key{}, err
	}

	return key, nil
}

func (h *sqliteHandle) nextKey(ctx context.Context, tx *sql.Tx, store string) (int64, error) {
	var next int64
	err := tx.QueryRowContext(ctx, `UPDATE object_stores SET next_key = next_key + 1 WHERE name = ? RETURNING next_key - 1`, store).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return next, nil
}

func (h *sqliteHandle) bumpKeyGenerator(ctx context.Context, tx *sql.Tx, store string, used int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE object_stores SET next_key = MAX(next_key, ?) WHERE name = ?`, used+1, store)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

func keyNum(k Key) any {
	if k.IsNumber() {
		return k.Int()
	}
	return nil
}

func (h *sqliteHandle) Get(ctx context.Context, store string, key Key) (Record, error) {
	if _, err := h.store(store); err != nil {
		return Record{}, err
	}

	query, args, err := h.builder.
		Select("record_key", "value").
		From("records").
		Where(sq.Eq{"store_name": store, "record_key": key.encode()}).
		ToSql()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	records, err := h.queryRecords(ctx, "sqliteHandle.Get", store, query, args)
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, store, key)
	}

	return records[0], nil
}

func (h *sqliteHandle) GetAll(ctx context.Context, store string) ([]Record, error) {
	if _, err := h.store(store); err != nil {
		return nil, err
	}

	query, args, err := h.selectOrdered().
		Where(sq.Eq{"store_name": store}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return h.queryRecords(ctx, "sqliteHandle.GetAll", store, query, args)
}

func (h *sqliteHandle) GetAllByIndex(ctx context.Context, store, index string, value any) ([]Record, error) {
	spec, err := h.store(store)
	if err != nil {
		return nil, err
	}

	idx, ok := spec.Index(index)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrIndexNotFound, store, index)
	}

	v, ok := indexValue(value)
	if !ok {
		return []Record{}, nil
	}

	// store name and key path are literals so the partial expression index
	// created for this index matches the query
	query, args, err := h.selectOrdered().
		Where(sq.Expr(fmt.Sprintf("store_name = '%s'", store))).
		Where(sq.Expr(jsonExtract(idx.KeyPath)+" = ?", v)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return h.queryRecords(ctx, "sqliteHandle.GetAllByIndex", store, query, args)
}

func (h *sqliteHandle) Delete(ctx context.Context, store string, key Key) error {
	if _, err := h.store(store); err != nil {
		return err
	}

	return h.exec(ctx, "sqliteHandle.Delete", store, h.builder.
		Delete("records").
		Where(sq.Eq{"store_name": store, "record_key": key.encode()}))
}

func (h *sqliteHandle) Clear(ctx context.Context, store string) error {
	if _, err := h.store(store); err != nil {
		return err
	}

	return h.exec(ctx, "sqliteHandle.Clear", store, h.builder.
		Delete("records").
		Where(sq.Eq{"store_name": store}))
}

func (h *sqliteHandle) Count(ctx context.Context, store string) (int, error) {
	log := logger.FromContext(ctx)

	if _, err := h.store(store); err != nil {
		return 0, err
	}

	query, args, err := h.builder.
		Select("COUNT(*)").
		From("records").
		Where(sq.Eq{"store_name": store}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var n int
	if err = h.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		log.Err(err).
			Str("func", "sqliteHandle.Count").
			Str("store", store).
			Msg("failed to count records")
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return n, nil
}

func (h *sqliteHandle) Close() error {
	return h.DB.Close()
}

func (h *sqliteHandle) selectOrdered() sq.SelectBuilder {
	return h.builder.
		Select("record_key", "value").
		From("records").
		OrderBy("key_num IS NULL", "key_num", "record_key")
}

func (h *sqliteHandle) exec(ctx context.Context, funcName, store string, b sq.DeleteBuilder) error {
	log := logger.FromContext(ctx)

	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	err = h.withRetry(ctx, func(ctx context.Context) error {
		_, err := h.DB.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		log.Err(err).
			Str("func", funcName).
			Str("store", store).
			Msg("failed to execute statement")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (h *sqliteHandle) queryRecords(ctx context.Context, funcName, store, query string, args []any) ([]Record, error) {
	log := logger.FromContext(ctx)

	rows, err := h.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", funcName).
			Str("store", store).
			Msg("failed to query records")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rawKey, value string
		if err = rows.Scan(&rawKey, &value); err != nil {
			log.Err(err).
				Str("func", funcName).
				Str("store", store).
				Msg("failed to scan record row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}

		key, err := decodeKey(rawKey)
		if err != nil {
			return nil, err
		}
		records = append(records, Record{Key: key, Value: []byte(value)})
	}

	if err = rows.Err(); err != nil {
		log.Err(err).
			Str("func", funcName).
			Str("store", store).
			Msg("error iterating record rows")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return records, nil
}

func jsonExtract(keyPath string) string {
	return fmt.Sprintf("json_extract(value, '$.%s')", keyPath)
}

func physicalIndexName(store, index string) string {
	return fmt.Sprintf("idx_%s_%s", store, index)
}
