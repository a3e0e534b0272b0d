package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MKhiriev/go-spirit-connect/internal/logger"
)

// upgrade replays every schema version between the stored one and the
// declared one, each in its own transaction, then loads the catalog.
func (h *sqliteHandle) upgrade(ctx context.Context) error {
	log := logger.FromContext(ctx)

	if err := h.schema.Validate(); err != nil {
		return err
	}

	var current int
	if err := h.DB.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	if current > h.schema.Version {
		return fmt.Errorf("%w: stored %d, requested %d", ErrVersionDowngrade, current, h.schema.Version)
	}

	for _, step := range h.schema.plan(current) {
		if err := h.applyStep(ctx, step); err != nil {
			log.Err(err).
				Str("func", "sqliteHandle.upgrade").
				Int("version", step.version).
				Msg("failed to apply schema step")
			return fmt.Errorf("upgrade to version %d: %w", step.version, err)
		}
		log.Info().
			Str("func", "sqliteHandle.upgrade").
			Int("version", step.version).
			Int("created", len(step.create)).
			Int("recreated", len(step.recreate)).
			Msg("schema step applied")
	}

	if err := h.ensureStores(ctx); err != nil {
		return err
	}

	h.version = h.schema.Version
	return h.loadCatalog(ctx)
}

func (h *sqliteHandle) applyStep(ctx context.Context, step upgradeStep) error {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	for _, spec := range step.recreate {
		if err = dropStore(ctx, tx, spec.Name); err != nil {
			return err
		}
		if err = createStore(ctx, tx, spec, spec.indexesAt(step.version)); err != nil {
			return err
		}
	}

	for _, spec := range step.create {
		if err = createStore(ctx, tx, spec, spec.indexesAt(step.version)); err != nil {
			return err
		}
	}

	for store, indexes := range step.addIndexes {
		for _, idx := range indexes {
			if err = createIndex(ctx, tx, store, idx); err != nil {
				return err
			}
		}
	}

	// PRAGMA does not accept bound parameters
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step.version)); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}
	return nil
}

// ensureStores creates any declared store or index that is still missing.
func (h *sqliteHandle) ensureStores(ctx context.Context) error {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	for _, spec := range h.schema.Stores {
		if err = createStore(ctx, tx, spec, spec.indexesAt(h.schema.Version)); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}
	return nil
}

func createStore(ctx context.Context, tx *sql.Tx, spec StoreSpec, indexes []IndexSpec) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO object_stores (name, key_path, auto_increment, next_key) VALUES (?, ?, ?, 1) ON CONFLICT (name) DO NOTHING`,
		spec.Name, spec.KeyPath, spec.AutoIncrement)
	if err != nil {
		return fmt.Errorf("%w: create store %s: %w", ErrExecutingQuery, spec.Name, err)
	}

	for _, idx := range indexes {
		if err = createIndex(ctx, tx, spec.Name, idx); err != nil {
			return err
		}
	}
	return nil
}

func createIndex(ctx context.Context, tx *sql.Tx, store string, idx IndexSpec) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO store_indexes (store_name, name, key_path, is_unique) VALUES (?, ?, ?, ?) ON CONFLICT (store_name, name) DO NOTHING`,
		store, idx.Name, idx.KeyPath, idx.Unique)
	if err != nil {
		return fmt.Errorf("%w: create index %s.%s: %w", ErrExecutingQuery, store, idx.Name, err)
	}

	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	ddl := fmt.Sprintf(`CREATE %sINDEX IF NOT EXISTS %s ON records (%s) WHERE store_name = '%s'`,
		unique, physicalIndexName(store, idx.Name), jsonExtract(idx.KeyPath), store)
	if _, err = tx.ExecContext(ctx, ddl); err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %s.%s: %w", ErrConstraint, store, idx.Name, err)
		}
		return fmt.Errorf("%w: create index %s.%s: %w", ErrExecutingQuery, store, idx.Name, err)
	}
	return nil
}

func dropStore(ctx context.Context, tx *sql.Tx, store string) error {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM store_indexes WHERE store_name = ?`, store)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	var indexes []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		indexes = append(indexes, name)
	}
	rows.Close()

	for _, name := range indexes {
		if _, err = tx.ExecContext(ctx, "DROP INDEX IF EXISTS "+physicalIndexName(store, name)); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
	}

	for _, stmt := range []string{
		`DELETE FROM records WHERE store_name = ?`,
		`DELETE FROM store_indexes WHERE store_name = ?`,
		`DELETE FROM object_stores WHERE name = ?`,
	} {
		if _, err = tx.ExecContext(ctx, stmt, store); err != nil {
			return fmt.Errorf("%w: drop store %s: %w", ErrExecutingQuery, store, err)
		}
	}
	return nil
}

func (h *sqliteHandle) loadCatalog(ctx context.Context) error {
	catalog := make(map[string]StoreSpec)

	rows, err := h.DB.QueryContext(ctx, `SELECT name, key_path, auto_increment FROM object_stores`)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	for rows.Next() {
		var spec StoreSpec
		if err = rows.Scan(&spec.Name, &spec.KeyPath, &spec.AutoIncrement); err != nil {
			rows.Close()
			return fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		catalog[spec.Name] = spec
	}
	rows.Close()

	rows, err = h.DB.QueryContext(ctx, `SELECT store_name, name, key_path, is_unique FROM store_indexes ORDER BY store_name, name`)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()
	for rows.Next() {
		var store string
		var idx IndexSpec
		if err = rows.Scan(&store, &idx.Name, &idx.KeyPath, &idx.Unique); err != nil {
			return fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		spec := catalog[store]
		spec.Indexes = append(spec.Indexes, idx)
		catalog[store] = spec
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	h.mu.Lock()
	h.catalog = catalog
	h.mu.Unlock()

	return nil
}
