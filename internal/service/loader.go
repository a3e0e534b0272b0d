package service

import (
	"context"
	"errors"

	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/models"
)

// Loaded is the outcome of a cache-then-network read.
type Loaded[T any] struct {
	// Value is the server value, or the cached one when the fetch failed.
	Value T
	// Stale is set when Value came from the cache because the fetch failed.
	Stale bool
	// FetchErr is the fetch failure hidden behind a cached value.
	FetchErr error
}

// LoadOne reads key from the cache, hands a fresh cached value to onCached,
// then fetches from the server. A fetched value overwrites the cache; a
// failure to write the cache is logged and ignored. When the fetch fails the
// cached value is returned as stale, and the fetch error only when nothing
// was cached.
func LoadOne[T models.Keyed](
	ctx context.Context,
	cache CacheService,
	storeName, key string,
	fetch func(context.Context) (T, error),
	onCached func(T),
) (Loaded[T], error) {
	log := logger.FromContext(ctx)

	var (
		cached    T
		hasCached bool
	)
	row, err := cache.ReadCachedOne(ctx, storeName, key)
	switch {
	case err == nil:
		cached, err = decodePayload[T](row)
		if err != nil {
			log.Warn().Err(err).Str("func", "LoadOne").Str("store", storeName).Msg("ignoring undecodable cached value")
			break
		}
		hasCached = true
		if onCached != nil {
			onCached(cached)
		}
	case errors.Is(err, ErrCacheMiss):
	default:
		log.Warn().Err(err).Str("func", "LoadOne").Str("store", storeName).Msg("cache read failed")
	}

	fresh, fetchErr := fetch(ctx)
	if fetchErr != nil {
		if hasCached {
			return Loaded[T]{Value: cached, Stale: true, FetchErr: fetchErr}, nil
		}
		return Loaded[T]{}, fetchErr
	}

	if err = cache.CacheOne(ctx, storeName, fresh); err != nil {
		log.Warn().Err(err).Str("func", "LoadOne").Str("store", storeName).Msg("failed to refresh cache")
	}
	return Loaded[T]{Value: fresh}, nil
}

// LoadMany is the list form of LoadOne. Only cached rows within the store's
// freshness window are served. An empty cache counts as "nothing cached".
func LoadMany[T models.Keyed](
	ctx context.Context,
	cache CacheService,
	storeName string,
	filter func(T) bool,
	fetch func(context.Context) ([]T, error),
	onCached func([]T),
) (Loaded[[]T], error) {
	log := logger.FromContext(ctx)

	cached, err := readCachedValues(ctx, cache, storeName, filter)
	if err != nil {
		log.Warn().Err(err).Str("func", "LoadMany").Str("store", storeName).Msg("cache read failed")
	}
	hasCached := len(cached) > 0
	if hasCached && onCached != nil {
		onCached(cached)
	}

	fresh, fetchErr := fetch(ctx)
	if fetchErr != nil {
		if hasCached {
			return Loaded[[]T]{Value: cached, Stale: true, FetchErr: fetchErr}, nil
		}
		return Loaded[[]T]{}, fetchErr
	}

	items := make([]models.Keyed, 0, len(fresh))
	for _, v := range fresh {
		items = append(items, v)
	}
	if err = cache.CacheMany(ctx, storeName, items...); err != nil {
		log.Warn().Err(err).Str("func", "LoadMany").Str("store", storeName).Msg("failed to refresh cache")
	}
	return Loaded[[]T]{Value: fresh}, nil
}

func readCachedValues[T any](ctx context.Context, cache CacheService, storeName string, filter func(T) bool) ([]T, error) {
	rows, err := cache.ReadFresh(ctx, storeName)
	if err != nil {
		return nil, err
	}

	values := make([]T, 0, len(rows))
	for _, row := range rows {
		v, err := decodePayload[T](row)
		if err != nil {
			return nil, err
		}
		if filter != nil && !filter(v) {
			continue
		}
		values = append(values, v)
	}
	return values, nil
}
