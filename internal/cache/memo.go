package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/metrics"
)

// TTLs used across the application
const (
	TTLSignal     = 30 * time.Minute
	TTLPrediction = 30 * time.Minute
	TTLSentiment  = time.Hour
	TTLPriceDate  = time.Hour
	TTLQuote      = time.Hour
	TTLHistory    = time.Hour
	TTLList       = 24 * time.Hour
	TTLMacro      = 24 * time.Hour
)

// Remember returns the cached value under key or computes, stores and
// returns it. Failed computations are not cached. A broken store never
// fails the call.
func Remember[T any](ctx context.Context, store Store, namespace, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	if store == nil {
		return fn()
	}

	var cached T
	err := store.Get(ctx, key, &cached)
	if err == nil {
		metrics.CacheLookups.WithLabelValues(namespace, "hit").Inc()
		return cached, nil
	}
	if !errors.Is(err, ErrMiss) {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	metrics.CacheLookups.WithLabelValues(namespace, "miss").Inc()

	value, err := fn()
	if err != nil {
		return value, err
	}

	if err := store.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return value, nil
}
