package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/outstandingcode/gamenight/internal/dedupe"
)

// Aside is the cache-aside orchestrator. It wraps an expensive compute
// behind a key: read the shared cache when available, fall back to the
// local cache, compute on a full miss, and write the result back with a
// TTL. Cache failures are absorbed and logged; the caller only ever sees
// compute errors.
type Aside struct {
	manager *Manager
	local   Backend
	group   dedupe.Group
	logger  zerolog.Logger

	sharedHits atomic.Int64
	localHits  atomic.Int64
	computes   atomic.Int64
}

// NewAside creates an orchestrator. manager may be nil when no shared
// cache is configured; group may be nil to disable dedupe.
func NewAside(manager *Manager, local Backend, group dedupe.Group, logger zerolog.Logger) *Aside {
	if group == nil {
		group = dedupe.NewNoOp()
	}
	return &Aside{
		manager: manager,
		local:   local,
		group:   group,
		logger:  logger.With().Str("component", "cache-aside").Logger(),
	}
}

// GetOrCompute returns the serialized value for key, computing and caching
// it on a miss. Concurrent misses for the same key are deduplicated so the
// compute runs once.
func (a *Aside) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok := a.lookup(ctx, key); ok {
		return value, nil
	}

	v, err, _ := a.group.Do(key, func() (any, error) {
		// A duplicate caller may have populated the cache while this
		// caller waited on the group.
		if value, ok := a.lookup(ctx, key); ok {
			return value, nil
		}

		a.computes.Add(1)
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		a.store(ctx, key, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, err
	}

	value, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("cache: unexpected compute result type %T", v)
	}
	return value, nil
}

// lookup consults the shared cache when available, then the local cache.
func (a *Aside) lookup(ctx context.Context, key string) ([]byte, bool) {
	if a.manager != nil && a.manager.Available() {
		if backend := a.manager.Backend(); backend != nil {
			value, err := backend.Get(ctx, key)
			switch {
			case err == nil:
				a.sharedHits.Add(1)
				return value, true
			case !errors.Is(err, ErrMiss):
				a.logger.Warn().Err(err).Str("key", key).Msg("shared cache read failed, treating as miss")
			}
		}
	}

	value, err := a.local.Get(ctx, key)
	if err == nil {
		a.localHits.Add(1)
		return value, true
	}
	return nil, false
}

// store writes a fresh value to the shared cache when available, falling
// back to the local cache otherwise or on write failure.
func (a *Aside) store(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if a.manager != nil && a.manager.Available() {
		if backend := a.manager.Backend(); backend != nil {
			err := backend.Set(ctx, key, value, ttl)
			if err == nil {
				return
			}
			a.logger.Warn().Err(err).Str("key", key).Msg("shared cache write failed, writing local instead")
		}
	}

	if err := a.local.Set(ctx, key, value, ttl); err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("local cache write failed")
	}
}

// LogStats logs hit and compute counters. Called once at shutdown.
func (a *Aside) LogStats() {
	sharedHits := a.sharedHits.Load()
	localHits := a.localHits.Load()
	computes := a.computes.Load()
	total := sharedHits + localHits + computes
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(sharedHits+localHits) / float64(total) * 100
	}
	a.logger.Info().
		Int64("shared_hits", sharedHits).
		Int64("local_hits", localHits).
		Int64("computes", computes).
		Float64("hit_rate_pct", hitRate).
		Msg("cache statistics")
}

// View is the typed cache-aside entry point: it serializes through the
// package codec and decodes hits into T. A corrupt cached value is treated
// as a miss and recomputed rather than surfaced.
func View[T any](ctx context.Context, a *Aside, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var out T

	raw, err := a.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return encode(v)
	})
	if err != nil {
		return out, err
	}

	if err := decode(raw, &out); err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("cached value corrupt, recomputing")
		v, err := compute(ctx)
		if err != nil {
			return out, err
		}
		// Overwrite the corrupt entry so it stops forcing recomputes.
		if encoded, encErr := encode(v); encErr == nil {
			a.store(ctx, key, encoded, ttl)
		}
		return v, nil
	}
	return out, nil
}
