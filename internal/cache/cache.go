// Package cache implements the caching layer between the HTTP handlers and
// the expensive upstream aggregations: a shared Redis backend with a
// connection-resilience state machine, an in-process fallback backend, and
// a cache-aside orchestrator that gets-or-computes serialized views.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Backend.Get when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Backend is the minimal cache surface the orchestrator depends on.
//
// Implementations must be safe for concurrent use. Values are opaque
// byte slices; serialization is the orchestrator's concern. Entries must
// expire ttl after the write.
type Backend interface {
	// Get returns the value stored under key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, expiring after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}
