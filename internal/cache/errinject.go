package cache

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorInjector wraps any Backend and randomly fails operations at a
// configured rate. Used to exercise the cache layer's error absorption and
// the manager's reconnect handling.
type ErrorInjector struct {
	backend   Backend
	errorRate float64 // 0.0 to 1.0

	rng   *rand.Rand
	rngMu sync.Mutex // rand.Rand is not thread-safe

	getErrors  atomic.Int64
	setErrors  atomic.Int64
	pingErrors atomic.Int64
}

// NewErrorInjector creates an error-injecting wrapper around backend.
// errorRate is clamped to [0.0, 1.0].
func NewErrorInjector(backend Backend, errorRate float64) *ErrorInjector {
	if errorRate < 0.0 {
		errorRate = 0.0
	}
	if errorRate > 1.0 {
		errorRate = 1.0
	}

	return &ErrorInjector{
		backend:   backend,
		errorRate: errorRate,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (e *ErrorInjector) shouldError() bool {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64() < e.errorRate
}

// Get retrieves a value, potentially returning an injected error.
func (e *ErrorInjector) Get(ctx context.Context, key string) ([]byte, error) {
	if e.shouldError() {
		e.getErrors.Add(1)
		return nil, fmt.Errorf("error injector: simulated Get error (rate: %.2f%%)", e.errorRate*100)
	}
	return e.backend.Get(ctx, key)
}

// Set stores a value, potentially returning an injected error.
func (e *ErrorInjector) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if e.shouldError() {
		e.setErrors.Add(1)
		return fmt.Errorf("error injector: simulated Set error (rate: %.2f%%)", e.errorRate*100)
	}
	return e.backend.Set(ctx, key, value, ttl)
}

// Ping checks the backend, potentially returning an injected error.
func (e *ErrorInjector) Ping(ctx context.Context) error {
	if e.shouldError() {
		e.pingErrors.Add(1)
		return fmt.Errorf("error injector: simulated Ping error (rate: %.2f%%)", e.errorRate*100)
	}
	return e.backend.Ping(ctx)
}

// Close closes the underlying backend; never injected so cleanup always runs.
func (e *ErrorInjector) Close() error {
	return e.backend.Close()
}

// Stats returns the number of injected errors per operation type.
func (e *ErrorInjector) Stats() (getErrors, setErrors, pingErrors int64) {
	return e.getErrors.Load(), e.setErrors.Load(), e.pingErrors.Load()
}
