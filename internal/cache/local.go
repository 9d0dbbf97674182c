package cache

import (
	"context"
	"sync"
	"time"
)

// defaultSweepInterval is how often the janitor removes expired entries.
const defaultSweepInterval = time.Minute

// Local is the in-process fallback cache, used whenever the shared backend
// is unavailable. Entries expire lazily on read and are swept periodically
// by a janitor goroutine.
type Local struct {
	mu      sync.RWMutex
	entries map[string]localEntry
	stop    chan struct{}
	once    sync.Once
}

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewLocal creates a local cache and starts its janitor.
func NewLocal() *Local {
	l := &Local{
		entries: make(map[string]localEntry),
		stop:    make(chan struct{}),
	}
	go l.janitor(defaultSweepInterval)
	return l
}

// Get returns the value stored under key, or ErrMiss when absent or expired.
func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	l.mu.RLock()
	entry, ok := l.entries[key]
	l.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrMiss
	}
	return entry.value, nil
}

// Set stores value under key, expiring after ttl.
func (l *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	l.mu.Lock()
	l.entries[key] = localEntry{value: stored, expiresAt: time.Now().Add(ttl)}
	l.mu.Unlock()
	return nil
}

// Ping always succeeds; the local cache has no connection to lose.
func (l *Local) Ping(context.Context) error { return nil }

// Close stops the janitor. Safe to call more than once.
func (l *Local) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}

// Len returns the number of stored entries, expired or not.
func (l *Local) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Local) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			l.mu.Lock()
			for key, entry := range l.entries {
				if now.After(entry.expiresAt) {
					delete(l.entries, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
