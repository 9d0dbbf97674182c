package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Flock is a Group that serializes executions across processes with
// filesystem locks, for deployments running several server processes on
// one host. Unlike Memory it provides mutual exclusion only: each caller
// runs fn itself once it holds the lock, so callers should re-check their
// cache before computing.
type Flock struct {
	lockDir     string
	acquireWait time.Duration
}

// NewFlock creates a Flock group writing lock files under lockDir. An
// empty lockDir defaults to a directory under os.TempDir().
func NewFlock(lockDir string) (*Flock, error) {
	if lockDir == "" {
		lockDir = filepath.Join(os.TempDir(), "gamenight-dedupe-locks")
	}

	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	return &Flock{
		lockDir:     lockDir,
		acquireWait: time.Second,
	}, nil
}

// Do executes fn while holding a per-key file lock.
func (g *Flock) Do(key string, fn func() (any, error)) (v any, err error, shared bool) {
	hash := sha256.Sum256([]byte(key))
	lockPath := filepath.Join(g.lockDir, hex.EncodeToString(hash[:])+".lock")

	fileLock := flock.New(lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), g.acquireWait)
	defer cancel()

	acquired, err := fileLock.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err), false
	}
	if !acquired {
		return nil, fmt.Errorf("failed to acquire lock: timeout"), false
	}
	defer fileLock.Unlock()

	v, err = fn()
	return v, err, false
}
