package dedupe

import "golang.org/x/sync/singleflight"

// Memory is the in-process Group, backed by
// golang.org/x/sync/singleflight. Duplicate callers share the original
// caller's result.
type Memory struct {
	group singleflight.Group
}

// NewMemory creates a Memory group.
func NewMemory() *Memory {
	return &Memory{}
}

// Do executes fn through singleflight.
func (m *Memory) Do(key string, fn func() (any, error)) (v any, err error, shared bool) {
	return m.group.Do(key, fn)
}
