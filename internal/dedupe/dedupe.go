// Package dedupe provides request-deduplication groups used by the cache
// layer: when several callers miss on the same key at once, only one
// compute runs.
package dedupe

// Group deduplicates concurrent executions by key.
type Group interface {
	// Do executes fn, ensuring only one execution is in flight for key at a
	// time. Duplicate callers wait for the original and, where the
	// implementation supports it, receive its result; shared reports
	// whether the value was handed to multiple callers.
	Do(key string, fn func() (any, error)) (v any, err error, shared bool)
}
