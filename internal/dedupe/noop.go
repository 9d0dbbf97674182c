package dedupe

// NoOp performs no deduplication; every caller executes fn immediately.
// Useful in tests and in single-caller contexts.
type NoOp struct{}

// NewNoOp creates a NoOp group.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Do executes fn directly. shared is always false.
func (NoOp) Do(_ string, fn func() (any, error)) (v any, err error, shared bool) {
	v, err = fn()
	return v, err, false
}
