package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory Backend for manager tests. It records whether
// it has been closed.
type fakeBackend struct {
	mu      sync.Mutex
	entries map[string][]byte
	closed  bool

	getErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{entries: make(map[string][]byte)}
}

func (f *fakeBackend) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	value, ok := f.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	return value, nil
}

func (f *fakeBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return nil
}

func (f *fakeBackend) Ping(context.Context) error { return nil }

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBackend) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", msg)
}

func managerOpts(dial func(context.Context) (Backend, error)) ManagerOptions {
	return ManagerOptions{
		Enabled:       true,
		MaxReconnects: 3,
		InitialDelay:  time.Millisecond,
		Dial:          dial,
	}
}

func TestManagerConnect(t *testing.T) {
	backend := newFakeBackend()
	m := NewManager(managerOpts(func(context.Context) (Backend, error) {
		return backend, nil
	}), zerolog.Nop())
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))
	require.True(t, m.Available())
	require.Equal(t, StateReady, m.State())
	require.Equal(t, Backend(backend), m.Backend())
}

func TestManagerDisabledNeverDials(t *testing.T) {
	m := NewManager(ManagerOptions{
		Enabled: false,
		Dial: func(context.Context) (Backend, error) {
			t.Error("dial called on a disabled manager")
			return nil, errors.New("unreachable")
		},
	}, zerolog.Nop())

	require.NoError(t, m.Connect(context.Background()))
	require.False(t, m.Available())
	require.Equal(t, StateDisabled, m.State())
}

func TestManagerConnectFailureReconnects(t *testing.T) {
	var dials atomic.Int64
	backend := newFakeBackend()
	m := NewManager(managerOpts(func(context.Context) (Backend, error) {
		if dials.Add(1) < 3 {
			return nil, errors.New("connection refused")
		}
		return backend, nil
	}), zerolog.Nop())
	defer m.Close()

	require.Error(t, m.Connect(context.Background()))
	require.False(t, m.Available())

	waitFor(t, m.Available, "manager never recovered")
	require.Equal(t, StateReady, m.State())
	require.EqualValues(t, 3, dials.Load())
}

func TestManagerExhaustsReconnectBudget(t *testing.T) {
	var dials atomic.Int64
	m := NewManager(managerOpts(func(context.Context) (Backend, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	}), zerolog.Nop())

	require.Error(t, m.Connect(context.Background()))
	waitFor(t, func() bool { return m.State() == StateExhausted }, "manager never exhausted")

	// Initial connect plus the full reconnect budget.
	require.EqualValues(t, 4, dials.Load())
	require.False(t, m.Available())

	// Exhaustion is terminal: Connect becomes a no-op.
	require.NoError(t, m.Connect(context.Background()))
	require.Equal(t, StateExhausted, m.State())
	require.EqualValues(t, 4, dials.Load())
}

func TestManagerDuplicateConnectsShareOneDial(t *testing.T) {
	var dials atomic.Int64
	release := make(chan struct{})
	backend := newFakeBackend()
	m := NewManager(managerOpts(func(context.Context) (Backend, error) {
		dials.Add(1)
		<-release
		return backend, nil
	}), zerolog.Nop())
	defer m.Close()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Connect(context.Background())
		}(i)
	}

	waitFor(t, func() bool { return dials.Load() == 1 }, "no dial started")
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, dials.Load())
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.True(t, m.Available())
}

func TestManagerReportErrorTearsDownAndReconnects(t *testing.T) {
	first := newFakeBackend()
	second := newFakeBackend()
	var dials atomic.Int64
	m := NewManager(managerOpts(func(context.Context) (Backend, error) {
		if dials.Add(1) == 1 {
			return first, nil
		}
		return second, nil
	}), zerolog.Nop())
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))
	m.ReportError(errors.New("broken pipe"))

	require.False(t, m.Available())
	require.True(t, first.isClosed())

	waitFor(t, m.Available, "manager never reconnected")
	require.Equal(t, Backend(second), m.Backend())
}

func TestManagerCloseDuringReconnectStaysExhausted(t *testing.T) {
	var dials atomic.Int64
	var mu sync.Mutex
	var dialed []*fakeBackend

	opts := managerOpts(func(context.Context) (Backend, error) {
		if dials.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		b := newFakeBackend()
		mu.Lock()
		dialed = append(dialed, b)
		mu.Unlock()
		return b, nil
	})
	opts.InitialDelay = 50 * time.Millisecond
	m := NewManager(opts, zerolog.Nop())

	require.Error(t, m.Connect(context.Background()))

	// The reconnect loop is now inside its backoff sleep; Close lands first.
	m.Close()
	require.Equal(t, StateExhausted, m.State())

	// The loop still wakes and dials, but must not adopt past Exhausted.
	waitFor(t, func() bool { return dials.Load() == 2 }, "reconnect dial never ran")
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dialed) == 1 && dialed[0].isClosed()
	}, "late-dialed backend never closed")

	require.Equal(t, StateExhausted, m.State())
	require.False(t, m.Available())
	require.Nil(t, m.Backend())
}

func TestManagerDebouncesErrorBursts(t *testing.T) {
	var dials atomic.Int64
	first := newFakeBackend()
	second := newFakeBackend()
	opts := managerOpts(func(context.Context) (Backend, error) {
		if dials.Add(1) == 1 {
			return first, nil
		}
		return second, nil
	})
	opts.ErrorDebounce = time.Second
	m := NewManager(opts, zerolog.Nop())
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))
	m.ReportError(errors.New("broken pipe"))
	waitFor(t, m.Available, "manager never reconnected")
	require.EqualValues(t, 2, dials.Load())

	// A second error inside the debounce window is not acted upon.
	m.ReportError(errors.New("broken pipe again"))
	require.True(t, m.Available())
	require.Equal(t, StateReady, m.State())
	require.False(t, second.isClosed())
	require.EqualValues(t, 2, dials.Load())
}

func TestManagerConnectWaiterObservesReconnectSuccess(t *testing.T) {
	var dials atomic.Int64
	gate := make(chan struct{})
	backend := newFakeBackend()
	m := NewManager(managerOpts(func(context.Context) (Backend, error) {
		if dials.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		<-gate
		return backend, nil
	}), zerolog.Nop())
	defer m.Close()

	require.Error(t, m.Connect(context.Background()))

	// A caller arriving while the reconnect loop is dialing waits on it and
	// must observe the eventual success, not the stale initial error.
	errCh := make(chan error, 1)
	go func() { errCh <- m.Connect(context.Background()) }()

	waitFor(t, func() bool { return dials.Load() == 2 }, "reconnect dial never started")
	close(gate)

	require.NoError(t, <-errCh)
	require.True(t, m.Available())
}

func TestManagerReportErrorIgnoredWhenNotReady(t *testing.T) {
	m := NewManager(managerOpts(func(context.Context) (Backend, error) {
		return newFakeBackend(), nil
	}), zerolog.Nop())
	defer m.Close()

	// Never connected; a report must not start a reconnect loop.
	m.ReportError(errors.New("spurious"))
	require.Equal(t, StateIdle, m.State())
}

func TestManagerWrapDecoratesDialedBackend(t *testing.T) {
	inner := newFakeBackend()
	opts := managerOpts(func(context.Context) (Backend, error) {
		return inner, nil
	})
	opts.Wrap = func(b Backend) Backend { return NewDebug(b, zerolog.Nop()) }

	m := NewManager(opts, zerolog.Nop())
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))
	_, ok := m.Backend().(*Debug)
	require.True(t, ok)
}

func TestStateString(t *testing.T) {
	states := []State{
		StateDisabled, StateIdle, StateConnecting, StateReady,
		StateErrorPendingReconnect, StateReconnecting, StateExhausted,
	}
	seen := make(map[string]bool)
	for _, s := range states {
		str := s.String()
		if str == "" || seen[str] {
			t.Errorf("State(%d).String() = %q, want unique non-empty", int(s), str)
		}
		seen[str] = true
	}
}
