package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the shared cache connection state.
type State int

const (
	// StateDisabled means the shared cache feature is off; the process uses
	// the local fallback for its whole lifetime.
	StateDisabled State = iota

	// StateIdle means no connect has been requested yet.
	StateIdle

	// StateConnecting means the initial connect is in flight.
	StateConnecting

	// StateReady means the shared cache is connected and usable.
	StateReady

	// StateErrorPendingReconnect means a connection error was observed and a
	// reconnect is about to be scheduled.
	StateErrorPendingReconnect

	// StateReconnecting means a backoff reconnect loop is running.
	StateReconnecting

	// StateExhausted means the reconnect budget ran out. Terminal: the
	// client is torn down and the process stays on the local fallback.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateErrorPendingReconnect:
		return "error-pending-reconnect"
	case StateReconnecting:
		return "reconnecting"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Addr          string
	Enabled       bool
	MaxReconnects int
	InitialDelay  time.Duration
	ErrorDebounce time.Duration

	// Dial overrides how connections are established. Tests use it; the
	// default dials Redis at Addr.
	Dial func(context.Context) (Backend, error)

	// Wrap, when set, decorates every freshly dialed backend before the
	// manager adopts it. Used to layer debug logging or error injection.
	Wrap func(Backend) Backend
}

// Manager owns the shared cache connection lifecycle: initial connect,
// failure detection, reconnect with exponential backoff, and the terminal
// fallback to local-only caching once the reconnect budget is exhausted.
// All consumers read a single availability signal.
type Manager struct {
	logger       zerolog.Logger
	dial         func(context.Context) (Backend, error)
	maxAttempts  int
	initialDelay time.Duration
	debounce     time.Duration

	mu         sync.Mutex
	state      State
	backend    Backend
	attempt    int
	delay      time.Duration
	lastError  time.Time
	inflight   chan struct{}
	connectErr error
}

// NewManager creates a Manager. When opts.Enabled is false the manager is
// permanently disabled and never dials.
func NewManager(opts ManagerOptions, logger zerolog.Logger) *Manager {
	m := &Manager{
		logger:       logger.With().Str("component", "cache-manager").Logger(),
		maxAttempts:  opts.MaxReconnects,
		initialDelay: opts.InitialDelay,
		debounce:     opts.ErrorDebounce,
		state:        StateIdle,
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = 10
	}
	if m.initialDelay <= 0 {
		m.initialDelay = time.Second
	}
	m.delay = m.initialDelay

	m.dial = opts.Dial
	if m.dial == nil {
		m.dial = redisDial(opts.Addr, m.ReportError)
	}
	if opts.Wrap != nil {
		dial := m.dial
		m.dial = func(ctx context.Context) (Backend, error) {
			backend, err := dial(ctx)
			if err != nil {
				return nil, err
			}
			return opts.Wrap(backend), nil
		}
	}

	if !opts.Enabled {
		m.state = StateDisabled
		m.logger.Info().Msg("shared cache disabled, using local fallback only")
	}
	return m
}

// Connect establishes the initial connection. Concurrent callers never
// start duplicate attempts; they wait for the in-flight one and observe its
// outcome. A failed initial connect starts the background reconnect loop
// before returning its error.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateDisabled, StateExhausted, StateReady:
		m.mu.Unlock()
		return nil
	}
	if m.inflight != nil {
		done := m.inflight
		m.mu.Unlock()
		<-done
		m.mu.Lock()
		err := m.connectErr
		m.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	m.inflight = done
	m.state = StateConnecting
	m.mu.Unlock()

	m.logger.Info().Msg("connecting to shared cache")
	backend, err := m.dial(ctx)

	m.mu.Lock()
	m.connectErr = err
	m.inflight = nil
	close(done)
	if err != nil {
		m.state = StateErrorPendingReconnect
		m.lastError = time.Now()
		m.startReconnectLocked()
		m.mu.Unlock()
		m.logger.Error().Err(err).Msg("initial shared cache connect failed")
		return err
	}
	m.adoptLocked(backend)
	m.mu.Unlock()

	m.logger.Info().Msg("shared cache connected")
	return nil
}

// Available reports whether the shared cache may be used right now.
func (m *Manager) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateReady
}

// Backend returns the shared backend. Only meaningful while Available.
func (m *Manager) Backend() Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ReportError feeds a connection error into the state machine. Bursts
// within the debounce window collapse into one transition so a flapping
// connection cannot trigger a reconnect storm.
func (m *Manager) ReportError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateReady {
		return
	}
	if m.debounce > 0 && time.Since(m.lastError) < m.debounce {
		return
	}
	m.lastError = time.Now()

	m.logger.Warn().Err(err).Msg("shared cache error, falling back to local cache")
	m.teardownBackendLocked()
	m.state = StateErrorPendingReconnect
	m.startReconnectLocked()
}

// Close tears down the connection and stops future reconnects.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDisabled || m.state == StateExhausted {
		return
	}
	m.teardownBackendLocked()
	m.state = StateExhausted
}

// adoptLocked installs a healthy backend and resets the retry budget.
func (m *Manager) adoptLocked(backend Backend) {
	m.backend = backend
	m.state = StateReady
	m.attempt = 0
	m.delay = m.initialDelay
	m.connectErr = nil
}

func (m *Manager) teardownBackendLocked() {
	if m.backend != nil {
		if err := m.backend.Close(); err != nil {
			m.logger.Debug().Err(err).Msg("error closing shared cache backend")
		}
		m.backend = nil
	}
}

// startReconnectLocked launches the reconnect loop unless one is already
// running or the budget is spent.
func (m *Manager) startReconnectLocked() {
	if m.inflight != nil {
		return
	}
	if m.attempt >= m.maxAttempts {
		m.exhaustLocked()
		return
	}
	done := make(chan struct{})
	m.inflight = done
	go m.reconnectLoop(done)
}

// reconnectLoop retries the connection with exponentially growing delays
// until it succeeds or the attempt budget runs out. Exactly one loop runs
// at a time.
func (m *Manager) reconnectLoop(done chan struct{}) {
	for {
		m.mu.Lock()
		if m.state == StateExhausted {
			m.finishReconnectLocked(done)
			m.mu.Unlock()
			return
		}
		if m.attempt >= m.maxAttempts {
			m.exhaustLocked()
			m.finishReconnectLocked(done)
			m.mu.Unlock()
			return
		}
		m.attempt++
		attempt := m.attempt
		delay := m.delay
		m.delay *= 2
		m.state = StateReconnecting
		m.mu.Unlock()

		m.logger.Info().
			Int("attempt", attempt).
			Int("max_attempts", m.maxAttempts).
			Dur("delay", delay).
			Msg("scheduling shared cache reconnect")
		time.Sleep(delay)

		backend, err := m.dial(context.Background())

		m.mu.Lock()
		// Close or an exhausted budget may have landed while this loop was
		// sleeping or dialing. Exhausted is terminal: never adopt past it.
		if m.state == StateExhausted {
			m.finishReconnectLocked(done)
			m.mu.Unlock()
			if err == nil {
				backend.Close()
			}
			return
		}
		if err == nil {
			m.adoptLocked(backend)
			m.finishReconnectLocked(done)
			m.mu.Unlock()
			m.logger.Info().Int("attempt", attempt).Msg("shared cache reconnected")
			return
		}
		m.connectErr = err
		m.mu.Unlock()
		m.logger.Warn().Err(err).Int("attempt", attempt).Msg("shared cache reconnect failed")
	}
}

func (m *Manager) finishReconnectLocked(done chan struct{}) {
	if m.inflight == done {
		m.inflight = nil
	}
	close(done)
}

// exhaustLocked is the one-way transition to local-only caching: listeners
// are done, the client is gone, and no further reconnects are scheduled.
func (m *Manager) exhaustLocked() {
	m.teardownBackendLocked()
	m.state = StateExhausted
	m.logger.Error().
		Int("attempts", m.attempt).
		Msg("shared cache reconnect budget exhausted, local cache only from here on")
}
