// Package shutdown coordinates graceful shutdown of the parkadmin server.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State represents the current shutdown state.
type State string

const (
	// StateRunning indicates the server is running normally.
	StateRunning State = "running"
	// StateDraining indicates the server rejects new mutations and waits for
	// in-flight ones to reach the backend.
	StateDraining State = "draining"
	// StateStopping indicates the registered components are being stopped.
	StateStopping State = "stopping"
	// StateComplete indicates shutdown is complete.
	StateComplete State = "complete"
)

// MutationTracker reports subscription mutations still waiting on the backend.
type MutationTracker interface {
	InFlight() int
}

// Status represents the current shutdown status.
type Status struct {
	State              State         `json:"state"`
	StartedAt          *time.Time    `json:"started_at,omitempty"`
	TimeRemaining      time.Duration `json:"time_remaining,omitempty"`
	InFlightMutations  int           `json:"in_flight_mutations"`
	AcceptingMutations bool          `json:"accepting_mutations"`
	Message            string        `json:"message,omitempty"`
}

// Config holds configuration for the shutdown manager.
type Config struct {
	// Timeout bounds the whole shutdown: draining plus stopping components.
	Timeout time.Duration
	// PollInterval is how often in-flight mutations are counted while draining.
	PollInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// Manager coordinates graceful shutdown of the parkadmin server.
type Manager struct {
	config    Config
	tracker   MutationTracker
	logger    zerolog.Logger
	mu        sync.RWMutex
	state     State
	startedAt *time.Time
	hooks     []hook
	accepting atomic.Bool
	doneCh    chan struct{}
	once      sync.Once
}

// NewManager creates a new shutdown manager. tracker may be nil.
func NewManager(config Config, tracker MutationTracker, logger zerolog.Logger) *Manager {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	m := &Manager{
		config:  config,
		tracker: tracker,
		logger:  logger.With().Str("component", "shutdown_manager").Logger(),
		state:   StateRunning,
		doneCh:  make(chan struct{}),
	}
	m.accepting.Store(true)
	return m
}

// OnShutdown registers fn to run after draining. Hooks run in registration
// order and share the remaining shutdown deadline.
func (m *Manager) OnShutdown(name string, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// AcceptingMutations reports whether new subscription mutations may start.
func (m *Manager) AcceptingMutations() bool {
	return m.accepting.Load()
}

// GetState returns the current shutdown state.
func (m *Manager) GetState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// GetStatus returns the current shutdown status.
func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		State:              m.state,
		StartedAt:          m.startedAt,
		AcceptingMutations: m.accepting.Load(),
	}
	if m.tracker != nil {
		status.InFlightMutations = m.tracker.InFlight()
	}
	if m.startedAt != nil {
		if remaining := m.config.Timeout - time.Since(*m.startedAt); remaining > 0 {
			status.TimeRemaining = remaining
		}
	}

	switch m.state {
	case StateRunning:
		status.Message = "Server is running normally"
	case StateDraining:
		status.Message = "Server is draining, not accepting new mutations"
	case StateStopping:
		status.Message = "Stopping server components"
	case StateComplete:
		status.Message = "Shutdown complete"
	}
	return status
}

// Shutdown stops accepting mutations, waits for in-flight ones, then runs the
// registered hooks. Later calls return nil without doing anything.
func (m *Manager) Shutdown(ctx context.Context) error {
	var err error
	m.once.Do(func() {
		err = m.doShutdown(ctx)
	})
	return err
}

func (m *Manager) doShutdown(ctx context.Context) error {
	m.logger.Info().Dur("timeout", m.config.Timeout).Msg("initiating graceful shutdown")

	now := time.Now()
	m.mu.Lock()
	m.startedAt = &now
	m.state = StateDraining
	hooks := append([]hook(nil), m.hooks...)
	m.mu.Unlock()

	m.accepting.Store(false)

	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	if m.tracker != nil {
		m.waitForMutations(ctx)
	}

	m.setState(StateStopping)

	var errs []error
	for _, h := range hooks {
		if err := h.fn(ctx); err != nil {
			m.logger.Error().Err(err).Str("hook", h.name).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		m.logger.Debug().Str("hook", h.name).Msg("shutdown hook complete")
	}

	m.setState(StateComplete)
	close(m.doneCh)

	m.logger.Info().Dur("duration", time.Since(now)).Msg("graceful shutdown complete")
	return errors.Join(errs...)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// waitForMutations returns once no mutation is in flight or ctx is done.
func (m *Manager) waitForMutations(ctx context.Context) {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		n := m.tracker.InFlight()
		if n == 0 {
			m.logger.Debug().Msg("no mutations in flight")
			return
		}

		m.logger.Info().Int("in_flight", n).Msg("waiting for in-flight mutations")

		select {
		case <-ctx.Done():
			m.logger.Warn().Int("in_flight", n).Msg("shutdown deadline reached with mutations in flight")
			return
		case <-ticker.C:
		}
	}
}

// Done returns a channel that is closed when shutdown is complete.
func (m *Manager) Done() <-chan struct{} {
	return m.doneCh
}
