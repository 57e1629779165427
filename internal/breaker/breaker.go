// Package breaker implements the circuit breaker guarding downstream
// dependencies: rolling failure counts trip the circuit, a reset
// timeout admits a trial call, and its outcome decides recovery.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sheetwise/gateway/internal/observability"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and calls go through.
	StateClosed State = iota

	// StateOpen indicates the circuit is open and calls fail fast.
	StateOpen

	// StateHalfOpen indicates the breaker is probing recovery with a
	// limited number of trial calls.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when a call is rejected because the circuit is
// open or the half-open trial budget is spent. It is distinct from any
// downstream error so callers can tell "breaker refused" apart from
// "dependency unreachable", and it never counts against the dependency.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds configuration for a circuit breaker.
type Config struct {
	// FailureThreshold is the rolling failure count that opens the
	// circuit from closed.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before admitting
	// a trial call.
	ResetTimeout time.Duration

	// TrialCalls is the number of calls admitted in half-open before
	// further calls are rejected pending a transition decision.
	TrialCalls int

	// Window is the rolling window over which failures are counted;
	// counters reset when it elapses without the circuit opening.
	Window time.Duration

	// OnStateChange is called after every state transition.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns a Config with default values: a single trial
// call probes recovery.
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		TrialCalls:       1,
		Window:           time.Minute,
	}
}

// normalize fills invalid fields with defaults.
func (c *Config) normalize() {
	d := DefaultConfig()
	if c.FailureThreshold < 1 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.ResetTimeout < time.Millisecond {
		c.ResetTimeout = d.ResetTimeout
	}
	if c.TrialCalls < 1 {
		c.TrialCalls = d.TrialCalls
	}
	if c.Window < time.Second {
		c.Window = d.Window
	}
}

// Breaker is a mutex-guarded circuit breaker state machine. Transitions
// are driven only by call outcomes and elapsed time.
type Breaker struct {
	name    string
	config  *Config
	logger  observability.Logger
	metrics *Metrics

	mu    sync.Mutex
	state State

	failures      int
	trialRequests int

	lastStateChange time.Time
	windowStart     time.Time

	// now is swappable for tests.
	now func() time.Time
}

// Option is a functional option for the Breaker.
type Option func(*Breaker)

// WithLogger sets the breaker's logger.
func WithLogger(logger observability.Logger) Option {
	return func(b *Breaker) { b.logger = logger }
}

// WithMetrics sets the breaker's metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(b *Breaker) { b.metrics = metrics }
}

// WithClock sets the breaker's time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a circuit breaker for the named dependency.
func New(name string, config *Config, opts ...Option) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	config.normalize()

	b := &Breaker{
		name:   name,
		config: config,
		logger: observability.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = NewMetrics()
	}

	now := b.now()
	b.lastStateChange = now
	b.windowStart = now
	return b
}

// Execute runs fn with circuit breaker protection. When the circuit is
// open (or the half-open trial budget is spent) it returns ErrOpen
// without invoking fn; the rejection does not count against the
// dependency.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !b.Allow() {
		return ErrOpen
	}

	err := fn(ctx)

	if err != nil {
		b.RecordFailure()
	} else {
		b.RecordSuccess()
	}
	return err
}

// Allow reports whether a call may proceed, claiming a trial slot when
// the breaker is half-open.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if now.Sub(b.lastStateChange) >= b.config.ResetTimeout {
			b.transitionTo(StateHalfOpen)
			b.trialRequests = 1
			return true
		}
		b.metrics.RecordRejection(b.name)
		return false

	case StateHalfOpen:
		if b.trialRequests < b.config.TrialCalls {
			b.trialRequests++
			return true
		}
		b.metrics.RecordRejection(b.name)
		return false

	default:
		return false
	}
}

// RecordSuccess records a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.transitionTo(StateClosed)

	case StateClosed:
		if b.now().Sub(b.windowStart) >= b.config.Window {
			b.resetCounters()
		}
	}
}

// RecordFailure records a failed call outcome.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	switch b.state {
	case StateClosed:
		if now.Sub(b.windowStart) >= b.config.Window {
			b.resetCounters()
		}
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		// A failed trial call reopens the circuit and restarts its
		// timeout clock.
		b.transitionTo(StateOpen)
	}
}

// transitionTo moves the breaker to a new state. Caller holds the lock.
func (b *Breaker) transitionTo(newState State) {
	oldState := b.state
	b.state = newState
	b.lastStateChange = b.now()
	b.resetCounters()

	b.metrics.RecordTransition(b.name, oldState, newState)
	b.logger.Info("circuit breaker state changed",
		observability.String("name", b.name),
		observability.String("from", oldState.String()),
		observability.String("to", newState.String()),
	)

	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(b.name, oldState, newState)
	}
}

// resetCounters resets the rolling counters. Caller holds the lock.
func (b *Breaker) resetCounters() {
	b.failures = 0
	b.trialRequests = 0
	b.windowStart = b.now()
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the name of the guarded dependency.
func (b *Breaker) Name() string {
	return b.name
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.resetCounters()
	b.lastStateChange = b.now()
}
