package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/lattice-lang/lattice/pkg/metrics"
)

// ErrCircuitOpen is returned while a breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the breaker state machine position.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
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

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold opens the circuit. Default 5.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before probing.
	// Default 60s.
	Cooldown time.Duration

	// HalfOpenSuccesses closes the circuit again. Default 3.
	HalfOpenSuccesses int
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:  5,
		Cooldown:          60 * time.Second,
		HalfOpenSuccesses: 3,
	}
}

// CircuitBreaker guards one external service.
type CircuitBreaker struct {
	name   string
	config BreakerConfig

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewCircuitBreaker builds a closed breaker for the named service.
func NewCircuitBreaker(name string, config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 60 * time.Second
	}
	if config.HalfOpenSuccesses <= 0 {
		config.HalfOpenSuccesses = 3
	}
	return &CircuitBreaker{name: name, config: config}
}

// State returns the current state, applying the cooldown transition.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refreshLocked()
	return cb.state
}

// Allow reports whether a call may proceed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refreshLocked()
	if cb.state == StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

// RecordSuccess feeds a successful call into the state machine.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refreshLocked()
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenSuccesses {
			cb.transitionLocked(StateClosed)
		}
	}
}

// RecordFailure feeds a failed call into the state machine.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refreshLocked()
	cb.lastFailure = time.Now()
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		cb.transitionLocked(StateOpen)
	}
}

func (cb *CircuitBreaker) refreshLocked() {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.config.Cooldown {
		cb.transitionLocked(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) transitionLocked(to CircuitState) {
	if cb.state == to {
		return
	}
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	metrics.CircuitTransitions.WithLabelValues(cb.name, to.String()).Inc()
}
