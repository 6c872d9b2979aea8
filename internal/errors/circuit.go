package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker refuses a request.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a circuit breaker state.
type State int

const (
	// StateClosed admits every request.
	StateClosed State = iota
	// StateOpen refuses requests until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits a probe request to test recovery.
	StateHalfOpen
)

// stateNames is indexed by State.
var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreaker fails fast once a backend has failed repeatedly, then
// admits a probe after a cooldown to test recovery. Construct with
// NewCircuitBreaker; the zero value has no thresholds.
type CircuitBreaker struct {
	name     string
	trip     int
	cooldown time.Duration

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

// CircuitBreakerOption adjusts breaker thresholds.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets how many consecutive failures open the circuit.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.trip = n }
}

// WithResetTimeout sets how long the circuit stays open before a probe
// is admitted.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.cooldown = d }
}

// NewCircuitBreaker returns a closed breaker that opens after 5
// consecutive failures and probes again 30 seconds later.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:     name,
		trip:     5,
		cooldown: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the label the breaker was created with.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State reports the breaker state, accounting for an elapsed cooldown.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

// Failures reports the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

func (cb *CircuitBreaker) stateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) > cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// admit decides whether a request may run. probe is true when the
// request is testing a half-open circuit.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.stateLocked() {
	case StateOpen:
		return false, ErrCircuitOpen
	case StateHalfOpen:
		return true, nil
	default:
		return false, nil
	}
}

// settle records a request outcome. A failed probe reopens the circuit
// for a full cooldown; any success closes it and clears the count.
func (cb *CircuitBreaker) settle(failed, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !failed {
		cb.failures = 0
		cb.state = StateClosed
		return
	}

	cb.lastFailure = time.Now()
	if probe {
		cb.state = StateOpen
		return
	}
	cb.failures++
	if cb.failures >= cb.trip {
		cb.state = StateOpen
	}
}

// Execute runs fn under the breaker. An open circuit returns
// ErrCircuitOpen without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	if err := fn(); err != nil {
		cb.settle(true, probe)
		return err
	}
	cb.settle(false, probe)
	return nil
}

// CircuitExecuteWithResult runs fn under the breaker, diverting to
// fallback when the circuit is open or a probe fails.
func CircuitExecuteWithResult[T any](cb *CircuitBreaker, fn func() (T, error), fallback func() (T, error)) (T, error) {
	probe, err := cb.admit()
	if err != nil {
		return fallback()
	}
	result, err := fn()
	if err != nil {
		cb.settle(true, probe)
		if probe {
			return fallback()
		}
		return result, err
	}
	cb.settle(false, probe)
	return result, nil
}
