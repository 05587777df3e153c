package resilience

import (
	"context"
	"sync"
	"time"
)

// State is the position of a circuit breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects every call until the cool-down elapses.
	StateOpen
	// StateHalfOpen lets a bounded number of probe calls through.
	StateHalfOpen
)

// String returns the state name used in logs and health details.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is the cool-down between opening and the first probe.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// Probes is the number of concurrent calls admitted while half-open.
	// Default: 1
	Probes int

	// OnStateChange observes transitions. It runs after the breaker's lock
	// is released, so it may call State or Snapshot.
	OnStateChange func(from, to State)

	// IsFailure reports whether err counts against the upstream. Rejections
	// caused by the caller (bad parameters, expired tokens) should return
	// false.
	// Default: every non-nil error.
	IsFailure func(err error) bool

	// Now is the breaker's clock.
	// Default: time.Now
	Now func() time.Time
}

// CircuitBreaker stops calls to an upstream that keeps failing. One breaker
// is shared by every session talking to the same upstream.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	inFlight    int // probes admitted in the current half-open window
	rejected    int64
}

// BreakerSnapshot is a point-in-time view of a CircuitBreaker.
type BreakerSnapshot struct {
	State State

	// Failures counts consecutive failures while closed.
	Failures int

	// LastFailure is the time of the most recent counted failure.
	LastFailure time.Time

	// RetryAt is when an open circuit admits its first probe. Zero unless
	// the circuit is open.
	RetryAt time.Time

	// Rejected counts calls refused with ErrCircuitOpen since creation.
	Rejected int64
}

type transition struct{ from, to State }

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.Probes <= 0 {
		config.Probes = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &CircuitBreaker{config: config}
}

// Execute runs op unless the circuit refuses it, in which case it returns
// ErrCircuitOpen without calling op.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := op(ctx)
	cb.settle(err)
	return err
}

// State returns the current state, moving an open circuit whose cool-down
// has elapsed to half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	changes := cb.advanceLocked(nil)
	s := cb.state
	cb.mu.Unlock()

	cb.notify(changes)
	return s
}

// Snapshot returns the breaker's counters and state.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	changes := cb.advanceLocked(nil)
	snap := BreakerSnapshot{
		State:       cb.state,
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
		Rejected:    cb.rejected,
	}
	if cb.state == StateOpen {
		snap.RetryAt = cb.lastFailure.Add(cb.config.ResetTimeout)
	}
	cb.mu.Unlock()

	cb.notify(changes)
	return snap
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	changes := cb.moveLocked(nil, StateClosed)
	cb.failures = 0
	cb.mu.Unlock()

	cb.notify(changes)
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	changes := cb.advanceLocked(nil)

	var err error
	switch cb.state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.config.Probes {
			err = ErrCircuitOpen
		} else {
			cb.inFlight++
		}
	}
	if err != nil {
		cb.rejected++
	}
	cb.mu.Unlock()

	cb.notify(changes)
	return err
}

func (cb *CircuitBreaker) settle(err error) {
	failed := cb.config.IsFailure(err)

	cb.mu.Lock()
	var changes []transition
	switch cb.state {
	case StateClosed:
		if !failed {
			cb.failures = 0
			break
		}
		cb.failures++
		cb.lastFailure = cb.config.Now()
		if cb.failures >= cb.config.MaxFailures {
			changes = cb.moveLocked(changes, StateOpen)
		}
	case StateHalfOpen:
		if failed {
			cb.lastFailure = cb.config.Now()
			changes = cb.moveLocked(changes, StateOpen)
		} else {
			cb.failures = 0
			changes = cb.moveLocked(changes, StateClosed)
		}
	}
	cb.mu.Unlock()

	cb.notify(changes)
}

// advanceLocked opens the half-open window once the cool-down has elapsed.
func (cb *CircuitBreaker) advanceLocked(changes []transition) []transition {
	if cb.state == StateOpen && cb.config.Now().Sub(cb.lastFailure) >= cb.config.ResetTimeout {
		changes = cb.moveLocked(changes, StateHalfOpen)
	}
	return changes
}

func (cb *CircuitBreaker) moveLocked(changes []transition, to State) []transition {
	if cb.state == to {
		return changes
	}
	changes = append(changes, transition{from: cb.state, to: to})
	cb.state = to
	cb.inFlight = 0
	return changes
}

func (cb *CircuitBreaker) notify(changes []transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, c := range changes {
		cb.config.OnStateChange(c.from, c.to)
	}
}
