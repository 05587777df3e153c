package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/xbrlmcp/cache"
	"github.com/jonwraymond/xbrlmcp/gate"
	"github.com/jonwraymond/xbrlmcp/resilience"
)

// CacheStatser reports session cache counters.
type CacheStatser interface {
	Stats() cache.Stats
}

// GateStatser reports auth gate counters.
type GateStatser interface {
	Stats() gate.Stats
}

// SessionCacheChecker reports the session cache size and the gate's
// resolution counts. It turns degraded when the gate has hit internal
// faults and has never authenticated a caller.
type SessionCacheChecker struct {
	cache CacheStatser
	gate  GateStatser
}

// NewSessionCacheChecker builds the session_cache checker. Either source may
// be nil.
func NewSessionCacheChecker(c CacheStatser, g GateStatser) *SessionCacheChecker {
	return &SessionCacheChecker{cache: c, gate: g}
}

// Name returns "session_cache".
func (c *SessionCacheChecker) Name() string {
	return "session_cache"
}

// Check reports the current counters.
func (c *SessionCacheChecker) Check(context.Context) Result {
	details := map[string]any{}

	if c.cache != nil {
		s := c.cache.Stats()
		details["entries"] = s.Entries
		details["stores"] = s.Stores
		details["overwrites"] = s.Overwrites
	}

	var faults, authenticated int64
	if c.gate != nil {
		s := c.gate.Stats()
		for _, o := range gate.Outcomes {
			n := s.Outcomes[o]
			details[string(o)] = n
			if o == gate.OutcomeInternalFault {
				faults = n
			} else if o.Authenticated() {
				authenticated += n
			}
		}
		details["exchanges"] = s.Exchanges
	}

	if faults > 0 && authenticated == 0 {
		return Degraded(fmt.Sprintf("%d internal faults and no successful resolution", faults)).WithDetails(details)
	}
	return Healthy("session cache ok").WithDetails(details)
}

// BreakerChecker reports the state of the circuit breaker in front of the
// data API. An open circuit is degraded: the server keeps accepting
// sessions while data calls fail fast.
type BreakerChecker struct {
	name    string
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker builds a checker named name for cb.
func NewBreakerChecker(name string, cb *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: cb}
}

// Name returns the checker name.
func (c *BreakerChecker) Name() string {
	return c.name
}

// Check reports the breaker state.
func (c *BreakerChecker) Check(context.Context) Result {
	snap := c.breaker.Snapshot()
	details := map[string]any{
		"state":    snap.State.String(),
		"failures": snap.Failures,
		"rejected": snap.Rejected,
	}
	if !snap.LastFailure.IsZero() {
		details["last_failure"] = snap.LastFailure.UTC()
	}
	if !snap.RetryAt.IsZero() {
		details["retry_at"] = snap.RetryAt.UTC()
	}

	if snap.State == resilience.StateClosed {
		return Healthy("circuit closed").WithDetails(details)
	}
	return Degraded("circuit " + snap.State.String()).WithDetails(details)
}
