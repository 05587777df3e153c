package resilience

import (
	"context"
	"time"
)

// Operation is one call to an upstream.
type Operation = func(context.Context) error

// Executor runs operations through a fixed stack: the circuit breaker sees
// one call per Execute, retry repeats the call, and the timeout bounds each
// attempt separately.
type Executor struct {
	breaker *CircuitBreaker
	retry   *Retry
	timeout *Timeout

	run func(context.Context, Operation) error
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCircuitBreaker guards the executor with cb. A breaker may be shared
// between executors.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = cb }
}

// WithRetry repeats failed attempts according to r.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout gives every attempt its own deadline of d.
func WithTimeout(d time.Duration) ExecutorOption {
	return WithAttemptTimeout(NewTimeout(TimeoutConfig{Timeout: d}))
}

// WithAttemptTimeout is WithTimeout for a prebuilt Timeout.
func WithAttemptTimeout(t *Timeout) ExecutorOption {
	return func(e *Executor) { e.timeout = t }
}

// NewExecutor builds an executor. With no options Execute calls the
// operation directly.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}

	run := func(ctx context.Context, op Operation) error { return op(ctx) }
	if t := e.timeout; t != nil {
		next := run
		run = func(ctx context.Context, op Operation) error {
			return t.Execute(ctx, func(ctx context.Context) error { return next(ctx, op) })
		}
	}
	if r := e.retry; r != nil {
		next := run
		run = func(ctx context.Context, op Operation) error {
			return r.Execute(ctx, func(ctx context.Context) error { return next(ctx, op) })
		}
	}
	if cb := e.breaker; cb != nil {
		next := run
		run = func(ctx context.Context, op Operation) error {
			return cb.Execute(ctx, func(ctx context.Context) error { return next(ctx, op) })
		}
	}
	e.run = run
	return e
}

// Execute runs op through the configured stack.
func (e *Executor) Execute(ctx context.Context, op Operation) error {
	return e.run(ctx, op)
}

// CircuitBreaker returns the executor's breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker {
	return e.breaker
}
