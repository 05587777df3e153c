package resilience

import (
	"context"
	"errors"
	"time"
)

// TimeoutConfig configures a Timeout.
type TimeoutConfig struct {
	// Timeout bounds one attempt.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout gives each call its own deadline.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a Timeout.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Timeout{config: config}
}

// Execute calls op with a derived deadline. An error from op after that
// deadline fired is joined with ErrTimeout; cancellation of ctx itself is
// returned unchanged so callers can tell the two apart.
func (t *Timeout) Execute(ctx context.Context, op Operation) error {
	attemptCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	err := op(attemptCtx)
	if err == nil || ctx.Err() != nil {
		return err
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}

// Config returns the effective configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}
