// Package resilience wraps outbound calls to the XBRL data API.
//
// It provides three composable patterns:
//
//   - Circuit Breaker: stops calling an upstream after repeated failures
//     and probes it again after a reset timeout.
//
//   - Retry: retries transient failures with exponential, linear or
//     constant backoff. Errors wrapped with Permanent are returned at once.
//
//   - Timeout: bounds each attempt.
//
// Token exchanges are never routed through this package. A failed
// exchange is reported to the caller as-is and retried only when the next
// request arrives.
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    MaxFailures:  5,
//	    ResetTimeout: time.Minute,
//	})
//
//	executor := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return fetchFacts(ctx)
//	})
package resilience
