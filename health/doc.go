// Package health exposes liveness, readiness and detailed health endpoints.
//
// Checkers report a Status and free-form details. The Aggregator runs them
// in parallel under one timeout; a checker that panics or overruns is
// reported unhealthy instead of blocking the probe.
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewSessionCacheChecker(sessions, g))
//	agg.Register(health.NewBreakerChecker("xbrl_api", breaker))
//	health.RegisterHandlers(mux, agg)
package health
