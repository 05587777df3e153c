// Package gate resolves the authenticated handle for each tool call.
//
// The gate runs once per request, ahead of the tool handler. It reads the
// session identifier assigned by the transport and the credential set
// offered in the request query, consults the session cache, authenticates
// when the cached record cannot be reused, and publishes the resulting
// handle into the request context with auth.WithHandle.
//
// Failures fail open: when credentials are absent, rejected, or the gate
// faults, a nil handle is published and the tool handler still runs. Tools
// decide whether they need a handle. The one exception is a malformed
// credential set (some fields offered, others missing or blank), which is a
// caller bug and is reported to the caller as a tool error.
//
// Every resolution has an explicit Outcome that is logged, counted, and
// recorded on a span.
//
// Concurrent requests for the same session and credential set share a
// single exchange with the identity service unless
// Config.AllowConcurrentAuth is set.
package gate
