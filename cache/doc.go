// Package cache provides the session credential cache.
//
// It maps a session identifier to the most recent Authentication Record for
// that session and owns the validity decision (IsReusable) that lets a
// request reuse a cached Handle instead of authenticating again.
package cache
