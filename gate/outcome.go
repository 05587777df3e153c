package gate

import (
	"errors"

	"github.com/jonwraymond/xbrlmcp/auth"
)

// Outcome classifies how a request's credentials were resolved.
type Outcome string

const (
	// OutcomeReused means a cached record for the session was reused.
	OutcomeReused Outcome = "reused"

	// OutcomeRefreshed means the identity service issued a new handle that
	// replaced the session's cache entry.
	OutcomeRefreshed Outcome = "refreshed"

	// OutcomeEphemeral means a handle was issued but not cached, because the
	// session could not be resolved or the cache refused the record.
	OutcomeEphemeral Outcome = "ephemeral"

	// OutcomeNoCredentials means the request offered no credentials.
	OutcomeNoCredentials Outcome = "no_credentials"

	// OutcomeMalformedCredentials means credentials were offered with a
	// missing or blank field.
	OutcomeMalformedCredentials Outcome = "malformed_credentials"

	// OutcomeInvalidCredentials means the identity service rejected the credentials.
	OutcomeInvalidCredentials Outcome = "invalid_credentials"

	// OutcomeInternalFault means the identity service was unreachable or
	// something in the gate failed unexpectedly.
	OutcomeInternalFault Outcome = "internal_fault"
)

// Outcomes lists every outcome in a stable order.
var Outcomes = []Outcome{
	OutcomeReused,
	OutcomeRefreshed,
	OutcomeEphemeral,
	OutcomeNoCredentials,
	OutcomeMalformedCredentials,
	OutcomeInvalidCredentials,
	OutcomeInternalFault,
}

func (o Outcome) String() string { return string(o) }

// Authenticated reports whether the outcome carries a handle.
func (o Outcome) Authenticated() bool {
	switch o {
	case OutcomeReused, OutcomeRefreshed, OutcomeEphemeral:
		return true
	default:
		return false
	}
}

// classifyAuthError maps an Authenticator error to an outcome.
func classifyAuthError(err error) Outcome {
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return OutcomeInvalidCredentials
	}
	return OutcomeInternalFault
}

// Resolution is the result of resolving one request.
type Resolution struct {
	// Outcome classifies the resolution.
	Outcome Outcome

	// Handle is the authenticated handle, or nil when Outcome is not
	// Authenticated.
	Handle *auth.Handle

	// SessionID is the session the request belonged to; empty when unresolved.
	SessionID string

	// RequestID correlates log lines and spans for this resolution.
	RequestID string

	// Err describes a failure. It is nil for authenticated outcomes and for
	// OutcomeNoCredentials.
	Err error
}
