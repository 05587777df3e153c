package auth

import "context"

// Authenticator exchanges a credential set for an authenticated Handle.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Authenticate should honor cancellation/deadlines.
// - Errors: a rejection by the identity service wraps ErrInvalidCredentials;
//   an unreachable or misbehaving service wraps ErrIdentityUnavailable.
// - Retries: implementations must not retry on their own.
// - Side effects: one outbound exchange per call.
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Authenticate performs the exchange. creds has already been validated.
	Authenticate(ctx context.Context, creds *Credentials) (*Handle, error)
}

// AuthenticatorFunc is an adapter to allow use of ordinary functions as Authenticators.
type AuthenticatorFunc struct {
	name string
	fn   func(ctx context.Context, creds *Credentials) (*Handle, error)
}

// NewAuthenticatorFunc creates an AuthenticatorFunc.
func NewAuthenticatorFunc(name string, fn func(ctx context.Context, creds *Credentials) (*Handle, error)) *AuthenticatorFunc {
	return &AuthenticatorFunc{name: name, fn: fn}
}

// Name returns the authenticator name.
func (f *AuthenticatorFunc) Name() string {
	return f.name
}

// Authenticate calls the wrapped function.
func (f *AuthenticatorFunc) Authenticate(ctx context.Context, creds *Credentials) (*Handle, error) {
	return f.fn(ctx, creds)
}

var _ Authenticator = (*AuthenticatorFunc)(nil)
