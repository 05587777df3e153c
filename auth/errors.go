package auth

import "errors"

// Sentinel errors for credential handling and authentication.
var (
	// ErrMalformedCredentials indicates an offered credential set is missing
	// a field or has a blank one.
	ErrMalformedCredentials = errors.New("auth: malformed credentials")

	// ErrInvalidCredentials indicates the identity service rejected the credentials.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrIdentityUnavailable indicates the identity service could not be
	// reached or returned an unusable response.
	ErrIdentityUnavailable = errors.New("auth: identity service unavailable")

	// ErrNotAuthenticated is returned by consumers that need a Handle and
	// find none in the request context.
	ErrNotAuthenticated = errors.New("auth: not authenticated")

	// ErrNilCredentials indicates a nil credential set was passed.
	ErrNilCredentials = errors.New("auth: credentials are nil")
)
