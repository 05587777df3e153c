package auth

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// tokenPrefixLen is how many characters of an access token may appear in logs.
const tokenPrefixLen = 5

// Handle is an authenticated connection to the data service.
//
// A Handle always carries an explicit expiry set at issuance. It is safe for
// concurrent use by multiple tool handlers.
type Handle struct {
	token     *oauth2.Token
	client    *http.Client
	issuedAt  time.Time
	expiresAt time.Time
}

// NewHandle builds a Handle from an issued token.
// If base is nil, http.DefaultClient is used as the underlying transport.
func NewHandle(ctx context.Context, token *oauth2.Token, issuedAt, expiresAt time.Time, base *http.Client) *Handle {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return &Handle{
		token:     token,
		client:    oauth2.NewClient(context.WithoutCancel(ctx), oauth2.StaticTokenSource(token)),
		issuedAt:  issuedAt,
		expiresAt: expiresAt,
	}
}

// Client returns an HTTP client that attaches the access token to every request.
func (h *Handle) Client() *http.Client {
	return h.client
}

// IssuedAt returns when the token was issued.
func (h *Handle) IssuedAt() time.Time {
	return h.issuedAt
}

// ExpiresAt returns when the token stops being valid.
func (h *Handle) ExpiresAt() time.Time {
	return h.expiresAt
}

// Expired reports whether the handle is expired at now.
func (h *Handle) Expired(now time.Time) bool {
	return !h.expiresAt.After(now)
}

// AccessToken returns the raw bearer token.
func (h *Handle) AccessToken() string {
	if h.token == nil {
		return ""
	}
	return h.token.AccessToken
}

// TokenPrefix returns the first few characters of the access token for
// correlating log lines. It never returns the full token.
func (h *Handle) TokenPrefix() string {
	tok := h.AccessToken()
	if len(tok) <= tokenPrefixLen {
		return "..."
	}
	return tok[:tokenPrefixLen] + "..."
}
