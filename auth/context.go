package auth

import (
	"context"
	"net/url"
)

// Context keys for auth-related values.
type contextKey int

const (
	handleKey contextKey = iota
	queryKey
)

// WithHandle returns a new context carrying the resolved handle.
// A nil handle is stored explicitly and means "unauthenticated".
func WithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleKey, h)
}

// HandleFromContext retrieves the handle from the context.
// Returns nil if the request is unauthenticated or no gate ran.
func HandleFromContext(ctx context.Context) *Handle {
	h, _ := ctx.Value(handleKey).(*Handle)
	return h
}

// RequireHandle is HandleFromContext for callers that cannot proceed
// without authentication. It returns ErrNotAuthenticated when absent.
func RequireHandle(ctx context.Context) (*Handle, error) {
	h := HandleFromContext(ctx)
	if h == nil {
		return nil, ErrNotAuthenticated
	}
	return h, nil
}

// WithQuery returns a new context with the transport request's query values.
// These values are used by the gate to extract credentials.
func WithQuery(ctx context.Context, values url.Values) context.Context {
	return context.WithValue(ctx, queryKey, values)
}

// QueryFromContext retrieves the query values from the context.
// Returns nil if none are present.
func QueryFromContext(ctx context.Context) url.Values {
	v, _ := ctx.Value(queryKey).(url.Values)
	return v
}
