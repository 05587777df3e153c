package auth

import (
	"context"
	"net/http"
)

// QueryContextFunc copies the request's URL query into the context.
//
// Its signature matches mcp-go's server.HTTPContextFunc, so it can be passed
// directly to server.WithHTTPContextFunc.
func QueryContextFunc(ctx context.Context, r *http.Request) context.Context {
	if r == nil || r.URL == nil {
		return ctx
	}
	return WithQuery(ctx, r.URL.Query())
}

// WithAuthQuery is HTTP middleware that extracts the request's query values
// into the context for use by the auth gate.
//
// Usage:
//
//	mux.Handle("/mcp", auth.WithAuthQuery(mcpHandler))
func WithAuthQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(QueryContextFunc(r.Context(), r)))
	})
}
