package gate

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jonwraymond/xbrlmcp/auth"
)

// SessionIDFromContext returns the MCP session id carried by ctx, or "" when
// the transport did not attach a session.
func SessionIDFromContext(ctx context.Context) string {
	if s := server.ClientSessionFromContext(ctx); s != nil {
		return s.SessionID()
	}
	return ""
}

// ToolMiddleware returns an mcp-go tool handler middleware that resolves
// credentials before every tool call.
//
// The handle (or nil) is published with auth.WithHandle and the wrapped
// handler's result is returned unchanged. Malformed credentials short-circuit
// with a tool error result.
//
// Usage:
//
//	s := server.NewMCPServer("xbrl", version,
//	    server.WithToolHandlerMiddleware(g.ToolMiddleware()),
//	)
func (g *Gate) ToolMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			res := g.Resolve(ctx, SessionIDFromContext(ctx), auth.QueryFromContext(ctx))
			if res.Outcome == OutcomeMalformedCredentials {
				return mcp.NewToolResultError(res.Err.Error()), nil
			}
			return next(auth.WithHandle(ctx, res.Handle), req)
		}
	}
}

// SessionHeader is the header the streamable HTTP transport uses for the
// session id.
const SessionHeader = server.HeaderKeySessionID

// Middleware is net/http middleware for handlers outside the MCP server.
// It reads the session id from SessionHeader and credentials from the URL
// query, and publishes the handle before calling next. Malformed credentials
// are rejected with 400.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := g.Resolve(r.Context(), r.Header.Get(SessionHeader), r.URL.Query())
		if res.Outcome == OutcomeMalformedCredentials {
			http.Error(w, res.Err.Error(), http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithHandle(r.Context(), res.Handle)))
	})
}
