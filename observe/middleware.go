package observe

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ErrToolResult marks a tool call that returned a result flagged as an error.
var ErrToolResult = errors.New("tool returned an error result")

// Middleware wraps tool calls with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: the returned handler is safe for concurrent use.
//   - Context: the span context is propagated to the wrapped handler.
//   - Errors: results and errors from the wrapped handler are returned unchanged.
type Middleware struct {
	tracer    Tracer
	metrics   Metrics
	logger    Logger
	namespace string
	now       func() time.Time
}

// NewMiddleware creates a new Middleware with the given observability components.
// Nil components are replaced with no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNamespace sets the namespace recorded for every wrapped tool.
func (m *Middleware) WithNamespace(ns string) *Middleware {
	m.namespace = ns
	return m
}

// ToolMiddleware returns an mcp-go tool handler middleware.
func (m *Middleware) ToolMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			meta := ToolMeta{Namespace: m.namespace, Name: req.Params.Name}
			if session := server.ClientSessionFromContext(ctx); session != nil {
				meta.Session = session.SessionID()
			}

			ctx, span := m.tracer.StartSpan(ctx, meta)
			start := m.now()

			result, err := next(ctx, req)

			duration := m.now().Sub(start)
			status := err
			if status == nil && result != nil && result.IsError {
				status = ErrToolResult
			}

			m.tracer.EndSpan(span, status)
			m.metrics.RecordExecution(ctx, meta, duration, status)

			toolLogger := m.logger.WithTool(meta)
			fields := []Field{F("duration_ms", durationMillis(duration))}
			if status != nil {
				fields = append(fields, F("error", status.Error()))
				toolLogger.Warn(ctx, "tool execution failed", fields...)
			} else {
				toolLogger.Info(ctx, "tool execution completed", fields...)
			}

			return result, err
		}
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
