package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ToolMeta identifies one tool call in spans, metrics and logs.
type ToolMeta struct {
	ID        string // overrides the namespace.name identifier
	Namespace string
	Name      string

	// Session is the MCP session id, empty for session-less calls. It is
	// kept out of metric attributes to bound cardinality.
	Session string
}

// SpanName is tool.exec.<namespace>.<name>, or tool.exec.<name> without a
// namespace.
func (m ToolMeta) SpanName() string {
	if m.Namespace != "" {
		return "tool.exec." + m.Namespace + "." + m.Name
	}
	return "tool.exec." + m.Name
}

// ToolID returns ID when set, otherwise namespace.name.
func (m ToolMeta) ToolID() string {
	if m.ID != "" {
		return m.ID
	}
	if m.Namespace != "" {
		return m.Namespace + "." + m.Name
	}
	return m.Name
}

// Tracer wraps OpenTelemetry tracing with span helpers for tools and the
// auth gate.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for tool execution.
	StartSpan(ctx context.Context, meta ToolMeta) (context.Context, trace.Span)

	// Start starts an internal span with the given name and attributes.
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer. A nil tracer yields a no-op.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

// NopTracer returns a Tracer that records nothing.
func NopTracer() Tracer {
	return NewTracer(nil)
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta ToolMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("tool.id", meta.ToolID()),
		attribute.String("tool.name", meta.Name),
		attribute.Bool("tool.error", false),
	}
	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("tool.namespace", meta.Namespace))
	}
	if meta.Session != "" {
		attrs = append(attrs, attribute.String("mcp.session.id", meta.Session))
	}
	return t.Start(ctx, meta.SpanName(), attrs...)
}

func (t *tracerImpl) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
