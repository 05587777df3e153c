package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records execution metrics for tools.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records a tool execution with duration and error status.
	RecordExecution(ctx context.Context, meta ToolMeta, duration time.Duration, err error)
}

// GateMetrics records credential resolution outcomes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type GateMetrics interface {
	// RecordResolution counts one gate resolution with its outcome label.
	RecordResolution(ctx context.Context, outcome string, duration time.Duration)

	// RecordAuthentication records one exchange with the identity service.
	RecordAuthentication(ctx context.Context, duration time.Duration, err error)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates tool execution metrics on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"tool.exec.total",
		metric.WithDescription("Total number of tool executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"tool.exec.errors",
		metric.WithDescription("Total number of tool execution errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"tool.exec.duration_ms",
		metric.WithDescription("Tool execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta ToolMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("tool.id", meta.ToolID()),
		attribute.String("tool.name", meta.Name),
	}
	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("tool.namespace", meta.Namespace))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, durationMillis(duration), opt)
}

type gateMetricsImpl struct {
	resolutions  metric.Int64Counter
	resolveHist  metric.Float64Histogram
	authCount    metric.Int64Counter
	authDuration metric.Float64Histogram
}

// NewGateMetrics creates auth gate metrics on the given meter.
func NewGateMetrics(meter metric.Meter) (GateMetrics, error) {
	resolutions, err := meter.Int64Counter(
		"auth.gate.resolutions",
		metric.WithDescription("Credential resolutions by outcome"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, err
	}

	resolveHist, err := meter.Float64Histogram(
		"auth.gate.duration_ms",
		metric.WithDescription("Time spent resolving credentials in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	authCount, err := meter.Int64Counter(
		"auth.authenticate.total",
		metric.WithDescription("Exchanges with the identity service"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	authDuration, err := meter.Float64Histogram(
		"auth.authenticate.duration_ms",
		metric.WithDescription("Identity service exchange duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &gateMetricsImpl{
		resolutions:  resolutions,
		resolveHist:  resolveHist,
		authCount:    authCount,
		authDuration: authDuration,
	}, nil
}

func (m *gateMetricsImpl) RecordResolution(ctx context.Context, outcome string, duration time.Duration) {
	opt := metric.WithAttributes(attribute.String("outcome", outcome))
	m.resolutions.Add(ctx, 1, opt)
	m.resolveHist.Record(ctx, durationMillis(duration), opt)
}

func (m *gateMetricsImpl) RecordAuthentication(ctx context.Context, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.Bool("error", err != nil))
	m.authCount.Add(ctx, 1, opt)
	m.authDuration.Record(ctx, durationMillis(duration), opt)
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics { return noopMetrics{} }

// NopGateMetrics returns GateMetrics that record nothing.
func NopGateMetrics() GateMetrics { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) RecordExecution(context.Context, ToolMeta, time.Duration, error) {}
func (noopMetrics) RecordResolution(context.Context, string, time.Duration)         {}
func (noopMetrics) RecordAuthentication(context.Context, time.Duration, error)      {}
