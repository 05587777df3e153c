// Package exporters builds OpenTelemetry exporters and readers by name.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names accepted in configuration. The empty string means None.
const (
	OTLP       = "otlp"
	Stdout     = "stdout"
	Prometheus = "prometheus"
	None       = "none"
)

var (
	// ErrUnknownExporter is returned for a name this package cannot build.
	ErrUnknownExporter = errors.New("exporters: unknown exporter")

	// ErrEndpointNotConfigured is returned for OTLP without an endpoint in
	// the environment.
	ErrEndpointNotConfigured = errors.New("exporters: OTLP endpoint not configured")
)

// TracingNames lists the names NewTracingExporter accepts.
var TracingNames = []string{OTLP, Stdout, None, ""}

// MetricsNames lists the names NewMetricsReader accepts.
var MetricsNames = []string{OTLP, Prometheus, Stdout, None, ""}

func endpointFromEnv(keys ...string) error {
	for _, k := range keys {
		if os.Getenv(k) != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: set one of %v", ErrEndpointNotConfigured, keys)
}

// NewTracingExporter creates a span exporter by name. None yields a nil
// exporter: spans are sampled for context propagation but never exported.
func NewTracingExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case Stdout:
		// Log lines own stdout.
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	case OTLP:
		if err := endpointFromEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx)
	case None, "":
		return nil, nil
	}
	return nil, fmt.Errorf("%w: tracing %q", ErrUnknownExporter, name)
}

// NewMetricsReader creates a metrics reader by name. For Prometheus it also
// returns the scrape handler over a registry private to the reader; every
// other name returns a nil handler. None yields a manual reader that is
// never collected.
func NewMetricsReader(ctx context.Context, name string) (sdkmetric.Reader, http.Handler, error) {
	switch name {
	case Stdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		if err != nil {
			return nil, nil, fmt.Errorf("stdout metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil, nil

	case OTLP:
		if err := endpointFromEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); err != nil {
			return nil, nil, err
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("otlp metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil, nil

	case Prometheus:
		reg := promclient.NewRegistry()
		exp, err := prometheus.New(prometheus.WithRegisterer(reg))
		if err != nil {
			return nil, nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		return exp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil

	case None, "":
		return sdkmetric.NewManualReader(), nil, nil
	}
	return nil, nil, fmt.Errorf("%w: metrics %q", ErrUnknownExporter, name)
}
