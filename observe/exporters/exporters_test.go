package exporters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewTracingExporter(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr error
		wantNil bool
	}{
		{name: Stdout},
		{name: None, wantNil: true},
		{name: "", wantNil: true},
		{name: OTLP, wantErr: ErrEndpointNotConfigured},
		{name: OTLP, env: map[string]string{"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT": "localhost:4317"}},
		{name: "jaeger", wantErr: ErrUnknownExporter},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
			t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			exp, err := NewTracingExporter(context.Background(), tc.name)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTracingExporter(%q) error = %v", tc.name, err)
			}
			if tc.wantNil != (exp == nil) {
				t.Fatalf("exporter nil = %v, want %v", exp == nil, tc.wantNil)
			}
			if exp != nil {
				_ = exp.Shutdown(context.Background())
			}
		})
	}
}

func TestNewMetricsReader(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	for _, name := range []string{Stdout, None, ""} {
		reader, handler, err := NewMetricsReader(context.Background(), name)
		if err != nil {
			t.Fatalf("NewMetricsReader(%q) error = %v", name, err)
		}
		if reader == nil {
			t.Fatalf("NewMetricsReader(%q) returned nil reader", name)
		}
		if handler != nil {
			t.Errorf("NewMetricsReader(%q) returned a scrape handler", name)
		}
	}

	if _, _, err := NewMetricsReader(context.Background(), OTLP); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Fatalf("error = %v, want ErrEndpointNotConfigured", err)
	}
	if _, _, err := NewMetricsReader(context.Background(), "badvalue"); !errors.Is(err, ErrUnknownExporter) {
		t.Fatalf("error = %v, want ErrUnknownExporter", err)
	}
}

func TestNewMetricsReader_PrometheusHandler(t *testing.T) {
	ctx := context.Background()
	reader, handler, err := NewMetricsReader(ctx, Prometheus)
	if err != nil {
		t.Fatalf("NewMetricsReader(prometheus) error = %v", err)
	}
	if handler == nil {
		t.Fatal("prometheus reader returned no scrape handler")
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(ctx) }()
	counter, err := mp.Meter("test").Int64Counter("auth.gate.resolutions")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(ctx, 3)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "auth_gate_resolutions") {
		t.Errorf("scrape missing counter:\n%s", rec.Body.String())
	}

	// A second reader gets its own registry.
	if _, _, err := NewMetricsReader(ctx, Prometheus); err != nil {
		t.Errorf("second prometheus reader error = %v", err)
	}
}
