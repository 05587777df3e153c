package observe

import (
	"errors"

	"github.com/jonwraymond/xbrlmcp/observe/exporters"
)

// Configuration errors returned by Config.Validate.
var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrInvalidSamplePct       = errors.New("observe: sample percentage must be between 0.0 and 1.0")
	ErrInvalidTracingExporter = errors.New("observe: invalid tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: invalid metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: invalid log level")
)

// Sampling bounds for TracingConfig.SamplePct.
const (
	MinSamplePct = 0.0
	MaxSamplePct = 1.0
)

var (
	// ValidTracingExporters lists accepted TracingConfig.Exporter values.
	ValidTracingExporters = exporters.TracingNames

	// ValidMetricsExporters lists accepted MetricsConfig.Exporter values.
	ValidMetricsExporters = exporters.MetricsNames

	// ValidLogLevels lists accepted LoggingConfig.Level values.
	ValidLogLevels = []string{"debug", "info", "warn", "error", ""}
)

// RedactedFields lists log field keys whose values are replaced with
// [REDACTED]. The data service's credential query parameters appear under
// their own names.
var RedactedFields = []string{
	"password",
	"client_secret",
	"secret",
	"token",
	"access_token",
	"refresh_token",
	"api_key",
	"credential",
	"credentials",
	"input",
	"inputs",
}
