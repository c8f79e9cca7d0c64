// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for the branchweight CLI.
package observability

import (
	"log/slog"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	// defaultServiceName is the default OTel service name.
	defaultServiceName = "branchweight"

	// defaultShutdownTimeoutSec is the default telemetry shutdown timeout in seconds.
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "dev", "ci").
	Environment string

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables export; providers become no-op.
	OTLPEndpoint string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// PrometheusReader, when non-nil, is attached to the meter provider so
	// run instruments are collectable by /metrics scrapes. Provided by
	// DiagnosticsServer.Reader().
	PrometheusReader sdkmetric.Reader
}

// withDefaults returns a copy of cfg with empty fields filled in.
func (cfg Config) withDefaults() Config {
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}

	return cfg
}
