package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// newPrometheusReader creates a Prometheus exporter backed by its own
// registry and returns the /metrics scrape handler plus the exporter as an
// sdkmetric.Reader. The reader must be attached to the meter provider built
// by Init; that is what makes instruments registered on Providers.Meter
// visible to scrapes. Each call creates an independent registry to avoid
// collector conflicts when called multiple times.
func newPrometheusReader() (http.Handler, sdkmetric.Reader, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), exporter, nil
}
