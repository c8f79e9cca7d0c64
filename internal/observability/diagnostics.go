package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// DiagnosticsServer exposes health and Prometheus metrics endpoints over HTTP
// for operational monitoring of long accounting runs.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
	reader   sdkmetric.Reader
}

// NewDiagnosticsServer starts an HTTP server at addr with /healthz, /readyz,
// and /metrics endpoints. Reader() must be passed to Init as
// Config.PrometheusReader; instruments land on /metrics only through the
// meter provider the reader is attached to.
func NewDiagnosticsServer(addr string) (*DiagnosticsServer, error) {
	mux := http.NewServeMux()

	mux.Handle("/healthz", healthHandler())
	mux.Handle("/readyz", healthHandler())

	metricsHandler, reader, err := newPrometheusReader()
	if err != nil {
		return nil, fmt.Errorf("create prometheus handler: %w", err)
	}

	mux.Handle("/metrics", metricsHandler)

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Warn("diagnostics server stopped", "error", serveErr)
		}
	}()

	return &DiagnosticsServer{
		server:   srv,
		listener: listener,
		reader:   reader,
	}, nil
}

// Reader returns the Prometheus-backed metric reader feeding /metrics.
func (d *DiagnosticsServer) Reader() sdkmetric.Reader {
	return d.reader
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Close gracefully shuts down the diagnostics server.
func (d *DiagnosticsServer) Close() error {
	err := d.server.Shutdown(context.Background())
	if err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}

// healthHandler reports liveness. The CLI has no degraded states: if the
// process answers, it is healthy.
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
