package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	tracerName = "branchweight"
	meterName  = "branchweight"
)

// Providers holds the initialized observability providers.
type Providers struct {
	// Tracer is the named tracer for creating spans.
	Tracer trace.Tracer

	// Meter is the named meter for creating instruments.
	Meter metric.Meter

	// Logger is the context-aware structured logger.
	Logger *slog.Logger

	// Shutdown flushes all pending telemetry and releases resources.
	// Must be called before process exit.
	Shutdown func(ctx context.Context) error
}

// shutdownFunc flushes one provider.
type shutdownFunc func(ctx context.Context) error

// noopShutdown is the shutdown for no-op providers.
func noopShutdown(context.Context) error { return nil }

// Init initializes OpenTelemetry tracing, metrics, and structured logging.
// When OTLPEndpoint is empty, no-op providers are used with zero export overhead.
func Init(cfg Config) (Providers, error) {
	cfg = cfg.withDefaults()
	ctx := context.Background()

	res, resErr := buildResource(ctx, cfg)
	if resErr != nil {
		return Providers{}, fmt.Errorf("build resource: %w", resErr)
	}

	tracer, tpShutdown, tpErr := buildTracer(ctx, cfg, res)
	if tpErr != nil {
		return Providers{}, fmt.Errorf("build tracer provider: %w", tpErr)
	}

	meter, mpShutdown, mpErr := buildMeter(ctx, cfg, res)
	if mpErr != nil {
		shutdownErr := tpShutdown(ctx)

		return Providers{}, errors.Join(fmt.Errorf("build meter provider: %w", mpErr), shutdownErr)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(shutdownCtx context.Context) error {
		deadlineCtx, cancel := context.WithTimeout(shutdownCtx, defaultShutdownTimeoutSec*time.Second)
		defer cancel()

		return errors.Join(tpShutdown(deadlineCtx), mpShutdown(deadlineCtx))
	}

	return Providers{
		Tracer:   tracer,
		Meter:    meter,
		Logger:   buildLogger(cfg),
		Shutdown: shutdown,
	}, nil
}

// buildResource constructs the OTel resource describing this process.
func buildResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	}

	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(
			semconv.DeploymentEnvironment(cfg.Environment),
		))
	}

	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	return res, nil
}

// buildTracer constructs the tracer. Without an OTLP endpoint, spans are no-op.
func buildTracer(ctx context.Context, cfg Config, res *resource.Resource) (trace.Tracer, shutdownFunc, error) {
	if cfg.OTLPEndpoint == "" {
		return nooptrace.NewTracerProvider().Tracer(tracerName), noopShutdown, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, expErr := otlptracegrpc.New(ctx, opts...)
	if expErr != nil {
		return nil, nil, fmt.Errorf("otlp trace exporter: %w", expErr)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Tracer(tracerName), tp.Shutdown, nil
}

// buildMeter constructs the meter. The provider aggregates every configured
// reader: the OTLP push exporter when an endpoint is set and the Prometheus
// scrape reader when a diagnostics server is running. With neither,
// instruments are no-op.
func buildMeter(ctx context.Context, cfg Config, res *resource.Resource) (metric.Meter, shutdownFunc, error) {
	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.OTLPEndpoint != "" {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}

		exporter, expErr := otlpmetricgrpc.New(ctx, opts...)
		if expErr != nil {
			return nil, nil, fmt.Errorf("otlp metric exporter: %w", expErr)
		}

		mpOpts = append(mpOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	if cfg.PrometheusReader != nil {
		mpOpts = append(mpOpts, sdkmetric.WithReader(cfg.PrometheusReader))
	}

	// Only the resource option: no reader is configured, so skip the SDK
	// provider entirely.
	if len(mpOpts) == 1 {
		return noopmetric.NewMeterProvider().Meter(meterName), noopShutdown, nil
	}

	mp := sdkmetric.NewMeterProvider(mpOpts...)
	otel.SetMeterProvider(mp)

	return mp.Meter(meterName), mp.Shutdown, nil
}

// buildLogger constructs the slog logger with trace-context injection.
func buildLogger(cfg Config) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})

	return slog.New(NewTracingHandler(handler, cfg.ServiceName, cfg.Environment))
}
