package observability

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/tetkool/concierge/internal/config"
)

const instrumentationName = "github.com/tetkool/concierge"

// Provider holds the tracer and meter used across the service. Both are no-ops
// when tracing is disabled.
type Provider struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	shutdownFuncs []func(context.Context) error
}

// Setup initializes OTLP tracing and metrics when ENABLE_TRACING is set.
func Setup(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Provider, error) {
	provider := &Provider{
		Tracer: tracenoop.NewTracerProvider().Tracer(instrumentationName),
		Meter:  metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	if !cfg.EnableTracing {
		log.Info().Msg("tracing disabled")
		return provider, nil
	}

	endpoint, insecure, err := parseEndpoint(cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	provider.shutdownFuncs = append(provider.shutdownFuncs, tp.Shutdown)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	provider.Tracer = tp.Tracer(instrumentationName)

	metricExporter, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	provider.shutdownFuncs = append(provider.shutdownFuncs, mp.Shutdown)
	otel.SetMeterProvider(mp)
	provider.Meter = mp.Meter(instrumentationName)

	log.Info().Str("endpoint", endpoint).Bool("insecure", insecure).Msg("tracing enabled")
	return provider, nil
}

// Shutdown flushes and stops every initialized provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdownFuncs) - 1; i >= 0; i-- {
		if err := p.shutdownFuncs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdownFuncs = nil
	return errors.Join(errs...)
}

// parseEndpoint accepts "host:port" or a URL and returns the host:port the
// exporters expect plus whether plain HTTP should be used.
func parseEndpoint(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required when ENABLE_TRACING is true")
	}
	if !strings.Contains(raw, "://") {
		return raw, true, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse OTEL_EXPORTER_OTLP_ENDPOINT: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT has no host: %q", raw)
	}
	return u.Host, u.Scheme != "https", nil
}
