// Package telemetry constructs the tracer and meter providers used across
// the service and exposes Tracer/Meter accessors for them. It does not wrap
// engine operations in spans.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config carries the exporter endpoint settings.
type Config struct {
	ServiceName      string
	OTLPEndpoint     string // empty disables trace export
	EnablePrometheus bool
}

// Providers bundles the constructed tracer and meter providers along with a
// shutdown function that flushes and closes both.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Shutdown       func(context.Context) error
}

// New constructs the service's tracer and meter providers and registers
// them as the global providers, the way this codebase wires shared
// infrastructure once in main and threads it down.
func New(ctx context.Context, cfg Config) (*Providers, error) {
	var traceOpts []sdktrace.TracerProviderOption
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		if err != nil {
			return nil, fmt.Errorf("telemetry: build otlp trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)

	var metricOpts []sdkmetric.Option
	if cfg.EnablePrometheus {
		reader, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: build prometheus exporter: %w", err)
		}
		metricOpts = append(metricOpts, sdkmetric.WithReader(reader))
	}
	mp := sdkmetric.NewMeterProvider(metricOpts...)
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}

	return &Providers{TracerProvider: tp, MeterProvider: mp, Shutdown: shutdown}, nil
}

// Tracer returns the named tracer from the global tracer provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Meter returns the named meter from the global meter provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
