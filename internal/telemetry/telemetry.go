// Package telemetry provides OpenTelemetry integration for wl.
//
// Telemetry is disabled by default and then costs nothing: the providers are
// no-ops. When enabled, spans and metrics go to stdout (telemetry.stdout)
// and metrics additionally to an OTLP/HTTP collector when
// telemetry.otlp-endpoint is set (e.g. localhost:4318).
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/steveyegge/workledger"

// Settings select the exporters.
type Settings struct {
	Enabled      bool
	Stdout       bool
	OTLPEndpoint string

	// Writer receives stdout exports. Defaults to stderr so command output
	// stays clean.
	Writer io.Writer
	// Reader is an extra metric reader, used by tests to collect on demand.
	Reader sdkmetric.Reader
}

// Provider owns the tracer and meter providers for one process.
type Provider struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	shutdownFns    []func(context.Context) error
}

// Init builds providers from s and installs them globally. Disabled
// settings yield no-op providers.
func Init(ctx context.Context, s Settings, serviceName, version string) (*Provider, error) {
	p, err := New(ctx, s, serviceName, version)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)
	return p, nil
}

// New builds providers without touching the globals.
func New(ctx context.Context, s Settings, serviceName, version string) (*Provider, error) {
	if !s.Enabled {
		return &Provider{
			tracerProvider: tracenoop.NewTracerProvider(),
			meterProvider:  metricnoop.NewMeterProvider(),
		}, nil
	}
	if s.Writer == nil {
		s.Writer = os.Stderr
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
		resource.WithProcess(),
	)
	if err != nil && !errors.Is(err, resource.ErrPartialResource) {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	p := &Provider{}
	tp, err := buildTraceProvider(res, s)
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace provider: %w", err)
	}
	p.tracerProvider = tp
	p.shutdownFns = append(p.shutdownFns, tp.Shutdown)

	mp, err := buildMetricProvider(ctx, res, s)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: metric provider: %w", err)
	}
	p.meterProvider = mp
	p.shutdownFns = append(p.shutdownFns, mp.Shutdown)
	return p, nil
}

func buildTraceProvider(res *resource.Resource, s Settings) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if s.Stdout {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(s.Writer), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func buildMetricProvider(ctx context.Context, res *resource.Resource, s Settings) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if s.Stdout {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(s.Writer))
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second)),
		))
	}

	if s.OTLPEndpoint != "" {
		exp, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(s.OTLPEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second)),
		))
	}

	if s.Reader != nil {
		opts = append(opts, sdkmetric.WithReader(s.Reader))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Tracer returns a tracer with the given instrumentation name (or the module scope).
func (p *Provider) Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return p.tracerProvider.Tracer(name)
}

// Meter returns a meter with the given instrumentation name (or the module scope).
func (p *Provider) Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return p.meterProvider.Meter(name)
}

// Shutdown flushes all spans/metrics and shuts down the providers.
// Should be deferred with a short-lived context.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFns {
		errs = append(errs, fn(ctx))
	}
	p.shutdownFns = nil
	return errors.Join(errs...)
}
