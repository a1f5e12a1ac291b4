// Package telemetry sets up the OpenTelemetry providers behind the shell's
// HTTP instrumentation. Metrics are exported through the shell's Prometheus
// registry so they appear on /metrics next to the camshell_* collectors.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Providers holds the tracer and meter providers used by Instrument.
type Providers struct {
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
}

// New creates providers whose metrics are registered on reg. Trace options
// are passed to the tracer provider; without a span processor spans are
// created for propagation only.
func New(reg prometheus.Registerer, traceOpts ...sdktrace.TracerProviderOption) (*Providers, error) {
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(reg),
		otelprom.WithoutTargetInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}
	return &Providers{
		tracer: sdktrace.NewTracerProvider(traceOpts...),
		meter:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
	}, nil
}

// TracerProvider returns the tracer provider.
func (p *Providers) TracerProvider() trace.TracerProvider {
	return p.tracer
}

// MeterProvider returns the meter provider.
func (p *Providers) MeterProvider() metric.MeterProvider {
	return p.meter
}

// Instrument wraps h so every request gets a server span and HTTP duration
// and size metrics.
func (p *Providers) Instrument(h http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(h, operation,
		otelhttp.WithTracerProvider(p.tracer),
		otelhttp.WithMeterProvider(p.meter),
	)
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(p.tracer.Shutdown(ctx), p.meter.Shutdown(ctx))
}
