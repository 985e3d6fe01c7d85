// Package telemetry wires the verification core's operations into an
// OpenTelemetry tracer, defaulting to a no-op provider so CLI and library
// callers never pay for instrumentation they haven't configured.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the tracer provider a host process installs.
type Config struct {
	ServiceName    string
	ServiceVersion string
	SampleRate     float64 // 0.0..1.0; 0 disables sampling entirely
}

// DefaultConfig returns a disabled configuration: SampleRate 0 means every
// span is a no-op until a caller opts in.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "pbi-core",
		ServiceVersion: "1.0.0",
		SampleRate:     0,
	}
}

// Provider wraps a tracer and exposes the span helpers the CLI layer uses to
// annotate verification operations.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
}

// New builds a Provider from cfg. With SampleRate 0 it installs
// AlwaysSample()'s inverse (NeverSample), so Start still returns valid,
// cheap no-op spans rather than nil.
func New(cfg Config) *Provider {
	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sampler))
	return &Provider{
		tracerProvider: tp,
		tracer: tp.Tracer(cfg.ServiceName,
			trace.WithInstrumentationVersion(cfg.ServiceVersion),
		),
	}
}

// NoOp returns a Provider whose spans never sample, for callers that want
// the instrumentation call sites present without configuring a backend.
func NoOp() *Provider {
	return New(DefaultConfig())
}

// Shutdown flushes and releases the underlying tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.Shutdown(ctx)
}

// StartSpan starts a span for a verification operation, defaulting to
// SpanKindInternal since the core never performs its own network I/O.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	var tracer trace.Tracer
	if p != nil {
		tracer = p.tracer
	}
	if tracer == nil {
		tracer = otel.Tracer("pbi-core")
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// Track wraps a verification call with a span and records its error, if
// any, and duration as span attributes. The returned func must be called
// exactly once with the operation's outcome.
func (p *Provider) Track(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.StartSpan(ctx, name, attrs...)
	return ctx, func(err error) {
		span.SetAttributes(attribute.String("duration", time.Since(start).String()))
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("outcome", "error"))
			span.SetAttributes(attribute.String("error.type", fmt.Sprintf("%T", err)))
		} else {
			span.SetAttributes(attribute.String("outcome", "ok"))
		}
		span.End()
	}
}
