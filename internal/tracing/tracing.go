// Package tracing provides OpenTelemetry spans for scenarios and protocol
// steps.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts the harness spans.
type Tracer interface {
	// StartScenario starts the root span of one scenario run.
	StartScenario(ctx context.Context, runID, scenario string) (context.Context, Span)

	// StartStep starts a child span for a protocol operation performed by
	// actor.
	StartStep(ctx context.Context, op, actor string, index int) (context.Context, Span)
}

// Span is an active span.
type Span interface {
	End()
	SetError(err error)
	SetAttributes(attrs ...attribute.KeyValue)
	AddEvent(name string, attrs ...attribute.KeyValue)
}

// Config holds configuration for OTelTracer.
type Config struct {
	ServiceName string
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{ServiceName: "rwaverify"}
}

// OTelTracer implements Tracer with OpenTelemetry.
type OTelTracer struct {
	tracer trace.Tracer
}

var _ Tracer = (*OTelTracer)(nil)

// NewOTelTracer creates a tracer from cfg.
func NewOTelTracer(cfg Config) *OTelTracer {
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &OTelTracer{tracer: tp.Tracer(cfg.ServiceName)}
}

func (t *OTelTracer) StartScenario(ctx context.Context, runID, scenario string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "scenario.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("scenario.name", scenario),
		),
	)
	return ctx, &otelSpan{span: span}
}

func (t *OTelTracer) StartStep(ctx context.Context, op, actor string, index int) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, "protocol."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("step.op", op),
			attribute.String("step.actor", actor),
			attribute.Int("step.index", index),
		),
	)
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetError(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
}

func (s *otelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

func (s *otelSpan) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Noop discards spans.
type Noop struct{}

var _ Tracer = Noop{}

func (Noop) StartScenario(ctx context.Context, _, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (Noop) StartStep(ctx context.Context, _, _ string, _ int) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End()                                   {}
func (noopSpan) SetError(error)                         {}
func (noopSpan) SetAttributes(...attribute.KeyValue)    {}
func (noopSpan) AddEvent(string, ...attribute.KeyValue) {}
