package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) (*OTelTracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOTelTracer(Config{ServiceName: "test", TracerProvider: tp}), exporter
}

func attrs(kvs []attribute.KeyValue) map[string]attribute.Value {
	out := map[string]attribute.Value{}
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func TestScenarioAndStepSpans(t *testing.T) {
	tracer, exporter := newRecorder(t)

	ctx, root := tracer.StartScenario(context.Background(), "run-1", "pay")
	_, step := tracer.StartStep(ctx, "pay", "bob", 0)
	step.AddEvent("snapshot", attribute.Int64("balance", 5000))
	step.End()
	root.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	stepSpan, rootSpan := spans[0], spans[1]
	assert.Equal(t, "protocol.pay", stepSpan.Name)
	assert.Equal(t, "scenario.run", rootSpan.Name)
	assert.Equal(t, rootSpan.SpanContext.SpanID(), stepSpan.Parent.SpanID())

	a := attrs(stepSpan.Attributes)
	assert.Equal(t, "bob", a["step.actor"].AsString())
	assert.Equal(t, int64(0), a["step.index"].AsInt64())
	require.Len(t, stepSpan.Events, 1)
	assert.Equal(t, "snapshot", stepSpan.Events[0].Name)

	assert.Equal(t, "run-1", attrs(rootSpan.Attributes)["run.id"].AsString())
}

func TestSpanError(t *testing.T) {
	tracer, exporter := newRecorder(t)

	_, span := tracer.StartStep(context.Background(), "accept", "alice", 2)
	span.SetError(nil)
	span.SetError(errors.New("boom"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
}

func TestNoop(t *testing.T) {
	var tr Tracer = Noop{}
	ctx := context.Background()
	got, span := tr.StartScenario(ctx, "r", "s")
	assert.Equal(t, ctx, got)
	span.SetError(errors.New("ignored"))
	span.End()
}
