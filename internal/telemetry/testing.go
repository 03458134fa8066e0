package telemetry

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/s4v4g3/otel-extensions-go/internal/config"
)

// TestTelemetry records spans in memory so tests can assert on span trees
// without a collector.
type TestTelemetry struct {
	*Telemetry

	SpanRecorder *tracetest.SpanRecorder
}

// NewTestTelemetry creates an enabled pipeline backed by an in-memory span
// recorder. cfg may be nil; a minimal enabled configuration is used then.
func NewTestTelemetry(cfg *config.ResolvedConfig) *TestTelemetry {
	if cfg == nil {
		cfg = &config.ResolvedConfig{
			ServiceName:   config.DefaultServiceName,
			SessionName:   "test session",
			Endpoint:      "localhost:4317",
			Protocol:      config.ProtocolGRPC,
			ProcessorType: config.ProcessorSimple,
		}
	}

	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

	return &TestTelemetry{
		Telemetry: &Telemetry{
			cfg:            cfg,
			log:            zap.NewNop(),
			tracerProvider: tp,
		},
		SpanRecorder: recorder,
	}
}

// Spans returns all ended spans in end order.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return t.SpanRecorder.Ended()
}

// SpanByName finds an ended span by name, or nil if not found.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, span := range t.Spans() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

// AssertSpanExists verifies a span with the given name was recorded.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) == nil {
		tb.Errorf("expected span %q not found, got: %v", name, t.spanNames())
	}
}

// AssertSpanAttribute verifies a span has the expected attribute.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName, key string, expected interface{}) {
	tb.Helper()
	span := t.SpanByName(spanName)
	if span == nil {
		tb.Fatalf("span %q not found", spanName)
	}

	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			got := attrValue(attr.Value)
			if got != expected {
				tb.Errorf("span %q attribute %q: got %v, want %v", spanName, key, got, expected)
			}
			return
		}
	}
	tb.Errorf("span %q missing attribute %q", spanName, key)
}

func (t *TestTelemetry) spanNames() []string {
	spans := t.Spans()
	names := make([]string, len(spans))
	for i, span := range spans {
		names[i] = span.Name()
	}
	return names
}

func attrValue(v attribute.Value) interface{} {
	switch v.Type() {
	case attribute.STRING:
		return v.AsString()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.BOOL:
		return v.AsBool()
	default:
		return v.AsInterface()
	}
}

// CountingExporter counts export and shutdown calls; used to assert the
// session-end flush happens exactly once.
type CountingExporter struct {
	*tracetest.InMemoryExporter

	mu            sync.Mutex
	exportCalls   int
	shutdownCalls int
}

// NewCountingExporter returns a fresh counting exporter.
func NewCountingExporter() *CountingExporter {
	return &CountingExporter{InMemoryExporter: tracetest.NewInMemoryExporter()}
}

// ExportSpans implements trace.SpanExporter.
func (e *CountingExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	e.mu.Lock()
	e.exportCalls++
	e.mu.Unlock()
	return e.InMemoryExporter.ExportSpans(ctx, spans)
}

// Shutdown implements trace.SpanExporter.
func (e *CountingExporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.shutdownCalls++
	e.mu.Unlock()
	return e.InMemoryExporter.Shutdown(ctx)
}

// ExportCalls returns the number of ExportSpans invocations so far.
func (e *CountingExporter) ExportCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exportCalls
}

// ShutdownCalls returns the number of Shutdown invocations so far.
func (e *CountingExporter) ShutdownCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdownCalls
}
