package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/s4v4g3/otel-extensions-go/internal/config"
)

func enabledConfig() *config.ResolvedConfig {
	return &config.ResolvedConfig{
		ServiceName:   "telemetry-test",
		SessionName:   "session",
		Endpoint:      "localhost:4317",
		Protocol:      config.ProtocolGRPC,
		ProcessorType: config.ProcessorSimple,
	}
}

func TestNew_NoEndpointDisablesTracing(t *testing.T) {
	cfg := &config.ResolvedConfig{
		ServiceName:   "telemetry-test",
		Protocol:      config.ProtocolGRPC,
		ProcessorType: config.ProcessorBatch,
	}

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.False(t, tel.Enabled())

	// Span creation must be side-effect free.
	_, span := tel.Tracer("test").Start(context.Background(), "ignored")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, tel.ForceFlush(context.Background()))
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_SpanExporterOverride(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()

	tel, err := New(context.Background(), enabledConfig(),
		WithSpanExporter(exp), WithoutMetrics())
	require.NoError(t, err)
	assert.True(t, tel.Enabled())

	_, span := tel.Tracer("test").Start(context.Background(), "work")
	span.End()

	// Simple processor exports synchronously on End.
	require.Len(t, exp.GetSpans(), 1)
	assert.Equal(t, "work", exp.GetSpans()[0].Name)

	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_BatchProcessorFlushesOnShutdown(t *testing.T) {
	cfg := enabledConfig()
	cfg.ProcessorType = config.ProcessorBatch

	exp := NewCountingExporter()
	tel, err := New(context.Background(), cfg, WithSpanExporter(exp), WithoutMetrics())
	require.NoError(t, err)

	_, span := tel.Tracer("test").Start(context.Background(), "buffered")
	span.End()

	require.NoError(t, tel.Shutdown(context.Background()))

	assert.Equal(t, 1, exp.ExportCalls(), "batched span should export exactly once at shutdown")
	assert.Equal(t, 1, exp.ShutdownCalls())
	require.Len(t, exp.GetSpans(), 1)
	assert.Equal(t, "buffered", exp.GetSpans()[0].Name)
}

func TestNew_CustomProtocolUnregistered(t *testing.T) {
	cfg := enabledConfig()
	cfg.Protocol = config.ProtocolCustom
	cfg.CustomExporterType = "no-such-exporter"

	_, err := New(context.Background(), cfg)
	var cerr *config.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "no-such-exporter")
}

func TestNew_CustomProtocolRegistered(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	RegisterSpanExporter("inmemory-test", func(ctx context.Context, cfg *config.ResolvedConfig) (sdktrace.SpanExporter, error) {
		return exp, nil
	})

	cfg := enabledConfig()
	cfg.Protocol = config.ProtocolCustom
	cfg.CustomExporterType = "inmemory-test"

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, tel.Enabled())

	_, span := tel.Tracer("test").Start(context.Background(), "custom")
	span.End()
	require.Len(t, exp.GetSpans(), 1)

	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_ExporterFailureDegrades(t *testing.T) {
	RegisterSpanExporter("failing-test", func(ctx context.Context, cfg *config.ResolvedConfig) (sdktrace.SpanExporter, error) {
		return nil, errors.New("dial tcp 127.0.0.1:4317: connection refused")
	})

	cfg := enabledConfig()
	cfg.Protocol = config.ProtocolCustom
	cfg.CustomExporterType = "failing-test"

	core, logs := observer.New(zap.WarnLevel)
	tel, err := New(context.Background(), cfg, WithLogger(zap.New(core)))
	require.NoError(t, err, "transport failures must not surface as errors")
	require.NotNil(t, tel)
	assert.False(t, tel.Enabled())

	// Downstream span creation stays side-effect free.
	_, span := tel.Tracer("test").Start(context.Background(), "ignored")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	warnings := logs.FilterMessage("trace exporter unavailable, tracing disabled for this session")
	require.Equal(t, 1, warnings.Len())

	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestTelemetry_ContextWithRemoteParent(t *testing.T) {
	cfg := enabledConfig()
	cfg.TraceParent = "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"

	tel, err := New(context.Background(), cfg,
		WithSpanExporter(tracetest.NewInMemoryExporter()), WithoutMetrics())
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	ctx := tel.ContextWithRemoteParent(context.Background())
	_, span := tel.Tracer("test").Start(ctx, "continued")
	defer span.End()

	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", span.SpanContext().TraceID().String(),
		"session span should continue the configured trace")
}

func TestTelemetry_ContextWithRemoteParentUnset(t *testing.T) {
	tel, err := New(context.Background(), enabledConfig(),
		WithSpanExporter(tracetest.NewInMemoryExporter()), WithoutMetrics())
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	ctx := context.Background()
	assert.Equal(t, ctx, tel.ContextWithRemoteParent(ctx))
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Enabled()
		_ = tel.Meter("test")
		_ = tel.ContextWithRemoteParent(context.Background())
		_ = tel.ForceFlush(context.Background())
		_ = tel.Shutdown(context.Background())
	})
	assert.False(t, tel.Enabled())
}

func TestTelemetry_ShutdownWithDeadline(t *testing.T) {
	tel, err := New(context.Background(), enabledConfig(),
		WithSpanExporter(tracetest.NewInMemoryExporter()), WithoutMetrics())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, tel.Shutdown(ctx))
}

func TestTestTelemetry_RecordsSpanTree(t *testing.T) {
	tt := NewTestTelemetry(nil)
	defer tt.Shutdown(context.Background())

	require.True(t, tt.Enabled())

	ctx, root := tt.Tracer("harness").Start(context.Background(), "session")
	_, child := tt.Tracer("harness").Start(ctx, "test_login")
	child.SetAttributes(attribute.String("tests.name", "test_login"))
	child.End()
	root.End()

	require.Len(t, tt.Spans(), 2)
	tt.AssertSpanExists(t, "session")
	tt.AssertSpanExists(t, "test_login")
	tt.AssertSpanAttribute(t, "test_login", "tests.name", "test_login")

	recorded := tt.SpanByName("test_login")
	require.NotNil(t, recorded)
	assert.Equal(t, root.SpanContext().SpanID(), recorded.Parent().SpanID(),
		"test span parents to the session span")
	assert.Nil(t, tt.SpanByName("no-such-span"))
}

func TestRegisterSpanExporter_Replaces(t *testing.T) {
	first := tracetest.NewInMemoryExporter()
	second := tracetest.NewInMemoryExporter()

	RegisterSpanExporter("replace-test", func(ctx context.Context, cfg *config.ResolvedConfig) (sdktrace.SpanExporter, error) {
		return first, nil
	})
	RegisterSpanExporter("replace-test", func(ctx context.Context, cfg *config.ResolvedConfig) (sdktrace.SpanExporter, error) {
		return second, nil
	})

	factory, ok := lookupSpanExporter("replace-test")
	require.True(t, ok)
	exp, err := factory(context.Background(), enabledConfig())
	require.NoError(t, err)
	assert.Same(t, second, exp)
}
