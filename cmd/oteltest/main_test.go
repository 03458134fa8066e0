package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/s4v4g3/otel-extensions-go/internal/config"
	"github.com/s4v4g3/otel-extensions-go/internal/telemetry"
	"github.com/s4v4g3/otel-extensions-go/pkg/plugin"
)

func TestRunChild_ExitCodePassThrough(t *testing.T) {
	p := plugin.New(&config.ResolvedConfig{
		Protocol:      config.ProtocolGRPC,
		ProcessorType: config.ProcessorBatch,
	})
	require.NoError(t, p.SessionStart(context.Background()))
	defer p.SessionFinish(context.Background(), 0)

	assert.Equal(t, 0, runChild(context.Background(), p, []string{"sh", "-c", "exit 0"}))
	assert.Equal(t, 7, runChild(context.Background(), p, []string{"sh", "-c", "exit 7"}))
}

func TestChildEnv_NoSession(t *testing.T) {
	p := plugin.New(&config.ResolvedConfig{
		Protocol:      config.ProtocolGRPC,
		ProcessorType: config.ProcessorBatch,
	})

	env := childEnv(p)
	for _, kv := range env {
		assert.False(t, strings.HasPrefix(kv, "TRACEPARENT="),
			"no TRACEPARENT injected without a session span")
	}
}

func TestChildEnv_InjectsTraceparent(t *testing.T) {
	cfg := &config.ResolvedConfig{
		ServiceName:   "oteltest",
		SessionName:   "wrapper session",
		Endpoint:      "localhost:4317",
		Protocol:      config.ProtocolGRPC,
		ProcessorType: config.ProcessorSimple,
	}
	p := plugin.New(cfg, plugin.WithTelemetryOptions(
		telemetry.WithSpanExporter(tracetest.NewInMemoryExporter()),
		telemetry.WithoutMetrics(),
	))
	require.NoError(t, p.SessionStart(context.Background()))
	defer p.SessionFinish(context.Background(), 0)

	var traceparent string
	for _, kv := range childEnv(p) {
		if strings.HasPrefix(kv, "TRACEPARENT=") {
			traceparent = strings.TrimPrefix(kv, "TRACEPARENT=")
		}
	}
	require.NotEmpty(t, traceparent, "session trace context propagates to the child")
	assert.Len(t, strings.Split(traceparent, "-"), 4)
}
