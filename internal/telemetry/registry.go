package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/s4v4g3/otel-extensions-go/internal/config"
)

// SpanExporterFactory builds a span exporter for the custom protocol.
type SpanExporterFactory func(ctx context.Context, cfg *config.ResolvedConfig) (trace.SpanExporter, error)

var (
	exportersMu sync.RWMutex
	exporters   = make(map[string]SpanExporterFactory)
)

// RegisterSpanExporter makes a factory selectable via
// OTEL_EXPORTER_CUSTOM_SPAN_EXPORTER_TYPE. Later registrations under the same
// name replace earlier ones.
func RegisterSpanExporter(name string, factory SpanExporterFactory) {
	exportersMu.Lock()
	defer exportersMu.Unlock()
	exporters[name] = factory
}

func lookupSpanExporter(name string) (SpanExporterFactory, bool) {
	exportersMu.RLock()
	defer exportersMu.RUnlock()
	factory, ok := exporters[name]
	return factory, ok
}
