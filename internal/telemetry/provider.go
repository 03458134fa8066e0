package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"

	"github.com/s4v4g3/otel-extensions-go/internal/config"
)

// newResource creates a resource describing the instrumented test binary.
// Standalone to avoid schema URL conflicts with resource.Default().
func newResource(cfg *config.ResolvedConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	)
}

// newSpanExporter builds the span exporter selected by cfg.Protocol.
func newSpanExporter(ctx context.Context, cfg *config.ResolvedConfig) (trace.SpanExporter, error) {
	switch cfg.Protocol {
	case config.ProtocolHTTPProtobuf:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(stripScheme(cfg.Endpoint)),
		}
		if insecureEndpoint(cfg) {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else if cfg.CertificatePath != "" {
			tlsCfg, err := tlsConfigFromFile(cfg.CertificatePath)
			if err != nil {
				return nil, err
			}
			opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsCfg))
		}
		return otlptracehttp.New(ctx, opts...)

	case config.ProtocolCustom:
		factory, ok := lookupSpanExporter(cfg.CustomExporterType)
		if !ok {
			return nil, &config.ConfigurationError{
				Reason: fmt.Sprintf("no custom span exporter registered as %q", cfg.CustomExporterType),
			}
		}
		return factory(ctx, cfg)

	default: // grpc
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(stripScheme(cfg.Endpoint)),
		}
		if insecureEndpoint(cfg) {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else if cfg.CertificatePath != "" {
			creds, err := credentials.NewClientTLSFromFile(cfg.CertificatePath, "")
			if err != nil {
				return nil, fmt.Errorf("loading certificate %s: %w", cfg.CertificatePath, err)
			}
			opts = append(opts, otlptracegrpc.WithTLSCredentials(creds))
		}
		return otlptracegrpc.New(ctx, opts...)
	}
}

// newTracerProvider assembles the tracer provider around exp. The processor
// type selects between batching and synchronous export.
func newTracerProvider(cfg *config.ResolvedConfig, res *resource.Resource, exp trace.SpanExporter) *trace.TracerProvider {
	opts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.AlwaysSample())),
	}
	if cfg.ProcessorType == config.ProcessorSimple {
		opts = append(opts, trace.WithSpanProcessor(trace.NewSimpleSpanProcessor(exp)))
	} else {
		opts = append(opts, trace.WithBatcher(exp))
	}
	return trace.NewTracerProvider(opts...)
}

// newMeterProvider builds the OTLP metric pipeline next to the trace one.
// The custom protocol has no metric counterpart; metrics ride over gRPC then.
func newMeterProvider(ctx context.Context, cfg *config.ResolvedConfig, res *resource.Resource, interval time.Duration) (*metric.MeterProvider, error) {
	var exporter metric.Exporter
	var err error

	// Cumulative temporality for Prometheus-compatible backends.
	cumulativeSelector := func(metric.InstrumentKind) metricdata.Temporality {
		return metricdata.CumulativeTemporality
	}

	switch cfg.Protocol {
	case config.ProtocolHTTPProtobuf:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(stripScheme(cfg.Endpoint)),
			otlpmetrichttp.WithTemporalitySelector(cumulativeSelector),
		}
		if insecureEndpoint(cfg) {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		} else if cfg.CertificatePath != "" {
			tlsCfg, tlsErr := tlsConfigFromFile(cfg.CertificatePath)
			if tlsErr != nil {
				return nil, tlsErr
			}
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(tlsCfg))
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	default:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(stripScheme(cfg.Endpoint)),
			otlpmetricgrpc.WithTemporalitySelector(cumulativeSelector),
		}
		if insecureEndpoint(cfg) {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		} else if cfg.CertificatePath != "" {
			creds, credErr := credentials.NewClientTLSFromFile(cfg.CertificatePath, "")
			if credErr != nil {
				return nil, fmt.Errorf("loading certificate %s: %w", cfg.CertificatePath, credErr)
			}
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(creds))
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	}

	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(
			metric.NewPeriodicReader(exporter, metric.WithInterval(interval)),
		),
	)
	return mp, nil
}

// stripScheme removes http:// or https:// from an endpoint URL. The OTLP
// exporters expect host:port, not full URLs.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return strings.TrimSuffix(endpoint, "/")
}

// insecureEndpoint reports whether the transport should skip TLS. Plain
// http:// endpoints and bare host:port endpoints without a certificate are
// insecure; https:// or a configured certificate means TLS.
func insecureEndpoint(cfg *config.ResolvedConfig) bool {
	if strings.HasPrefix(cfg.Endpoint, "https://") {
		return false
	}
	if strings.HasPrefix(cfg.Endpoint, "http://") {
		return true
	}
	return cfg.CertificatePath == ""
}

// tlsConfigFromFile loads a CA bundle for the HTTP exporter transport.
func tlsConfigFromFile(path string) (*tls.Config, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading certificate %s: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("certificate %s: no PEM certificates found", path)
	}
	return &tls.Config{RootCAs: pool}, nil
}
