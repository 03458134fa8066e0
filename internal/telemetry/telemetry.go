package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/s4v4g3/otel-extensions-go/internal/config"
)

const (
	defaultShutdownTimeout = 5 * time.Second
	defaultMetricInterval  = 15 * time.Second
)

// Telemetry owns the export pipeline for one test session.
//
// A disabled instance (no endpoint configured) hands out no-op providers and
// all lifecycle methods succeed without side effects. Export failures degrade
// the instance instead of failing the caller.
type Telemetry struct {
	cfg *config.ResolvedConfig
	log *zap.Logger

	tracerProvider  *trace.TracerProvider
	meterProvider   *sdkmetric.MeterProvider
	shutdownTimeout time.Duration
}

// Option adjusts pipeline construction.
type Option func(*options)

type options struct {
	logger          *zap.Logger
	spanExporter    trace.SpanExporter
	metricsDisabled bool
	metricInterval  time.Duration
	shutdownTimeout time.Duration
}

// WithLogger routes degradation warnings to log.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithSpanExporter overrides the protocol-selected exporter (for testing).
func WithSpanExporter(exp trace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithoutMetrics skips the metric pipeline entirely.
func WithoutMetrics() Option {
	return func(o *options) { o.metricsDisabled = true }
}

// WithMetricExportInterval sets the periodic reader interval.
func WithMetricExportInterval(d time.Duration) Option {
	return func(o *options) { o.metricInterval = d }
}

// WithShutdownTimeout bounds Shutdown when the caller's context has no deadline.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) { o.shutdownTimeout = d }
}

// New builds the pipeline described by cfg.
//
// The only error path is malformed configuration (*config.ConfigurationError).
// Transport-level exporter failures leave the instance degraded: providers
// stay no-op, a warning is logged, and the test session proceeds.
func New(ctx context.Context, cfg *config.ResolvedConfig, opts ...Option) (*Telemetry, error) {
	o := &options{
		logger:          zap.NewNop(),
		metricInterval:  defaultMetricInterval,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	t := &Telemetry{cfg: cfg, log: o.logger, shutdownTimeout: o.shutdownTimeout}

	if !cfg.Enabled() {
		return t, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := newResource(cfg)

	exporter := o.spanExporter
	if exporter == nil {
		var err error
		exporter, err = newSpanExporter(ctx, cfg)
		var cerr *config.ConfigurationError
		if errors.As(err, &cerr) {
			return nil, err
		}
		if err != nil {
			t.log.Warn("trace exporter unavailable, tracing disabled for this session",
				zap.String("endpoint", cfg.Endpoint), zap.Error(err))
			return t, nil
		}
	}

	t.tracerProvider = newTracerProvider(cfg, res, exporter)
	otel.SetTracerProvider(t.tracerProvider)

	if !o.metricsDisabled && cfg.Protocol != config.ProtocolCustom {
		mp, err := newMeterProvider(ctx, cfg, res, o.metricInterval)
		if err != nil {
			t.log.Warn("metric exporter unavailable, metrics disabled for this session", zap.Error(err))
		} else {
			t.meterProvider = mp
			otel.SetMeterProvider(mp)
		}
	}

	// W3C trace context propagation for child processes and remote parents.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

// Enabled reports whether spans will actually be recorded and exported.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.tracerProvider != nil
}

// Tracer returns a tracer for the given instrumentation scope, no-op when the
// pipeline is disabled or degraded.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if !t.Enabled() {
		return tracenoop.NewTracerProvider().Tracer(name, opts...)
	}
	return t.tracerProvider.Tracer(name, opts...)
}

// Meter returns a meter for the given instrumentation scope.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.meterProvider == nil {
		return metricnoop.NewMeterProvider().Meter(name, opts...)
	}
	return t.meterProvider.Meter(name, opts...)
}

// ContextWithRemoteParent injects the configured traceparent, if any, so the
// session span continues an existing trace instead of starting a new one.
func (t *Telemetry) ContextWithRemoteParent(ctx context.Context) context.Context {
	if t == nil || t.cfg == nil || t.cfg.TraceParent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": t.cfg.TraceParent}
	return propagation.TraceContext{}.Extract(ctx, carrier)
}

// ForceFlush immediately exports all pending telemetry data.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace flush: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric flush: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes buffered spans and stops the providers. Safe to call on a
// disabled instance and more than once; later calls are no-ops inside the SDK.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		timeout := t.shutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
