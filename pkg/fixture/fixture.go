// Package fixture wraps test fixture functions in spans.
//
// Two fixture shapes are supported. A plain fixture produces its value in one
// call and gets one span. A two-phase fixture splits into setup and teardown
// halves and gets one span per phase, named "<fixture> (setup)" and
// "<fixture> (teardown)".
//
// Spans parent to whichever span is carried by the context the fixture is
// invoked with, normally the test span. With tracing disabled the wrappers
// are transparent: the fixture runs unchanged and no spans are recorded.
package fixture

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "otel-extensions-go"

// Func is a plain fixture: it produces its value in a single call.
type Func[T any] func(ctx context.Context) (T, error)

// Teardown releases whatever a two-phase fixture's setup acquired.
type Teardown func(ctx context.Context) error

// SetupFunc is a two-phase fixture: setup returns the value plus the
// teardown to run when the consumer is done with it.
type SetupFunc[T any] func(ctx context.Context) (T, Teardown, error)

// Option mirrors the host's fixture configuration surface; options are
// passed through to every span the wrapper creates.
type Option func(*options)

type options struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

// WithTracer pins the tracer instead of deriving one from the context.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithAttributes attaches constant attributes to the fixture's spans.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) { o.attrs = attrs }
}

// Instrument wraps a plain fixture in a single span named after the fixture.
// A fixture error marks the span and propagates unchanged.
func Instrument[T any](name string, fn Func[T], opts ...Option) Func[T] {
	o := buildOptions(opts)
	return func(ctx context.Context) (T, error) {
		ctx, span := o.start(ctx, name)
		defer span.End()

		value, err := fn(ctx)
		if err != nil {
			markError(span, err)
		}
		return value, err
	}
}

// InstrumentSetup wraps a two-phase fixture. The setup phase runs under a
// "<name> (setup)" span; the returned teardown runs under a separate
// "<name> (teardown)" span when the consumer invokes it. A setup failure
// produces no teardown span; each phase's span ends exactly once.
func InstrumentSetup[T any](name string, fn SetupFunc[T], opts ...Option) SetupFunc[T] {
	o := buildOptions(opts)
	return func(ctx context.Context) (T, Teardown, error) {
		setupCtx, span := o.start(ctx, fmt.Sprintf("%s (setup)", name))

		value, teardown, err := fn(setupCtx)
		if err != nil {
			markError(span, err)
			span.End()
			return value, nil, err
		}
		span.End()

		if teardown == nil {
			return value, nil, nil
		}

		wrapped := func(ctx context.Context) error {
			ctx, span := o.start(ctx, fmt.Sprintf("%s (teardown)", name))
			defer span.End()

			if err := teardown(ctx); err != nil {
				markError(span, err)
				return err
			}
			return nil
		}
		return value, wrapped, nil
	}
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// start opens a span using the pinned tracer, the context span's provider,
// or the global provider, in that order. With no provider configured
// anywhere this is a no-op span.
func (o *options) start(ctx context.Context, name string) (context.Context, trace.Span) {
	tracer := o.tracer
	if tracer == nil {
		if parent := trace.SpanFromContext(ctx); parent.SpanContext().IsValid() {
			tracer = parent.TracerProvider().Tracer(scopeName)
		} else {
			tracer = otel.Tracer(scopeName)
		}
	}
	return tracer.Start(ctx, name, trace.WithAttributes(o.attrs...))
}

func markError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
