package plugin

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// SpanHandle is the opaque handle returned by BeginTest. It owns exactly one
// span, ended exactly once by EndTest; extra EndTest calls are no-ops.
type SpanHandle struct {
	plugin *Plugin
	name   string
	ctx    context.Context
	span   trace.Span
	start  time.Time

	errText string
	stdout  string
	stderr  string

	noop  bool
	ended bool
}

// RecordError attaches failure detail to the test span. Call any time
// between BeginTest and EndTest; the last error wins.
func (h *SpanHandle) RecordError(err error) {
	if h == nil || h.noop || err == nil {
		return
	}
	h.errText = err.Error()
	h.span.RecordError(err)
}

// RecordFailure is RecordError for hosts that only have a message string,
// like testing.T output.
func (h *SpanHandle) RecordFailure(detail string) {
	if h == nil || h.noop || detail == "" {
		return
	}
	h.errText = detail
}

// RecordOutput captures the test's stdout/stderr. Attached to the span only
// when the test did not pass.
func (h *SpanHandle) RecordOutput(stdout, stderr string) {
	if h == nil || h.noop {
		return
	}
	h.stdout = stdout
	h.stderr = stderr
}

// BeginTest opens a span for one test item, child of the session root, and
// returns a context carrying it for nested instrumentation. In disabled mode
// both return values are inert but safe to use.
func (p *Plugin) BeginTest(name string) (context.Context, *SpanHandle) {
	p.mu.Lock()

	if p.state != stateActive || !p.tel.Enabled() {
		ctx := p.sessionCtx
		p.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		return ctx, &SpanHandle{noop: true}
	}

	ctx, span := p.tracer.Start(p.sessionCtx, name)
	span.SetAttributes(attribute.String(attrTestName, name))
	p.mu.Unlock()

	h := &SpanHandle{
		plugin: p,
		name:   name,
		ctx:    ctx,
		span:   span,
		start:  time.Now(),
	}
	p.runHooks(ctx, HookTestStart, map[string]interface{}{"test": name})
	return ctx, h
}

// EndTest records the outcome on the test span and ends it. The span status
// is OK for a pass, ERROR for any failure outcome, unset for a skip; failure
// detail captured on the handle lands in span attributes.
func (p *Plugin) EndTest(h *SpanHandle, outcome Outcome) {
	if h == nil || h.noop || h.ended {
		return
	}
	h.ended = true

	duration := time.Since(h.start)

	attrs := []attribute.KeyValue{
		attribute.String(attrTestStatus, string(outcome)),
		attribute.Float64(attrTestDuration, duration.Seconds()),
	}
	if h.errText != "" {
		attrs = append(attrs, attribute.String(attrTestError, h.errText))
	}
	if outcome != OutcomePassed {
		if h.stdout != "" {
			attrs = append(attrs, attribute.String(attrTestStdout, h.stdout))
		}
		if h.stderr != "" {
			attrs = append(attrs, attribute.String(attrTestStderr, h.stderr))
		}
	}
	h.span.SetAttributes(attrs...)
	h.span.SetStatus(outcome.Status(), h.errText)
	h.span.End()

	p.recordTestMetrics(h.ctx, outcome, duration)
	p.runHooks(h.ctx, HookTestFinish, map[string]interface{}{
		"test":    h.name,
		"outcome": string(outcome),
	})
}

func (p *Plugin) recordTestMetrics(ctx context.Context, outcome Outcome, duration time.Duration) {
	set := metric.WithAttributes(attribute.String(attrTestStatus, string(outcome)))
	if p.testsTotal != nil {
		p.testsTotal.Add(ctx, 1, set)
	}
	if p.testDuration != nil {
		p.testDuration.Record(ctx, duration.Seconds(), set)
	}
}
