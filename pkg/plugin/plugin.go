package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/s4v4g3/otel-extensions-go/internal/config"
	"github.com/s4v4g3/otel-extensions-go/internal/logging"
	"github.com/s4v4g3/otel-extensions-go/internal/telemetry"
)

const scopeName = "otel-extensions-go"

type sessionState int

const (
	stateUninitialized sessionState = iota
	stateActive
	stateEnded
)

// Plugin instruments one test session. Create with New, then drive it via
// SessionStart / BeginTest / EndTest / SessionFinish.
type Plugin struct {
	cfg   *config.ResolvedConfig
	log   *logging.Logger
	hooks *HookManager

	telOpts []telemetry.Option

	mu          sync.Mutex
	state       sessionState
	tel         *telemetry.Telemetry
	tracer      trace.Tracer
	sessionCtx  context.Context
	sessionSpan trace.Span

	testsTotal   metric.Int64Counter
	testDuration metric.Float64Histogram
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithLogger replaces the default stderr logger.
func WithLogger(log *logging.Logger) Option {
	return func(p *Plugin) { p.log = log }
}

// WithHooks installs a hook manager with user callbacks.
func WithHooks(hooks *HookManager) Option {
	return func(p *Plugin) { p.hooks = hooks }
}

// WithTelemetryOptions forwards options to pipeline construction. Mostly for
// tests injecting an in-memory exporter.
func WithTelemetryOptions(opts ...telemetry.Option) Option {
	return func(p *Plugin) { p.telOpts = append(p.telOpts, opts...) }
}

// New creates a plugin for the given resolved configuration. cfg must come
// from config.Resolve (or be equivalent); it is never mutated.
func New(cfg *config.ResolvedConfig, opts ...Option) *Plugin {
	p := &Plugin{
		cfg:   cfg,
		hooks: NewHookManager(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
		if err != nil {
			logger = logging.NewNop()
		}
		p.log = logger.Named("otel-test")
	}
	return p
}

// Hooks returns the plugin's hook manager for callback registration.
func (p *Plugin) Hooks() *HookManager {
	return p.hooks
}

// SessionContext returns the context carrying the session span, for
// propagation to child processes. Nil before SessionStart.
func (p *Plugin) SessionContext() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionCtx
}

// Enabled reports whether spans are being recorded for this session.
func (p *Plugin) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == stateActive && p.tel.Enabled()
}

// SessionStart builds the export pipeline and opens the session root span.
//
// With no endpoint configured this is the disabled mode: the call succeeds,
// and every later span operation is a no-op. The only error path is
// malformed configuration.
func (p *Plugin) SessionStart(ctx context.Context) error {
	p.mu.Lock()

	if p.state != stateUninitialized {
		p.mu.Unlock()
		return fmt.Errorf("session already started")
	}

	tel, err := telemetry.New(ctx, p.cfg, append([]telemetry.Option{
		telemetry.WithLogger(p.log.Underlying()),
	}, p.telOpts...)...)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.tel = tel
	p.sessionCtx = ctx
	p.state = stateActive

	if !tel.Enabled() {
		p.mu.Unlock()
		return nil
	}

	p.tracer = tel.Tracer(scopeName)
	ctx = tel.ContextWithRemoteParent(ctx)
	p.sessionCtx, p.sessionSpan = p.tracer.Start(ctx, p.cfg.SessionName)
	// Run IDs distinguish reruns of the same session name.
	p.sessionSpan.SetAttributes(attribute.String(attrRunID, uuid.NewString()))
	sessionCtx := p.sessionCtx

	p.initInstruments()
	p.mu.Unlock()

	// Hooks run outside the lock so callbacks may use the plugin.
	p.runHooks(sessionCtx, HookSessionStart, map[string]interface{}{
		"session": p.cfg.SessionName,
	})
	return nil
}

// SessionFinish records the session outcome derived from the test binary's
// exit code, ends the root span and shuts the pipeline down so no buffered
// spans are lost. Safe to call when SessionStart was a no-op; extra calls do
// nothing.
func (p *Plugin) SessionFinish(ctx context.Context, exitCode int) {
	p.mu.Lock()

	if p.state != stateActive {
		p.mu.Unlock()
		return
	}
	p.state = stateEnded

	outcome := ExitCodeOutcome(exitCode)

	if p.sessionSpan != nil {
		p.sessionSpan.SetAttributes(attribute.String(attrTestStatus, string(outcome)))
		p.sessionSpan.SetStatus(outcome.Status(), "")
		traceID := p.sessionSpan.SpanContext().TraceID()
		p.log.Info("test session trace recorded",
			zap.String("trace_id", traceID.String()),
			zap.String("status", string(outcome)))
		p.sessionSpan.End()
	}
	tel := p.tel
	p.mu.Unlock()

	p.runHooks(ctx, HookSessionFinish, map[string]interface{}{
		"session": p.cfg.SessionName,
		"outcome": string(outcome),
	})

	if err := tel.Shutdown(ctx); err != nil {
		p.log.Warn("telemetry shutdown incomplete, spans may be lost", zap.Error(err))
	}
}

// initInstruments creates the session metric instruments. Metric trouble is
// never fatal.
func (p *Plugin) initInstruments() {
	meter := p.tel.Meter(scopeName)

	var err error
	p.testsTotal, err = meter.Int64Counter("tests.total",
		metric.WithDescription("Number of test items completed, by outcome"))
	if err != nil {
		p.log.Warn("creating tests.total counter", zap.Error(err))
	}
	p.testDuration, err = meter.Float64Histogram("tests.duration",
		metric.WithDescription("Wall-clock duration of test items"),
		metric.WithUnit("s"))
	if err != nil {
		p.log.Warn("creating tests.duration histogram", zap.Error(err))
	}
}

// runHooks executes callbacks for a lifecycle point, suppressing errors.
func (p *Plugin) runHooks(ctx context.Context, hookType HookType, data map[string]interface{}) {
	if p.hooks == nil {
		return
	}
	if err := p.hooks.Execute(ctx, hookType, data); err != nil {
		p.log.Warn("lifecycle hook failed", zap.String("hook", string(hookType)), zap.Error(err))
	}
}
