package plugin

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/s4v4g3/otel-extensions-go/internal/config"
)

var (
	defaultMu     sync.Mutex
	defaultPlugin *Plugin
)

// Main is the TestMain entry point:
//
//	func TestMain(m *testing.M) {
//	    plugin.Main(m)
//	}
func Main(m *testing.M) {
	os.Exit(Run(m))
}

// Run resolves configuration from the environment, wraps m.Run in a session
// span and returns the exit code unchanged. A configuration error is the one
// case that preempts the run; it is reported as a usage error.
func Run(m *testing.M, opts ...Option) int {
	cfg, err := config.Resolve(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 4
	}

	p := New(cfg, opts...)
	ctx := context.Background()
	if err := p.SessionStart(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 4
	}
	setDefault(p)
	defer setDefault(nil)

	code := m.Run()
	p.SessionFinish(ctx, code)
	return code
}

// StartTest opens a span for t and schedules its end via t.Cleanup, so the
// span closes with the right outcome on every exit path, including failures
// and skips. The returned context parents nested spans to the test span.
func StartTest(t *testing.T) context.Context {
	p := Default()
	if p == nil {
		return context.Background()
	}

	ctx, h := p.BeginTest(t.Name())
	t.Cleanup(func() {
		outcome := OutcomePassed
		switch {
		case t.Failed():
			outcome = OutcomeFailed
			h.RecordFailure(fmt.Sprintf("test %s failed", t.Name()))
		case t.Skipped():
			outcome = OutcomeSkipped
		}
		p.EndTest(h, outcome)
	})
	return ctx
}

// Default returns the plugin installed by Run, or nil outside a wrapped
// session.
func Default() *Plugin {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultPlugin
}

func setDefault(p *Plugin) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultPlugin = p
}
