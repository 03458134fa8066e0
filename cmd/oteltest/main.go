// Oteltest runs a test command inside an OpenTelemetry session span.
//
// It resolves the tracing configuration from flags and environment, opens a
// session span, execs the command (default: go test ./...) with TRACEPARENT
// set so instrumented child test binaries join the trace, and exits with the
// child's exit code unchanged.
//
// Usage:
//
//	# Wrap a whole test run
//	oteltest --otel_endpoint localhost:4317 -- go test ./...
//
//	# Continue an existing trace
//	oteltest --otel_traceparent 00-<trace>-<span>-01 -- go test -run TestFoo ./pkg/...
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/s4v4g3/otel-extensions-go/internal/config"
	"github.com/s4v4g3/otel-extensions-go/pkg/plugin"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	exitCode := 0

	rootCmd := &cobra.Command{
		Use:     "oteltest [flags] -- [command...]",
		Short:   "Run a test command inside an OpenTelemetry session span",
		Version: version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			exitCode, err = runSession(cmd, args)
			return err
		},
		SilenceUsage: true,
	}
	config.RegisterFlags(rootCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == 0 {
			exitCode = 4
		}
	}
	return exitCode
}

func runSession(cmd *cobra.Command, args []string) (int, error) {
	cfg, err := config.Resolve(cmd.Flags())
	if err != nil {
		return 4, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := plugin.New(cfg)
	if err := p.SessionStart(ctx); err != nil {
		return 4, err
	}

	code := runChild(ctx, p, args)

	// Shutdown wants a live context even when the run was interrupted.
	p.SessionFinish(context.Background(), code)
	return code, nil
}

// runChild execs the wrapped command with trace context propagated via the
// TRACEPARENT environment variable.
func runChild(ctx context.Context, p *plugin.Plugin, args []string) int {
	if len(args) == 0 {
		args = []string{"go", "test", "./..."}
	}

	child := exec.CommandContext(ctx, args[0], args[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Env = childEnv(p)

	if err := child.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintln(os.Stderr, err)
		return 3
	}
	return 0
}

// childEnv copies the environment, replacing TRACEPARENT with the session
// span's context so the child continues this trace.
func childEnv(p *plugin.Plugin) []string {
	env := os.Environ()

	sessionCtx := p.SessionContext()
	if sessionCtx == nil {
		return env
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(sessionCtx, carrier)
	traceparent := carrier.Get("traceparent")
	if traceparent == "" {
		return env
	}

	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, config.EnvTraceParent+"=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, config.EnvTraceParent+"="+traceparent)
}
