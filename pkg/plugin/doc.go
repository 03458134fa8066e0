// Package plugin wraps a test session and each test in OpenTelemetry spans.
//
// # Overview
//
// One Plugin instance covers one test session. The host test runner drives it
// through four integration points: SessionStart, SessionFinish, BeginTest and
// EndTest. The testing-package glue in this package (Run, StartTest) invokes
// those methods from TestMain and t.Cleanup, but the core is fully drivable
// without a real runner.
//
// # Usage
//
//	func TestMain(m *testing.M) {
//	    plugin.Main(m)
//	}
//
//	func TestFetch(t *testing.T) {
//	    ctx := plugin.StartTest(t)
//	    // ... use ctx so nested spans parent to the test span
//	}
//
// With no OTEL_EXPORTER_OTLP_ENDPOINT configured the plugin is inert: no
// spans are created and tests run exactly as they would without it.
//
// # Span hierarchy
//
// The session span is the root. Test spans are children of the session span.
// Fixture spans (package fixture) are children of whichever test span's
// context they receive.
//
// # Error Handling
//
// Only malformed configuration fails SessionStart. Everything after that is
// best-effort: export failures are logged and suppressed, test failures are
// recorded on spans and propagate to the host unchanged, and the process exit
// code is never altered by instrumentation trouble.
package plugin
