// Package telemetry builds and owns the OpenTelemetry export pipeline for a
// test session.
//
// # Overview
//
// The pipeline is constructed once from a resolved configuration: the span
// exporter is chosen by protocol (grpc, http/protobuf, or a registered custom
// exporter), the span processor by processor type (batch or simple). An
// optional OTLP metric pipeline is built alongside.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("session")
//	ctx, span := tracer.Start(tel.ContextWithRemoteParent(ctx), cfg.SessionName)
//	defer span.End()
//
// # Error Handling
//
// Only malformed configuration is an error. Exporter failures degrade the
// instance to no-op providers so a broken collector can never fail a test run.
//
// # Testing
//
// NewTestTelemetry records spans in memory via tracetest.SpanRecorder; no
// collector is needed to assert on span trees.
package telemetry
