// Package config resolves the tracing configuration for a test session.
//
// Each option is looked up in order of precedence: command-line flag,
// environment variable, optional YAML config file, built-in default.
// The result is an immutable ResolvedConfig built once per process.
package config

import (
	"fmt"
	"time"
)

// Protocols accepted for the OTLP exporter transport.
const (
	ProtocolGRPC         = "grpc"
	ProtocolHTTPProtobuf = "http/protobuf"
	ProtocolCustom       = "custom"
)

// Span processor types.
const (
	ProcessorBatch  = "batch"
	ProcessorSimple = "simple"
)

// Environment variables consulted when the corresponding flag is absent.
const (
	EnvServiceName        = "OTEL_SERVICE_NAME"
	EnvSessionName        = "OTEL_SESSION_NAME"
	EnvEndpoint           = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvProtocol           = "OTEL_EXPORTER_OTLP_PROTOCOL"
	EnvProcessorType      = "OTEL_PROCESSOR_TYPE"
	EnvTraceParent        = "TRACEPARENT"
	EnvCertificatePath    = "OTEL_EXPORTER_OTLP_CERTIFICATE"
	EnvCustomExporterType = "OTEL_EXPORTER_CUSTOM_SPAN_EXPORTER_TYPE"
	EnvConfigFile         = "OTEL_TEST_CONFIG_FILE"
)

// DefaultServiceName is used when no service name is configured.
const DefaultServiceName = "otel-extensions-go"

// DefaultSessionName generates the session span name used when neither the
// flag nor the environment variable is set. Overridable so embedders can
// pick their own naming scheme.
var DefaultSessionName = func() string {
	return fmt.Sprintf("go test session %s", time.Now().Format(time.RFC3339))
}

// ResolvedConfig is the merged tracing configuration. Built once by Resolve
// and never mutated afterward.
type ResolvedConfig struct {
	ServiceName        string `koanf:"service_name"`
	SessionName        string `koanf:"session_name"`
	Endpoint           string `koanf:"endpoint"`
	Protocol           string `koanf:"protocol"`
	ProcessorType      string `koanf:"processor_type"`
	TraceParent        string `koanf:"traceparent"`
	CertificatePath    string `koanf:"certificate"`
	CustomExporterType string `koanf:"custom_exporter_type"`
}

// Enabled reports whether tracing is active. With no endpoint configured the
// whole plugin is inert.
func (c *ResolvedConfig) Enabled() bool {
	return c != nil && c.Endpoint != ""
}

// Validate checks enumerated fields and cross-field constraints.
func (c *ResolvedConfig) Validate() error {
	switch c.Protocol {
	case ProtocolGRPC, ProtocolHTTPProtobuf:
	case ProtocolCustom:
		if c.CustomExporterType == "" {
			return &ConfigurationError{
				Reason: fmt.Sprintf("protocol %q requires %s to be set", ProtocolCustom, EnvCustomExporterType),
			}
		}
	default:
		return &ConfigurationError{
			Reason: fmt.Sprintf("unknown protocol %q (expected %q, %q or %q)",
				c.Protocol, ProtocolGRPC, ProtocolHTTPProtobuf, ProtocolCustom),
		}
	}

	switch c.ProcessorType {
	case ProcessorBatch, ProcessorSimple:
	default:
		return &ConfigurationError{
			Reason: fmt.Sprintf("unknown processor type %q (expected %q or %q)",
				c.ProcessorType, ProcessorBatch, ProcessorSimple),
		}
	}

	return nil
}

// ConfigurationError reports invalid or contradictory configuration. It is
// fatal to plugin initialization and surfaced to the caller; everything else
// in this library is best-effort.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid tracing configuration: " + e.Reason
}
