package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Flag names recognized by RegisterFlags.
const (
	FlagServiceName   = "otel_service_name"
	FlagSessionName   = "otel_session_name"
	FlagEndpoint      = "otel_endpoint"
	FlagProtocol      = "otel_protocol"
	FlagProcessorType = "otel_processor_type"
	FlagTraceParent   = "otel_traceparent"
)

// envKeys maps recognized environment variables onto config keys. Variables
// not listed here are ignored by the env layer.
var envKeys = map[string]string{
	EnvServiceName:        "service_name",
	EnvSessionName:        "session_name",
	EnvEndpoint:           "endpoint",
	EnvProtocol:           "protocol",
	EnvProcessorType:      "processor_type",
	EnvTraceParent:        "traceparent",
	EnvCertificatePath:    "certificate",
	EnvCustomExporterType: "custom_exporter_type",
}

// RegisterFlags defines the tracing flags on fs. Call before fs.Parse; pass
// the parsed set to Resolve.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagServiceName, "", "OpenTelemetry service name")
	fs.String(FlagSessionName, "", "name for the session span reported")
	fs.String(FlagEndpoint, "", "OpenTelemetry collector receiver endpoint")
	fs.String(FlagProtocol, "", "protocol for the collector receiver (grpc, http/protobuf, custom)")
	fs.String(FlagProcessorType, "", "span processor type (batch, simple)")
	fs.String(FlagTraceParent, "", "W3C traceparent of an existing trace to continue")
}

// Resolve merges flags, environment variables, the optional config file and
// built-in defaults into a ResolvedConfig. fs may be nil when no flag surface
// exists (plain `go test` runs). The only error returned is a
// *ConfigurationError.
func Resolve(fs *pflag.FlagSet) (*ResolvedConfig, error) {
	k := koanf.New(".")

	// Optional YAML file layer, lowest precedence above defaults.
	if path := os.Getenv(EnvConfigFile); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("reading config file %s: %v", path, err)}
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("parsing config file %s: %v", path, err)}
		}
	}

	// Environment layer. The transformer admits only the recognized
	// variables; everything else in the environment is dropped.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("loading environment: %v", err)}
	}

	cfg := &ResolvedConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unmarshaling config: %v", err)}
	}

	// Flag layer wins over everything. Only flags the user actually set
	// override; unset flags leave the lower layers intact.
	if fs != nil {
		applyFlag(fs, FlagServiceName, &cfg.ServiceName)
		applyFlag(fs, FlagSessionName, &cfg.SessionName)
		applyFlag(fs, FlagEndpoint, &cfg.Endpoint)
		applyFlag(fs, FlagProtocol, &cfg.Protocol)
		applyFlag(fs, FlagProcessorType, &cfg.ProcessorType)
		applyFlag(fs, FlagTraceParent, &cfg.TraceParent)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills fields no layer provided. An empty string from any
// layer counts as unset so a blank environment variable cannot wipe a default.
func applyDefaults(cfg *ResolvedConfig) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.SessionName == "" {
		cfg.SessionName = DefaultSessionName()
	}
	if cfg.Protocol == "" {
		cfg.Protocol = ProtocolGRPC
	}
	if cfg.ProcessorType == "" {
		cfg.ProcessorType = ProcessorBatch
	}
}

func applyFlag(fs *pflag.FlagSet, name string, dst *string) {
	if !fs.Changed(name) {
		return
	}
	if v, err := fs.GetString(name); err == nil {
		*dst = v
	}
}
