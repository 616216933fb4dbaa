package observability

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Enabled           bool
	TracesEnabled     bool
	MetricsEnabled    bool
	ServiceName       string
	ServiceVersion    string
	Environment       string
	OTLPEndpoint      string
	TraceSamplingRate float64
}

// ResolveConfig builds the OpenTelemetry config from DATAASK_OTEL_*
// environment variables. Export is off unless DATAASK_OTEL_ENABLED is true.
func ResolveConfig() Config {
	cfg := Config{
		Enabled:           false,
		TracesEnabled:     true,
		MetricsEnabled:    true,
		ServiceName:       "dataask",
		ServiceVersion:    "dev",
		Environment:       "development",
		OTLPEndpoint:      "localhost:4317",
		TraceSamplingRate: 1.0,
	}

	overrideBool("DATAASK_OTEL_ENABLED", &cfg.Enabled)
	overrideBool("DATAASK_OTEL_TRACES_ENABLED", &cfg.TracesEnabled)
	overrideBool("DATAASK_OTEL_METRICS_ENABLED", &cfg.MetricsEnabled)
	overrideString("DATAASK_OTEL_SERVICE_NAME", &cfg.ServiceName)
	overrideString("DATAASK_OTEL_ENVIRONMENT", &cfg.Environment)
	overrideString("DATAASK_OTEL_ENDPOINT", &cfg.OTLPEndpoint)
	overrideFloat("DATAASK_OTEL_TRACE_SAMPLING_RATIO", &cfg.TraceSamplingRate)

	if cfg.TraceSamplingRate < 0 {
		cfg.TraceSamplingRate = 0
	}
	if cfg.TraceSamplingRate > 1 {
		cfg.TraceSamplingRate = 1
	}
	cfg.OTLPEndpoint = strings.TrimPrefix(strings.TrimPrefix(cfg.OTLPEndpoint, "http://"), "https://")

	return cfg
}

func overrideString(name string, target *string) {
	if value := os.Getenv(name); value != "" {
		*target = value
	}
}

func overrideBool(name string, target *bool) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	if parsed, err := strconv.ParseBool(value); err == nil {
		*target = parsed
	}
}

func overrideFloat(name string, target *float64) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	if parsed, err := strconv.ParseFloat(value, 64); err == nil {
		*target = parsed
	}
}
