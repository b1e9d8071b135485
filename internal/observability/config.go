package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/harvestprice/internal/config"
)

type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string // grpc or http
	OtelSamplingRatio    float64
}

// LoadConfig reads the OTEL_* and LOG_* variables on top of the app config.
// Telemetry export is on by default only in production.
func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName:          firstNonEmpty(cfg.AppName, "harvestprice"),
		Environment:          firstNonEmpty(os.Getenv("DEPLOYMENT_ENV"), cfg.Environment),
		Version:              firstNonEmpty(os.Getenv("SERVICE_VERSION"), cfg.AppVersion),
		LogLevel:             strings.ToLower(firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")),
		LogFormat:            strings.ToLower(firstNonEmpty(os.Getenv("LOG_FORMAT"), "json")),
		OtelExporterEndpoint: firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(firstNonEmpty(
			os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"),
			os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
			"grpc",
		)),
		OtelEnabled:       cfg.IsProduction(),
		OtelSamplingRatio: 0.1,
	}

	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv("OTEL_ENABLED"))); err == nil {
		out.OtelEnabled = v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("OTEL_SAMPLING_RATIO")), 64); err == nil {
		out.OtelSamplingRatio = v
	}
	return out
}

// Debug is true for debug logging or any non-shared environment.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
