package observability

import (
	"strings"

	"github.com/smallbiznis/teamspace/internal/config"
	"github.com/spf13/viper"
)

// Config is the observability slice of the process configuration.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	Log       LogConfig
	Telemetry TelemetryConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// TelemetryConfig drives the OTLP trace and metric exporters.
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	Protocol    string
	SampleRatio float64
}

// LoadConfig layers LOG_* and OTEL_* environment variables over the
// application config.
func LoadConfig(cfg config.Config) Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DEPLOYMENT_ENV", cfg.Environment)
	v.SetDefault("SERVICE_VERSION", cfg.AppVersion)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	v.SetDefault("OTEL_SAMPLING_RATIO", 0.1)

	protocol := v.GetString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")
	if strings.TrimSpace(protocol) == "" {
		protocol = v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL")
	}

	service := strings.TrimSpace(cfg.AppName)
	if service == "" {
		service = "teamspace"
	}

	return Config{
		ServiceName: service,
		Environment: strings.TrimSpace(v.GetString("DEPLOYMENT_ENV")),
		Version:     strings.TrimSpace(v.GetString("SERVICE_VERSION")),
		Log: LogConfig{
			Level:  lower(v.GetString("LOG_LEVEL")),
			Format: lower(v.GetString("LOG_FORMAT")),
		},
		Telemetry: TelemetryConfig{
			Enabled:     v.GetBool("OTEL_ENABLED"),
			Endpoint:    strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
			Protocol:    lower(protocol),
			SampleRatio: clampRatio(v.GetFloat64("OTEL_SAMPLING_RATIO")),
		},
	}
}

// Debug is true for debug logging or a local environment.
func (c Config) Debug() bool {
	if c.Log.Level == "debug" {
		return true
	}
	switch lower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
