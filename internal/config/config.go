package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Observability ObservabilityConfig
	Hasher        HasherConfig
}

// ServerConfig holds HTTP server configuration, read from SERVER_*.
type ServerConfig struct {
	Host            string        `default:"0.0.0.0"`
	Port            string        `default:"8080" validate:"required,numeric"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"0s" validate:"gte=0"`
	IdleTimeout     time.Duration `split_words:"true" default:"60s"`
	RequestTimeout  time.Duration `split_words:"true" default:"60s" validate:"gt=0"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s" validate:"gt=0"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*" validate:"min=1"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// ObservabilityConfig holds logging, tracing and metrics configuration
type ObservabilityConfig struct {
	LogLevel       string  `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat      string  `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	OTELEnabled    bool    `envconfig:"OTEL_ENABLED" default:"false"`
	ServiceName    string  `envconfig:"OTEL_SERVICE_NAME" default:"passhash" validate:"required"`
	ServiceVersion string  `envconfig:"OTEL_SERVICE_VERSION" default:"0.1.0"`
	SamplingRate   float64 `envconfig:"OTEL_SAMPLING_RATE" default:"1" validate:"gt=0,lte=1"`
	MetricsEnabled bool    `envconfig:"METRICS_ENABLED" default:"true"`
}

// HasherConfig holds hash engine settings, read from HASHER_*.
type HasherConfig struct {
	SaltLength uint32 `split_words:"true" default:"16" validate:"min=8,max=1024"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	sections := []struct {
		prefix string
		spec   any
	}{
		{"SERVER", &cfg.Server},
		{"", &cfg.Observability},
		{"HASHER", &cfg.Hasher},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.spec); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	cfg.Observability.LogLevel = strings.ToLower(cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = strings.ToLower(cfg.Observability.LogFormat)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration
func (c *Config) Validate() error {
	err := validate.Struct(c)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return err
}
