// Package config loads credentials and connection settings from EMULATOR_* environment
// variables. Run parameters stay on command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "EMULATOR"

// ErrMissingKISCredentials is returned by RequireKIS when the broker keys are unset.
var ErrMissingKISCredentials = errors.New("EMULATOR_KIS_APP_KEY and EMULATOR_KIS_APP_SECRET are required")

// Config represents the complete application configuration.
type Config struct {
	KIS KISConfig `envconfig:"KIS"`

	PostgresDSN   string `envconfig:"POSTGRES_DSN" validate:"omitempty,url"`
	ClickhouseDSN string `envconfig:"CLICKHOUSE_DSN" validate:"omitempty,url,startswith=clickhouse://"`
	MetricsAddr   string `envconfig:"METRICS_ADDR" validate:"omitempty,hostname_port"`
}

// KISConfig contains the broker API settings.
type KISConfig struct {
	AppKey    string  `envconfig:"APP_KEY"`
	AppSecret string  `envconfig:"APP_SECRET"`
	BaseURL   string  `envconfig:"BASE_URL" default:"https://openapi.koreainvestment.com:9443" validate:"required,url"`
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"15" validate:"gte=0"`
}

var configValidator = validator.New()

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks field formats.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// RequireKIS reports whether the broker credentials needed for live fetches are present.
func (c *Config) RequireKIS() error {
	if c.KIS.AppKey == "" || c.KIS.AppSecret == "" {
		return ErrMissingKISCredentials
	}
	return nil
}
