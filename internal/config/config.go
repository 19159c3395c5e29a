// Package config loads application configuration from an optional config
// file, a .env file, and LONDONAIR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/londonair/londonair/internal/database"
	"github.com/londonair/londonair/internal/worker"
)

// EnvPrefix is prepended to every environment variable, with "." mapped to "_".
const EnvPrefix = "LONDONAIR"

// Config is the full application configuration.
type Config struct {
	Env       string          `mapstructure:"env"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	DB        database.Config `mapstructure:"db"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Populate  PopulateConfig  `mapstructure:"populate"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequireTLS      bool          `mapstructure:"require_tls"`
}

// UpstreamConfig points at the London Air API.
type UpstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Proxy   string        `mapstructure:"proxy"`
	Timeout time.Duration `mapstructure:"timeout"`
	Group   string        `mapstructure:"group"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// PopulateConfig controls the batch populator.
type PopulateConfig struct {
	Steps           []string `mapstructure:"steps"`
	ExcludedSites   []string `mapstructure:"excluded_sites"`
	SpeciesRequired bool     `mapstructure:"species_required"`
}

// WorkerConfig converts the populate section for the given upstream group.
// Steps must already have passed Validate.
func (c PopulateConfig) WorkerConfig(group string) worker.PopulateConfig {
	steps := make([]worker.Step, 0, len(c.Steps))
	for _, name := range c.Steps {
		if step, err := worker.ParseStep(name); err == nil {
			steps = append(steps, step)
		}
	}
	return worker.PopulateConfig{
		Group:           group,
		Steps:           steps,
		ExcludedSites:   c.ExcludedSites,
		SpeciesRequired: c.SpeciesRequired,
	}
}

// PubSubConfig controls the populate trigger subscription.
type PubSubConfig struct {
	ProjectID    string `mapstructure:"project_id"`
	Subscription string `mapstructure:"subscription"`
}

// SetDefaults registers every key with its default. Keys must be registered
// for environment variables to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("log.level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.require_tls", false)

	v.SetDefault("upstream.base_url", "https://api.erg.kcl.ac.uk/AirQuality")
	v.SetDefault("upstream.proxy", "")
	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.group", "London")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "londonair")
	v.SetDefault("db.password", "localdev")
	v.SetDefault("db.name", "londonair")
	v.SetDefault("db.ssl_mode", "disable")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("populate.steps", worker.StepNames())
	v.SetDefault("populate.excluded_sites", []string{})
	v.SetDefault("populate.species_required", false)

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.subscription", "londonair-populate")
}

// Load reads configuration into v and returns it decoded. cfgFile may be
// empty, in which case ./config.yaml and /etc/londonair/config.yaml are tried
// and a missing file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(".env")

	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/londonair/")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream.base_url is required")
	}
	if c.Upstream.Group == "" {
		return errors.New("upstream.group is required")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	for _, step := range c.Populate.Steps {
		if _, err := worker.ParseStep(step); err != nil {
			return fmt.Errorf("populate.steps: %w", err)
		}
	}
	return nil
}

// NewLogger builds the root logger for a command.
func NewLogger(cfg LogConfig, service, version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}
