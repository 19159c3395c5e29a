package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/londonair/londonair/internal/airquality/londonair"
	"github.com/londonair/londonair/internal/api/middleware"
	"github.com/londonair/londonair/internal/config"
	"github.com/londonair/londonair/internal/database"
	"github.com/londonair/londonair/internal/provider/resilience"
	"github.com/londonair/londonair/internal/telemetry"
)

const serviceName = "londonair"

var (
	cfgFile string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "londonair",
		Short: "London air quality map",
		Long: `London air quality map backed by the London Air API:
- serve: the map page and the JSON API
- populate: load reference data into the local store once
- worker: run populate jobs from a Pub/Sub subscription`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or /etc/londonair/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("upstream-proxy", "", "forward proxy for London Air API requests (host:port)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("upstream.proxy", rootCmd.PersistentFlags().Lookup("upstream-proxy"))
}

func loadConfig(_ *cobra.Command, _ []string) error {
	loaded, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = loaded
	return nil
}

// newLogger builds the root logger for one subcommand.
func newLogger(component string) zerolog.Logger {
	return config.NewLogger(cfg.Log, serviceName, Version).
		With().
		Str("component", component).
		Logger()
}

// initTelemetry starts exporters and returns a shutdown func for defer.
func initTelemetry(ctx context.Context, log zerolog.Logger) (func(), error) {
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}, nil
}

// connectStore opens the pool and applies pending migrations.
func connectStore(ctx context.Context, log zerolog.Logger) (*pgxpool.Pool, error) {
	pool, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := database.Migrate(ctx, pool, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	log.Info().
		Str("host", cfg.DB.Host).
		Int("port", cfg.DB.Port).
		Str("database", cfg.DB.Database).
		Msg("database connected")
	return pool, nil
}

// newUpstream builds the London Air client with request metrics and circuit
// state reported to registry.
func newUpstream(log zerolog.Logger, registry *resilience.Registry) (*londonair.Client, error) {
	metrics, err := middleware.NewProviderMetrics()
	if err != nil {
		return nil, fmt.Errorf("initializing provider metrics: %w", err)
	}

	client, err := londonair.NewClient(londonair.Config{
		BaseURL:  cfg.Upstream.BaseURL,
		Proxy:    cfg.Upstream.Proxy,
		Timeout:  cfg.Upstream.Timeout,
		Registry: registry,
		Metrics:  metrics,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating London Air client: %w", err)
	}

	log.Info().
		Str("base_url", cfg.Upstream.BaseURL).
		Bool("proxied", cfg.Upstream.Proxy != "").
		Msg("London Air client ready")
	return client, nil
}
