package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/londonair/londonair/internal/airquality"
	"github.com/londonair/londonair/internal/api"
	"github.com/londonair/londonair/internal/api/middleware"
	"github.com/londonair/londonair/internal/provider/resilience"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the map page and the JSON API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "HTTP listen port")
	serveCmd.Flags().Bool("require-tls", false, "reject requests forwarded over plain HTTP")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.require_tls", serveCmd.Flags().Lookup("require-tls"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := newLogger("server")
	log.Info().
		Str("build_time", BuildTime).
		Msg("starting London air quality server")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := initTelemetry(ctx, log)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return err
	}

	pool, err := connectStore(ctx, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	registry := resilience.NewRegistry()
	client, err := newUpstream(log, registry)
	if err != nil {
		return err
	}

	service := airquality.NewService(airquality.ServiceConfig{
		Repository: airquality.NewPostgresRepository(pool),
		Provider:   client,
		Group:      cfg.Upstream.Group,
		Logger:     log,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Service:     service,
		DB:          pool,
		Registry:    registry,
		RequireTLS:  cfg.Server.RequireTLS,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}
