package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/londonair/londonair/internal/airquality"
	"github.com/londonair/londonair/internal/api/handler"
	"github.com/londonair/londonair/internal/provider/resilience"
	"github.com/londonair/londonair/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run populate jobs received from a Pub/Sub subscription",
	Long: `Subscribe to pubsub.subscription and run the populator for every
"populate" message, one at a time. The worker also serves /health and
/ready on server.port for the platform's probes.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().String("project", "", "Google Cloud project ID")
	workerCmd.Flags().String("subscription", "londonair-populate", "Pub/Sub subscription name")

	_ = viper.BindPFlag("pubsub.project_id", workerCmd.Flags().Lookup("project"))
	_ = viper.BindPFlag("pubsub.subscription", workerCmd.Flags().Lookup("subscription"))
}

func runWorker(cmd *cobra.Command, _ []string) error {
	log := newLogger("worker")
	if cfg.PubSub.ProjectID == "" {
		return errors.New("pubsub.project_id is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := initTelemetry(ctx, log)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

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

	populator := newPopulator(client, airquality.NewPostgresRepository(pool), log)

	subscriber, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSub.ProjectID,
		SubscriptionName: cfg.PubSub.Subscription,
		Populator:        populator,
		Source:           client,
		Logger:           log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := subscriber.Close(); err != nil {
			log.Error().Err(err).Msg("closing pubsub client")
		}
	}()

	ops := handler.NewOpsHandler(Version, BuildTime, pool, registry)
	probes := chi.NewRouter()
	probes.Get("/health", ops.HealthCheck)
	probes.Get("/ready", ops.ReadinessCheck)
	probes.Get("/status", ops.SystemStatus)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      probes,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("probe server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("probe server error")
		}
	}()

	receiveErr := subscriber.Start(ctx)

	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("probe server forced to shutdown")
	}

	if receiveErr != nil && !errors.Is(receiveErr, context.Canceled) {
		return fmt.Errorf("receiving messages: %w", receiveErr)
	}

	stats := populator.Stats()
	log.Info().
		Int64("runs", stats.TotalRuns).
		Int64("failed_runs", stats.FailedRuns).
		Msg("worker stopped")
	return nil
}
