package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/londonair/londonair/internal/airquality"
	"github.com/londonair/londonair/internal/airquality/londonair"
	"github.com/londonair/londonair/internal/provider/resilience"
	"github.com/londonair/londonair/internal/worker"
)

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Load reference data from the London Air API into the local store",
	Long: `Run every enabled populate step once: local authorities, species,
sites and health advice. Steps that find no upstream data are skipped and
the remaining steps still run.`,
	RunE: runPopulate,
}

func init() {
	rootCmd.AddCommand(populateCmd)

	populateCmd.Flags().StringSlice("steps", worker.StepNames(), "populate steps to run, in order")
	populateCmd.Flags().StringSlice("exclude-site", nil, "site codes to leave out of the store")
	populateCmd.Flags().Bool("species-required", false, "fail the run when the species catalog is unavailable")

	_ = viper.BindPFlag("populate.steps", populateCmd.Flags().Lookup("steps"))
	_ = viper.BindPFlag("populate.excluded_sites", populateCmd.Flags().Lookup("exclude-site"))
	_ = viper.BindPFlag("populate.species_required", populateCmd.Flags().Lookup("species-required"))
}

func runPopulate(cmd *cobra.Command, _ []string) error {
	log := newLogger("populate")
	ctx := cmd.Context()

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

	client, err := newUpstream(log, resilience.NewRegistry())
	if err != nil {
		return err
	}

	populator := newPopulator(client, airquality.NewPostgresRepository(pool), log)

	_, err = populator.Run(ctx)
	return err
}

// newPopulator wires the client in as both the source and the anomaly counter.
func newPopulator(client *londonair.Client, repo airquality.Repository, log zerolog.Logger) *worker.Populator {
	return worker.NewPopulator(worker.PopulatorConfig{
		Config:     cfg.Populate.WorkerConfig(cfg.Upstream.Group),
		Source:     client,
		Repository: repo,
		Anomalies:  client.Normalizer(),
		Logger:     log,
	})
}
