package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/buildshift/internal/config"
	"github.com/matzehuels/buildshift/internal/metrics"
	"github.com/matzehuels/buildshift/pkg/dataset"
	"github.com/matzehuels/buildshift/pkg/mirror"
	"github.com/matzehuels/buildshift/pkg/resolver"
)

// newFetchCmd creates the fetch command, the subcommand spelling of
// --fetch-data.
func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Resolve build backends for unprocessed uploads",
		Long: `Fetch walks every dataset upload whose content hash has no cached
resolution yet, downloads the pyproject.toml from the pypi-data mirror,
classifies its build backend, and checkpoints the cache as it goes.

Interrupting is safe: progress up to the last checkpoint is kept and the
next run continues where this one stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), configFromContext(cmd.Context()))
		},
	}
}

// runFetch loads the dataset, opens the cache, and resolves every upload
// that is not cached yet.
func runFetch(ctx context.Context, cfg config.Config) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	rows, err := dataset.NewLoader(cfg.Data.Dir, cfg.Data.Snapshot,
		dataset.WithLogger(logger.Debugf)).Load(ctx)
	if err != nil {
		return err
	}
	logger.Infof("Loaded %d candidate uploads", len(rows))

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	rec := metrics.NewRecorder(nil)
	client := mirror.NewClient(
		mirror.WithBaseURL(cfg.Fetch.BaseURL),
		mirror.WithTimeout(cfg.Fetch.Timeout),
	)
	res := resolver.New(rec.InstrumentFetcher(client), store, resolver.Options{
		BatchSize: cfg.Fetch.BatchSize,
		Logger:    logger.Infof,
	})

	stats, err := res.Run(ctx, rows)
	if err != nil {
		return err
	}
	rec.ObserveRun(stats)

	printSuccess("Resolved %d new uploads", stats.Resolved)
	printDetail("%d cached, %d failed (%d missing, %d unavailable)",
		stats.Skipped, stats.Failed, stats.NotFound, stats.Unavailable)
	prog.done(fmt.Sprintf("Processed %d uploads", stats.Processed))
	return nil
}
