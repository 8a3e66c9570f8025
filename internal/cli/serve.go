package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/buildshift/internal/config"
	"github.com/matzehuels/buildshift/internal/metrics"
	"github.com/matzehuels/buildshift/internal/server"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve generated reports over HTTP",
		Long: `Serve exposes the report output directory over HTTP together with a
JSON stats endpoint and Prometheus metrics. It blocks until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			if addr != "" {
				cfg.Serve.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

// runServe blocks serving reports until ctx is cancelled.
func runServe(ctx context.Context, cfg config.Config) error {
	logger := loggerFromContext(ctx)

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := server.New(server.Options{
		Addr:      cfg.Serve.Addr,
		OutputDir: cfg.Report.OutputDir,
		Store:     store,
		Recorder:  metrics.NewRecorder(nil),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	printInfo("Serving reports from %s on %s", cfg.Report.OutputDir, cfg.Serve.Addr)
	return srv.Run(ctx)
}
