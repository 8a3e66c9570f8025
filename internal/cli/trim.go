package cli

import (
	"context"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/matzehuels/buildshift/internal/config"
	"github.com/matzehuels/buildshift/pkg/dataset"
)

// newTrimCmd creates the trim command, the subcommand spelling of
// --trim-dataset.
func newTrimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trim <keep-file>",
		Short: "Delete data files not listed in a keep file",
		Long: `Trim removes every regular file directly inside the data directory whose
name is not listed (one per line) in the keep file. Subdirectories are
left untouched. Typically used to drop parquet shards that are already
folded into the snapshot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrim(cmd.Context(), configFromContext(cmd.Context()), args[0])
		},
	}
}

// runTrim prunes the data directory down to the names listed in keepFile.
func runTrim(ctx context.Context, cfg config.Config, keepFile string) error {
	logger := loggerFromContext(ctx)

	removed, err := dataset.Trim(afero.NewOsFs(), cfg.Data.Dir, keepFile)
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		printInfo("Nothing to trim in %s", cfg.Data.Dir)
		return nil
	}
	for _, name := range removed {
		logger.Debugf("Removed %s", name)
	}
	printSuccess("Removed %d files from %s", len(removed), cfg.Data.Dir)
	return nil
}
