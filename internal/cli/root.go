package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/buildshift/internal/config"
	"github.com/matzehuels/buildshift/pkg/buildinfo"
)

// Execute runs the buildshift CLI under ctx and returns an error if any
// command fails.
//
// A logger (debug level with --verbose) and the loaded configuration are
// attached to the command context, so every RunE reaches them through
// loggerFromContext and configFromContext.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	var (
		verbose    bool
		configPath string
		fetch      bool
		analyze    bool
		trimFile   string
	)

	root := &cobra.Command{
		Use:   appName,
		Short: "Buildshift charts the popularity of Python build backends",
		Long: `Buildshift determines which build backend each pyproject.toml uploaded to
PyPI declares, caches the answers between runs, and charts how backend
popularity shifted over time.

The phase flags compose and always run in the same order: fetch missing
backends first, then aggregate into charts, then trim the data directory.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))

			cfg, err := config.NewLoader(configPath).Load(ctx)
			if err != nil {
				return err
			}
			cmd.SetContext(withConfig(ctx, cfg))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !fetch && !analyze && trimFile == "" {
				return cmd.Help()
			}
			return runComposition(cmd.Context(), configFromContext(cmd.Context()), fetch, analyze, trimFile)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&configPath, "config", "", "TOML or YAML configuration file")

	f := root.Flags()
	f.BoolVarP(&fetch, "fetch-data", "f", false, "resolve backends for unprocessed uploads")
	f.BoolVarP(&analyze, "analyze", "a", false, "aggregate the cache into charts")
	f.StringVar(&trimFile, "trim-dataset", "", "delete data files not listed in `file`")

	root.AddCommand(newFetchCmd())
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newTrimCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newCompletionCmd())

	return root
}
