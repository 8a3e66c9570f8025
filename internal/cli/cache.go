package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/buildshift/internal/config"
	"github.com/matzehuels/buildshift/pkg/backend"
	"github.com/matzehuels/buildshift/pkg/resolver"
)

// newCacheCmd creates the cache management command.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the resolved-backend cache",
	}

	cmd.AddCommand(newCachePathCmd())
	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCacheStatsCmd())

	return cmd
}

// newCachePathCmd creates the "cache path" subcommand.
func newCachePathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			if usesRedis(cfg) {
				fmt.Printf("redis://%s/%d (key %s)\n",
					cfg.Cache.Redis.Address, cfg.Cache.Redis.DB, redisKey(cfg))
				return nil
			}
			path, err := filepath.Abs(cfg.Cache.Path)
			if err != nil {
				return fmt.Errorf("resolve cache path: %w", err)
			}
			fmt.Println(path)
			return nil
		},
	}
}

// newCacheClearCmd creates the "cache clear" subcommand.
func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClear(cmd.Context(), configFromContext(cmd.Context()))
		},
	}
}

func runCacheClear(ctx context.Context, cfg config.Config) error {
	if usesRedis(cfg) {
		store, err := newStore(ctx, cfg, loggerFromContext(ctx))
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(ctx, map[string]string{}); err != nil {
			return err
		}
		printSuccess("Cleared redis://%s/%d (key %s)",
			cfg.Cache.Redis.Address, cfg.Cache.Redis.DB, redisKey(cfg))
		return nil
	}

	err := os.Remove(cfg.Cache.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		printInfo("Cache is empty")
		return nil
	case err != nil:
		return fmt.Errorf("remove cache: %w", err)
	}
	printSuccess("Removed %s", cfg.Cache.Path)
	return nil
}

// newCacheStatsCmd creates the "cache stats" subcommand.
func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize cached hashes by backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheStats(cmd.Context(), configFromContext(cmd.Context()))
		},
	}
}

func runCacheStats(ctx context.Context, cfg config.Config) error {
	store, err := newStore(ctx, cfg, loggerFromContext(ctx))
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		printInfo("Cache is empty")
		return nil
	}

	sentinels := 0
	counts := make(map[string]int)
	for _, label := range entries {
		if backend.IsSentinel(label) {
			sentinels++
		}
		counts[backend.Normalize(label)]++
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	rows := make([][]string, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, []string{label, strconv.Itoa(counts[label])})
	}

	printNewline()
	fmt.Println(StyleTitle.Render(fmt.Sprintf("%d resolved hashes (%d sentinels)", len(entries), sentinels)))
	fmt.Println(labelTable([]string{"BACKEND", "HASHES"}, rows))
	return nil
}

// redisKey returns the configured hash key, falling back to the default.
func redisKey(cfg config.Config) string {
	if cfg.Cache.Redis.Key != "" {
		return cfg.Cache.Redis.Key
	}
	return resolver.DefaultRedisKey
}
