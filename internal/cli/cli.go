package cli

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/buildshift/internal/config"
	"github.com/matzehuels/buildshift/pkg/resolver"
)

// appName is the application name used for display and completion scripts.
const appName = "buildshift"

// withConfig returns a new context with the loaded configuration attached.
func withConfig(ctx context.Context, cfg config.Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// configFromContext retrieves the configuration from ctx, falling back to
// the defaults so commands always see a valid Config.
func configFromContext(ctx context.Context) config.Config {
	if cfg, ok := ctx.Value(configKey).(config.Config); ok {
		return cfg
	}
	return config.Default()
}

// usesRedis reports whether cache.backend selects the Redis store.
func usesRedis(cfg config.Config) bool {
	return strings.EqualFold(strings.TrimSpace(cfg.Cache.Backend), "redis")
}

// newStore opens the configured cache backend. Blob is the default; redis is
// selected by cache.backend and verified with a ping before use.
func newStore(ctx context.Context, cfg config.Config, logger *log.Logger) (resolver.Store, error) {
	if usesRedis(cfg) {
		return resolver.NewRedisStore(ctx, resolver.RedisConfig{
			Addr:     cfg.Cache.Redis.Address,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Key:      cfg.Cache.Redis.Key,
		})
	}
	return resolver.NewBlobStore(cfg.Cache.Path, resolver.WithLogger(logger.Debugf)), nil
}

// Phase hooks, swapped in tests to observe composition order.
var (
	fetchPhase   = runFetch
	analyzePhase = runAnalyze
	trimPhase    = runTrim
)

// runComposition executes the phases selected by the root flags in fixed
// order: fetch, then analyze, then trim. Any combination is allowed; the
// first failing phase stops the chain.
func runComposition(ctx context.Context, cfg config.Config, fetch, analyze bool, trimFile string) error {
	if fetch {
		if err := fetchPhase(ctx, cfg); err != nil {
			return err
		}
	}
	if analyze {
		if err := analyzePhase(ctx, cfg); err != nil {
			return err
		}
	}
	if trimFile != "" {
		if err := trimPhase(ctx, cfg, trimFile); err != nil {
			return err
		}
	}
	return nil
}
