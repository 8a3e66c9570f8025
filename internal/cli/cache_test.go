package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/matzehuels/buildshift/internal/config"
	"github.com/matzehuels/buildshift/pkg/resolver"
)

func TestUsesRedis(t *testing.T) {
	tests := []struct {
		backend string
		want    bool
	}{
		{"", false},
		{"blob", false},
		{"redis", true},
		{"Redis", true},
		{" redis ", true},
	}

	for _, tt := range tests {
		cfg := config.Default()
		cfg.Cache.Backend = tt.backend
		if got := usesRedis(cfg); got != tt.want {
			t.Errorf("usesRedis(%q) = %v, want %v", tt.backend, got, tt.want)
		}
	}
}

func TestRedisKeyFallback(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Redis.Key = ""
	if got := redisKey(cfg); got != resolver.DefaultRedisKey {
		t.Errorf("redisKey = %q, want default %q", got, resolver.DefaultRedisKey)
	}

	cfg.Cache.Redis.Key = "research:backends"
	if got := redisKey(cfg); got != "research:backends" {
		t.Errorf("redisKey = %q, want the configured key", got)
	}
}

func TestRunCacheClearBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backends.gob.gz")
	store := resolver.NewBlobStore(path)
	if err := store.Save(context.Background(), map[string]string{"0a1b": "poetry.core"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Cache.Path = path

	if err := runCacheClear(context.Background(), cfg); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("blob should be removed, stat err = %v", err)
	}

	// Clearing an already-empty cache is not an error.
	if err := runCacheClear(context.Background(), cfg); err != nil {
		t.Fatalf("clear of empty cache: %v", err)
	}
}

func TestRunCacheClearRedis(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(server.Close)

	server.HSet(resolver.DefaultRedisKey, "0a1b", "hatchling")

	cfg := config.Default()
	cfg.Cache.Backend = "redis"
	cfg.Cache.Redis.Address = server.Addr()

	if err := runCacheClear(context.Background(), cfg); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if server.Exists(resolver.DefaultRedisKey) {
		t.Error("hash key should be deleted after clear")
	}
}

func TestRunCacheStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backends.gob.gz")
	store := resolver.NewBlobStore(path)
	entries := map[string]string{
		"0a": "setuptools.build_meta",
		"0b": "poetry.core.masonry.api",
		"0c": "PARSING_ERROR",
	}
	if err := store.Save(context.Background(), entries); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Cache.Path = path

	if err := runCacheStats(context.Background(), cfg); err != nil {
		t.Fatalf("stats: %v", err)
	}
}

func TestRunCacheStatsEmpty(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Path = filepath.Join(t.TempDir(), "backends.gob.gz")

	if err := runCacheStats(context.Background(), cfg); err != nil {
		t.Fatalf("stats on cold cache: %v", err)
	}
}
