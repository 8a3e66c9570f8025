package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/buildshift/pkg/mirror"
	"github.com/matzehuels/buildshift/pkg/report"
	"github.com/matzehuels/buildshift/pkg/resolver"
)

// Config holds every runtime option for the fetch, analyze, trim, and serve
// phases. Values arrive through the loader with defaults < file < env
// precedence; CLI flags may override individual fields afterwards.
type Config struct {
	Data   DataConfig   `koanf:"data"`
	Cache  CacheConfig  `koanf:"cache"`
	Fetch  FetchConfig  `koanf:"fetch"`
	Report ReportConfig `koanf:"report"`
	Serve  ServeConfig  `koanf:"serve"`
}

// DataConfig locates the upload dataset on disk.
type DataConfig struct {
	// Dir holds the *.parquet source files and is the target of trim.
	Dir string `koanf:"dir"`
	// Snapshot is the csv.gz file the loader prefers over a parquet scan.
	Snapshot string `koanf:"snapshot"`
}

// CacheConfig selects where resolved backend labels persist between runs.
type CacheConfig struct {
	// Backend is "blob" for the local file store or "redis" for a shared hash.
	Backend string `koanf:"backend"`
	// Path locates the blob file when Backend is "blob".
	Path  string           `koanf:"path"`
	Redis RedisCacheConfig `koanf:"redis"`
}

// RedisCacheConfig carries connection settings for the redis cache backend.
type RedisCacheConfig struct {
	Address  string `koanf:"address"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Key      string `koanf:"key"`
}

// FetchConfig tunes the incremental resolver run.
type FetchConfig struct {
	// BatchSize is the checkpoint cadence in processed rows.
	BatchSize int `koanf:"batch_size"`
	// BaseURL fronts the pypi-data mirror repositories.
	BaseURL string `koanf:"base_url"`
	// Timeout bounds a single content fetch.
	Timeout time.Duration `koanf:"timeout"`
}

// ReportConfig tunes the aggregation window and chart output.
type ReportConfig struct {
	OutputDir string `koanf:"output_dir"`
	// BinDays is the histogram bucket width in days.
	BinDays int `koanf:"bin_days"`
	// Top is how many backends keep their own series before collapsing to
	// "other".
	Top int `koanf:"top"`
	// MinDate drops uploads before this day, formatted 2006-01-02.
	MinDate string `koanf:"min_date"`
	// PNG additionally rasterizes each chart via rsvg-convert.
	PNG bool `koanf:"png"`
}

// ServeConfig configures the report HTTP server.
type ServeConfig struct {
	Addr string `koanf:"addr"`
}

// MinDateTime returns the parsed cutoff. Validate has already checked the
// format, so a zero time only escapes from an unvalidated Config.
func (r ReportConfig) MinDateTime() time.Time {
	t, _ := time.ParseInLocation(time.DateOnly, r.MinDate, time.UTC)
	return t
}

// Default returns the baseline configuration that matches the package-level
// defaults of the phases it drives.
func Default() Config {
	return Config{
		Data: DataConfig{
			Dir:      "data",
			Snapshot: "results.csv.gz",
		},
		Cache: CacheConfig{
			Backend: "blob",
			Path:    "backends.gob.gz",
			Redis: RedisCacheConfig{
				Key: resolver.DefaultRedisKey,
			},
		},
		Fetch: FetchConfig{
			BatchSize: resolver.DefaultBatchSize,
			BaseURL:   mirror.DefaultBaseURL,
			Timeout:   10 * time.Second,
		},
		Report: ReportConfig{
			OutputDir: "reports",
			BinDays:   report.DefaultBinDays,
			Top:       report.DefaultTop,
			MinDate:   report.DefaultMinDate.Format(time.DateOnly),
			PNG:       false,
		},
		Serve: ServeConfig{
			Addr: ":8080",
		},
	}
}

// Validate rejects configurations the phases cannot run with. It reports the
// first offending key in loader key syntax so the message maps directly to a
// config file line or environment variable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Data.Dir) == "" {
		return fmt.Errorf("config: data.dir required")
	}
	if strings.TrimSpace(c.Data.Snapshot) == "" {
		return fmt.Errorf("config: data.snapshot required")
	}
	switch strings.TrimSpace(strings.ToLower(c.Cache.Backend)) {
	case "", "blob":
		if strings.TrimSpace(c.Cache.Path) == "" {
			return fmt.Errorf("config: cache.path required for blob backend")
		}
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Address) == "" {
			return fmt.Errorf("config: cache.redis.address required for redis backend")
		}
	default:
		return fmt.Errorf("config: cache.backend unsupported: %s", c.Cache.Backend)
	}
	if c.Fetch.BatchSize <= 0 {
		return fmt.Errorf("config: fetch.batch_size invalid: %d", c.Fetch.BatchSize)
	}
	if strings.TrimSpace(c.Fetch.BaseURL) == "" {
		return fmt.Errorf("config: fetch.base_url required")
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("config: fetch.timeout invalid: %s", c.Fetch.Timeout)
	}
	if strings.TrimSpace(c.Report.OutputDir) == "" {
		return fmt.Errorf("config: report.output_dir required")
	}
	if c.Report.BinDays <= 0 {
		return fmt.Errorf("config: report.bin_days invalid: %d", c.Report.BinDays)
	}
	if c.Report.Top <= 0 {
		return fmt.Errorf("config: report.top invalid: %d", c.Report.Top)
	}
	if _, err := time.ParseInLocation(time.DateOnly, c.Report.MinDate, time.UTC); err != nil {
		return fmt.Errorf("config: report.min_date must be YYYY-MM-DD: %q", c.Report.MinDate)
	}
	if strings.TrimSpace(c.Serve.Addr) == "" {
		return fmt.Errorf("config: serve.addr required")
	}
	return nil
}

// structToMap converts Default into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"dir":      cfg.Data.Dir,
			"snapshot": cfg.Data.Snapshot,
		},
		"cache": map[string]any{
			"backend": cfg.Cache.Backend,
			"path":    cfg.Cache.Path,
			"redis": map[string]any{
				"address":  cfg.Cache.Redis.Address,
				"username": cfg.Cache.Redis.Username,
				"password": cfg.Cache.Redis.Password,
				"db":       cfg.Cache.Redis.DB,
				"key":      cfg.Cache.Redis.Key,
			},
		},
		"fetch": map[string]any{
			"batch_size": cfg.Fetch.BatchSize,
			"base_url":   cfg.Fetch.BaseURL,
			"timeout":    cfg.Fetch.Timeout,
		},
		"report": map[string]any{
			"output_dir": cfg.Report.OutputDir,
			"bin_days":   cfg.Report.BinDays,
			"top":        cfg.Report.Top,
			"min_date":   cfg.Report.MinDate,
			"png":        cfg.Report.PNG,
		},
		"serve": map[string]any{
			"addr": cfg.Serve.Addr,
		},
	}
}
