// Package config hydrates the buildshift runtime configuration with
// defaults < file < env precedence. The file may be TOML or YAML, chosen by
// extension; environment variables use the BUILDSHIFT_ prefix with double
// underscores for nesting (BUILDSHIFT_FETCH__BATCH_SIZE -> fetch.batch_size).
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the leading token of every buildshift environment variable.
const EnvPrefix = "BUILDSHIFT"

// ErrUnsupportedFormat is returned when the config file extension maps to no
// known parser.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Loader hydrates a Config while respecting env > file > default precedence.
type Loader struct {
	envPrefix string
	file      string
}

// NewLoader prepares a loader for an optional config file. An empty path
// skips the file layer entirely.
func NewLoader(file string) *Loader {
	return &Loader{envPrefix: EnvPrefix, file: file}
}

// Load assembles the effective configuration and validates it.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(structToMap(Default()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if l.file != "" {
		if _, err := os.Stat(l.file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", l.file)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", l.file, err)
		}
		parser, err := parserFor(l.file)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(file.Provider(l.file), parser); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", l.file, err)
		}
	}

	transform := func(s string) string {
		// Double underscores signal a nested path, single underscores stay
		// literal: FETCH__BATCH_SIZE -> fetch.batch_size.
		key := strings.TrimPrefix(s, l.envPrefix+"_")
		key = strings.ReplaceAll(key, "__", ".")
		return strings.ToLower(key)
	}
	if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parserFor picks the file parser from the extension.
func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}
