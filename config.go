package prefstore

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by LoadConfig,
// e.g. PREFSTORE_INLINE_THRESHOLD.
const EnvPrefix = "PREFSTORE_"

// Config holds the settings of a Disk store.
type Config struct {
	AppID           string `koanf:"app_id"`
	Dir             string `koanf:"dir"`
	InlineThreshold int    `koanf:"inline_threshold"`
	CacheCostLimit  int    `koanf:"cache_cost_limit"`
	CacheMaxEntries int    `koanf:"cache_max_entries"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		AppID:           DefaultAppID,
		InlineThreshold: DefaultInlineThreshold,
		CacheCostLimit:  DefaultCacheCostLimit,
		CacheMaxEntries: DefaultCacheMaxEntries,
	}
}

// LoadConfig layers, in order: defaults, the TOML file at path (skipped when
// path is empty or the file does not exist) and PREFSTORE_* environment
// variables.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	def := DefaultConfig()
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"app_id":            def.AppID,
		"dir":               def.Dir,
		"inline_threshold":  def.InlineThreshold,
		"cache_cost_limit":  def.CacheCostLimit,
		"cache_max_entries": def.CacheMaxEntries,
	}, "."), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return Config{}, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// DiskOptions converts the config into options for OpenDisk.
func (c Config) DiskOptions() []DiskOption {
	opts := []DiskOption{
		WithAppID(c.AppID),
		WithInlineThreshold(c.InlineThreshold),
		WithCacheLimit(c.CacheCostLimit, c.CacheMaxEntries),
	}
	if c.Dir != "" {
		opts = append(opts, WithDir(c.Dir))
	}
	return opts
}
