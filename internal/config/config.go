// Package config loads jfrq's YAML settings file, trimmed from the
// teacher's app/settings package down to the handful of knobs a query engine
// needs: query-result cache sizing, the default timestamp timezone, and a
// decorator memory ceiling. Only the cache size is read by other packages;
// the timezone and decorator settings are loaded but have no effect.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds jfrq settings that can be overridden by a settings file.
// Field names that omit an explicit override keep defaultConfig's values.
type Config struct {
	// CacheSizeLimitMB bounds internal/session/cache's estimated entry size,
	// mirroring Settings.CacheSizeLimitMB.
	CacheSizeLimitMB int `yaml:"cache_size_limit_mb"`
	// DefaultTimezone mirrors Settings.DefaultIngestTimezone ("Local", "UTC",
	// or an IANA zone name). It is loaded and overlaid like the other
	// settings, but no jfrq code reads it, so it does not affect how
	// timestamps are interpreted or formatted.
	DefaultTimezone string `yaml:"default_timezone"`
	// DecoratorMemoryLimitMB is loaded and overlaid like the other settings,
	// but no jfrq code reads it: decorateByTime/decorateByKey buffer their
	// decorator events without any memory bound.
	DecoratorMemoryLimitMB int `yaml:"decorator_memory_limit_mb"`
}

var defaultConfig = Config{
	CacheSizeLimitMB:       100,
	DefaultTimezone:        "Local",
	DecoratorMemoryLimitMB: 256,
}

// CacheSizeLimitBytes returns CacheSizeLimitMB converted to bytes, for
// internal/session/cache.New.
func (c Config) CacheSizeLimitBytes() int64 {
	return int64(c.CacheSizeLimitMB) * 1024 * 1024
}

// Load reads path as a YAML settings file and overlays it on the built-in
// defaults. A missing file, or any parse error, yields the defaults — jfrq
// should never fail to start over a malformed or absent settings file.
func Load(path string) Config {
	cfg := defaultConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var override Config
	if err := yaml.Unmarshal(b, &override); err != nil {
		return cfg
	}
	if override.CacheSizeLimitMB > 0 {
		cfg.CacheSizeLimitMB = override.CacheSizeLimitMB
	}
	if override.DefaultTimezone != "" {
		cfg.DefaultTimezone = override.DefaultTimezone
	}
	if override.DecoratorMemoryLimitMB > 0 {
		cfg.DecoratorMemoryLimitMB = override.DecoratorMemoryLimitMB
	}
	return cfg
}

// DefaultPath mirrors app/settings/settings.go's settingsFilePath
// convention: a settings file named jfrq.yml in the directory that holds
// the running executable, so a jfrq binary picks up jfrq.yml sitting next
// to it.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(exe), "jfrq.yml"), nil
}
