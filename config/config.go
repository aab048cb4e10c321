// Package config loads the service configuration from a JSON or YAML file
// with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/transitionlab/fleetpath/core/cache"
	"github.com/transitionlab/fleetpath/core/metrics"
	"github.com/transitionlab/fleetpath/core/optimizer"
	"github.com/transitionlab/fleetpath/infra/mqtt"
	"github.com/transitionlab/fleetpath/infra/store"
)

// CatalogConfig locates the vehicle type reference data.
type CatalogConfig struct {
	Path string `json:"path"`
}

// Validate checks mandatory fields.
func (c CatalogConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("catalog path is required")
	}
	return nil
}

// HTTPConfig configures the scenario API server.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults applies the default listen address.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Config is the root service configuration.
type Config struct {
	Catalog   CatalogConfig    `json:"catalog"`
	Optimizer optimizer.Config `json:"optimizer"`
	Cache     cache.Config     `json:"cache"`
	Metrics   metrics.Config   `json:"metrics"`
	MQTT      mqtt.Config      `json:"mqtt"`
	Store     store.Config     `json:"store"`
	HTTP      HTTPConfig       `json:"http"`
}

// Load reads the configuration file, applies FP_-prefixed environment
// overrides and fills defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, e.g. FP_HTTP__ADDR=:9090.
	if err := k.Load(env.Provider("FP_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fp_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Optimizer.SetDefaults()
	cfg.Cache.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.HTTP.SetDefaults()
	if err := cfg.Catalog.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
