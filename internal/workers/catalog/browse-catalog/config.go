package browsecatalog

import (
	"fmt"
	"time"

	"admissions-gateway/internal/common/config"
)

type Config struct {
	CacheEnabled bool          `mapstructure:"cache_enabled"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CacheKey     string        `mapstructure:"cache_key"`
	LoadTimeout  time.Duration `mapstructure:"load_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		CacheEnabled: false,
		CacheTTL:     5 * time.Minute,
		CacheKey:     "catalog:snapshot",
		LoadTimeout:  10 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	if c.CacheKey == "" {
		return fmt.Errorf("cache_key is required")
	}
	if c.LoadTimeout <= 0 {
		return fmt.Errorf("load_timeout must be positive")
	}
	return nil
}

func ConfigFromApp(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}
	cfg.CacheEnabled = appConfig.Catalog.CacheEnabled
	if appConfig.Catalog.CacheTTL > 0 {
		cfg.CacheTTL = time.Duration(appConfig.Catalog.CacheTTL) * time.Second
	}
	if appConfig.ERP.Timeout > 0 {
		cfg.LoadTimeout = config.GetDuration(appConfig.ERP.Timeout)
	}
	return cfg
}
