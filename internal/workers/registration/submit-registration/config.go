package submitregistration

import (
	"fmt"
	"time"

	"admissions-gateway/internal/common/config"
)

// WorkerName is the key of this worker in the workers config section.
const WorkerName = "registration-submit"

type Config struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxJobsActive   int           `mapstructure:"max_jobs_active"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	MaxPayloadBytes int64         `mapstructure:"max_payload_bytes"`
	DefaultSource   string        `mapstructure:"default_source"`
	AlertTimeout    time.Duration `mapstructure:"alert_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		MaxJobsActive:   5,
		Timeout:         30 * time.Second,
		CallTimeout:     10 * time.Second,
		MaxPayloadBytes: 50 * 1024,
		DefaultSource:   "SiteInternet",
		AlertTimeout:    3 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("max_payload_bytes must be positive")
	}
	return nil
}

// ConfigFromApp derives the worker configuration from the application config.
func ConfigFromApp(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	workerCfg := config.GetWorkerConfig(appConfig, WorkerName)
	cfg.Enabled = workerCfg.Enabled
	if workerCfg.MaxJobsActive > 0 {
		cfg.MaxJobsActive = workerCfg.MaxJobsActive
	}
	if workerCfg.Timeout > 0 {
		cfg.Timeout = config.GetDuration(workerCfg.Timeout)
	}

	if appConfig.ERP.Timeout > 0 {
		cfg.CallTimeout = config.GetDuration(appConfig.ERP.Timeout)
	}
	if appConfig.ERP.DefaultSource != "" {
		cfg.DefaultSource = appConfig.ERP.DefaultSource
	}
	if appConfig.Server.MaxBodyBytes > 0 {
		cfg.MaxPayloadBytes = appConfig.Server.MaxBodyBytes
	}
	return cfg
}
