package config

import (
	"strings"
	"time"
)

type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	ERP           ERPConfig               `mapstructure:"erp"`
	Catalog       CatalogConfig           `mapstructure:"catalog"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`

	Sources Sources `mapstructure:"-"`
}

// Sources records which files were read.
type Sources struct {
	EnvFile    string
	ConfigFile string
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	MaxBodyBytes    int64    `mapstructure:"max_body_bytes"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RequestTimeout  int      `mapstructure:"request_timeout"`  // milliseconds
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
}

// ERPConfig holds the upstream endpoints and the service credential.
// The credential is only ever read from here.
type ERPConfig struct {
	APIKey               string `mapstructure:"api_key"`
	AuthScheme           string `mapstructure:"auth_scheme"`
	EventsURL            string `mapstructure:"events_url"`
	FormationsURL        string `mapstructure:"formations_url"`
	RegistrationURL      string `mapstructure:"registration_url"`
	CandidatesURL        string `mapstructure:"candidates_url"`
	CandidateMeetingsURL string `mapstructure:"candidate_meetings_url"`
	Timeout              int    `mapstructure:"timeout"` // milliseconds, per call
	DefaultSource        string `mapstructure:"default_source"`
}

// MaskedAPIKey returns the key with everything but the last four characters hidden.
func (e ERPConfig) MaskedAPIKey() string {
	if e.APIKey == "" {
		return ""
	}
	if len(e.APIKey) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(e.APIKey)-4) + e.APIKey[len(e.APIKey)-4:]
}

type CatalogConfig struct {
	CacheEnabled bool `mapstructure:"cache_enabled"`
	CacheTTL     int  `mapstructure:"cache_ttl"` // seconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	UsePlaintext   bool   `mapstructure:"use_plaintext"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled                   bool   `mapstructure:"enabled"`
			PartialEnrollmentTopicARN string `mapstructure:"partial_enrollment_topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

type ObservabilityConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Jaeger      struct {
		Enabled  bool   `mapstructure:"enabled"`
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"jaeger"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       cfg.Camunda.Enabled,
		MaxJobsActive: cfg.Camunda.MaxJobsActive,
		Timeout:       cfg.Camunda.Timeout,
	}
}
