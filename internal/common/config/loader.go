package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads .env, configs/config.yaml and configs/config.<APP_ENVIRONMENT>.yaml,
// then applies environment overrides, defaults and validation.
func Load() (*Config, error) {
	envFile := loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v, envFile)
}

// LoadFromFile reads a single config file.
func LoadFromFile(path string) (*Config, error) {
	envFile := loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v, envFile)
}

func finish(v *viper.Viper, envFile string) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Sources.EnvFile = envFile
	cfg.Sources.ConfigFile = v.ConfigFileUsed()
	return &cfg, nil
}

// loadEnvFile loads the first .env found and returns its path.
func loadEnvFile() string {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills unset values from the variable names the
// deployment has always used.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.ERP.APIKey, "API_KEY")
	setIfEmpty(&cfg.ERP.EventsURL, "API_URL_GET_EVENTS")
	setIfEmpty(&cfg.ERP.FormationsURL, "API_URL_GET_FORMATIONS")
	setIfEmpty(&cfg.ERP.RegistrationURL, "API_URL_POST_REGISTRATION")
	setIfEmpty(&cfg.ERP.CandidatesURL, "API_URL_POST_CANDIDATES")
	setIfEmpty(&cfg.ERP.CandidateMeetingsURL, "API_URL_POST_CANDIDATE_MEETINGS")

	setIfEmpty(&cfg.Database.Redis.Address, "REDIS_ADDRESS")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.Camunda.BrokerAddress, "ZEEBE_ADDRESS")
	setIfEmpty(&cfg.Integrations.AWS.Region, "AWS_REGION")

	if cfg.Server.Port == 0 {
		if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
			cfg.Server.Port = port
		}
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
			for _, origin := range strings.Split(val, ",") {
				if origin = strings.TrimSpace(origin); origin != "" {
					cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, origin)
				}
			}
		}
	}
}

func setIfEmpty(target *string, envKey string) {
	if *target != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*target = val
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "registration-gateway"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3001
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 50 * 1024
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15000
	}

	// ERP defaults; the single-step endpoint and the candidate endpoint are
	// the same resource on most deployments.
	if cfg.ERP.Timeout == 0 {
		cfg.ERP.Timeout = 10000
	}
	if cfg.ERP.DefaultSource == "" {
		cfg.ERP.DefaultSource = "SiteInternet"
	}
	if cfg.ERP.RegistrationURL == "" {
		cfg.ERP.RegistrationURL = cfg.ERP.CandidatesURL
	}
	if cfg.ERP.CandidatesURL == "" {
		cfg.ERP.CandidatesURL = cfg.ERP.RegistrationURL
	}

	if cfg.Catalog.CacheTTL == 0 {
		cfg.Catalog.CacheTTL = 300
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = cfg.Camunda.MaxJobsActive
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.Camunda.Timeout
		}
		cfg.Workers[key] = worker
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig rejects inconsistent settings. Missing ERP settings are not
// fatal: they are reported per request.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if cfg.ERP.Timeout < 0 {
		return fmt.Errorf("erp.timeout must be positive")
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}
	if cfg.Catalog.CacheEnabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when catalog.cache_enabled is set")
	}

	sns := cfg.Integrations.AWS.SNS
	if sns.Enabled {
		if sns.PartialEnrollmentTopicARN == "" {
			return fmt.Errorf("integrations.aws.sns.partial_enrollment_topic_arn is required")
		}
		if cfg.Integrations.AWS.Region == "" {
			return fmt.Errorf("integrations.aws.region is required when sns is enabled")
		}
	}

	if cfg.Observability.Jaeger.Enabled && cfg.Observability.Jaeger.Endpoint == "" {
		return fmt.Errorf("observability.jaeger.endpoint is required when jaeger is enabled")
	}

	return nil
}
