// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultSessionIdleTTL   = 30 * 60
	DefaultSessionRetention = 24 * 60 * 60
	DefaultSummaryCap       = 10
	DefaultHistoryWindow    = 5
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml and applies
// environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
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
			return ""
		}
		dir = parent
	}
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

// overrideEmptyConfig fills secrets from well-known environment variables.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.APIs.GenAI.APIKey, "GENAI_API_KEY")
	setIfEmpty(&cfg.Providers.APIKey, "PROVIDERS_API_KEY")
	setIfEmpty(&cfg.Auth.Keycloak.ClientSecret, "KEYCLOAK_CLIENT_SECRET")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "banking-assistant"
	}

	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Server.RateLimit.Requests == 0 {
		cfg.Server.RateLimit.Requests = 30
	}
	if cfg.Server.RateLimit.WindowSec == 0 {
		cfg.Server.RateLimit.WindowSec = 60
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 90000
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.KeyPrefix == "" {
		cfg.Database.Redis.KeyPrefix = "assistant"
	}
	if cfg.Database.Elasticsearch.IndexPrefix == "" {
		cfg.Database.Elasticsearch.IndexPrefix = "banking"
	}

	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = "header"
	}
	if cfg.Auth.TrustedHeader == "" {
		cfg.Auth.TrustedHeader = "X-Customer-ID"
	}
	if cfg.Auth.Keycloak.CustomerAttr == "" {
		cfg.Auth.Keycloak.CustomerAttr = "sub"
	}

	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 20000
	}
	if cfg.APIs.GenAI.IntentTimeout == 0 {
		cfg.APIs.GenAI.IntentTimeout = cfg.APIs.GenAI.Timeout
	}
	if cfg.APIs.GenAI.TimeRangeTimeout == 0 {
		cfg.APIs.GenAI.TimeRangeTimeout = 5000
	}
	if cfg.APIs.GenAI.DraftTimeout == 0 {
		cfg.APIs.GenAI.DraftTimeout = cfg.APIs.GenAI.Timeout
	}

	if cfg.Providers.Backend == "" {
		cfg.Providers.Backend = "http"
	}
	if cfg.Providers.Timeout == 0 {
		cfg.Providers.Timeout = 10000
	}

	if cfg.Assistant.WorkingLanguage == "" {
		cfg.Assistant.WorkingLanguage = "en"
	}
	if cfg.Assistant.DefaultTimezone == "" {
		cfg.Assistant.DefaultTimezone = "UTC"
	}
	if cfg.Assistant.SessionIdleTTL == 0 {
		cfg.Assistant.SessionIdleTTL = DefaultSessionIdleTTL
	}
	if cfg.Assistant.SessionRetention == 0 {
		cfg.Assistant.SessionRetention = DefaultSessionRetention
	}
	if cfg.Assistant.SummaryCap == 0 {
		cfg.Assistant.SummaryCap = DefaultSummaryCap
	}
	if cfg.Assistant.HistoryWindow == 0 {
		cfg.Assistant.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Assistant.FallbackDomain == "" {
		cfg.Assistant.FallbackDomain = "CURRENT_ACCOUNTS"
	}
	if cfg.Assistant.MainAccountAlias == "" {
		cfg.Assistant.MainAccountAlias = "main"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.Camunda.Timeout
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.APIs.GenAI.BaseURL == "" {
		return fmt.Errorf("apis.genai.base_url is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.Providers.Backend {
	case "http":
		if cfg.Providers.BaseURL == "" {
			return fmt.Errorf("providers.base_url is required for the http backend")
		}
	case "elasticsearch":
		if len(cfg.Database.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses is required for the elasticsearch backend")
		}
	default:
		return fmt.Errorf("providers.backend must be http or elasticsearch, got %q", cfg.Providers.Backend)
	}

	switch cfg.Auth.Mode {
	case "header":
	case "keycloak":
		if cfg.Auth.Keycloak.URL == "" || cfg.Auth.Keycloak.Realm == "" {
			return fmt.Errorf("auth.keycloak.url and auth.keycloak.realm are required in keycloak mode")
		}
	default:
		return fmt.Errorf("auth.mode must be header or keycloak, got %q", cfg.Auth.Mode)
	}

	if cfg.Audit.Postgres.Enabled {
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.host and database are required when audit.postgres is enabled")
		}
	}
	if cfg.Audit.SNS.Enabled && cfg.Audit.SNS.TopicARN == "" {
		return fmt.Errorf("audit.sns.topic_arn is required when audit.sns is enabled")
	}
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	if _, err := time.LoadLocation(cfg.Assistant.DefaultTimezone); err != nil {
		return fmt.Errorf("assistant.default_timezone: %w", err)
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       cfg.Camunda.Timeout,
	}
}
