// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Auth          AuthConfig              `mapstructure:"auth"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Providers     ProvidersConfig         `mapstructure:"providers"`
	Assistant     AssistantConfig         `mapstructure:"assistant"`
	Audit         AuditConfig             `mapstructure:"audit"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	ReadTimeout     int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"` // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	RateLimit       struct {
		Enabled   bool `mapstructure:"enabled"`
		Requests  int  `mapstructure:"requests"`
		WindowSec int  `mapstructure:"window_sec"`
	} `mapstructure:"rate_limit"`
}

type CamundaConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BrokerAddress string `mapstructure:"broker_address"`
	MaxJobsActive int    `mapstructure:"max_jobs_active"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	IndexPrefix string   `mapstructure:"index_prefix"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// WorkerConfig holds the core settings applicable to every Zeebe worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

// AuthConfig controls how the HTTP surface derives the customer identity.
type AuthConfig struct {
	Mode string `mapstructure:"mode"` // "keycloak" or "header"

	Keycloak struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		CustomerAttr string `mapstructure:"customer_claim"`
	} `mapstructure:"keycloak"`

	TrustedHeader string `mapstructure:"trusted_header"`
}

// APIsConfig holds settings for the external text-generation service.
type APIsConfig struct {
	GenAI struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds

		IntentTimeout    int `mapstructure:"intent_timeout"`
		TimeRangeTimeout int `mapstructure:"time_range_timeout"`
		DraftTimeout     int `mapstructure:"draft_timeout"`
	} `mapstructure:"genai"`
}

// ProvidersConfig selects the banking data provider backend.
type ProvidersConfig struct {
	Backend string            `mapstructure:"backend"` // "http" or "elasticsearch"
	BaseURL string            `mapstructure:"base_url"`
	APIKey  string            `mapstructure:"api_key"`
	Timeout int               `mapstructure:"timeout"` // milliseconds
	Paths   map[string]string `mapstructure:"paths"`
}

// AssistantConfig holds the conversation pipeline knobs.
type AssistantConfig struct {
	WorkingLanguage    string `mapstructure:"working_language"`
	DefaultTimezone    string `mapstructure:"default_timezone"`
	SessionIdleTTL     int    `mapstructure:"session_idle_ttl"`      // seconds
	SessionRetention   int    `mapstructure:"session_retention_ttl"` // seconds
	SummaryCap         int    `mapstructure:"summary_cap"`
	HistoryWindow      int    `mapstructure:"history_window"`
	ScreeningEnabled   bool   `mapstructure:"screening_enabled"`
	ScreeningFailOpen  bool   `mapstructure:"screening_fail_open"`
	TranslationEnabled bool   `mapstructure:"translation_enabled"`
	FallbackDomain     string `mapstructure:"fallback_domain"`
	MainAccountAlias   string `mapstructure:"main_account_alias"`
}

type AuditConfig struct {
	Postgres struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"postgres"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

type ObservabilityConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Tracing     struct {
		Enabled        bool   `mapstructure:"enabled"`
		JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	} `mapstructure:"tracing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// IdleTTL returns the session idle TTL as a duration.
func (a AssistantConfig) IdleTTL() time.Duration {
	return time.Duration(a.SessionIdleTTL) * time.Second
}

// RetentionTTL returns how long a session key survives in the store.
func (a AssistantConfig) RetentionTTL() time.Duration {
	return time.Duration(a.SessionRetention) * time.Second
}
