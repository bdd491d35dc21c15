// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Assignment    AssignmentConfig   `mapstructure:"assignment"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Billing       BillingConfig      `mapstructure:"billing"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port            int    `mapstructure:"port"`
	AdminSweepToken string `mapstructure:"admin_sweep_token"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
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

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	DevIndex   string   `mapstructure:"dev_index"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
}

// AssignmentConfig holds the batch-generation and sweep settings.
type AssignmentConfig struct {
	AcceptanceWindowMinutes int `mapstructure:"acceptance_window_minutes"`
	SweepIntervalSeconds    int `mapstructure:"sweep_interval_seconds"`
	SweepPageSize           int `mapstructure:"sweep_page_size"`
	DefaultFresherCount     int `mapstructure:"default_fresher_count"`
	DefaultMidCount         int `mapstructure:"default_mid_count"`
	DefaultExpertCount      int `mapstructure:"default_expert_count"`
	DefaultResponseTimeMs   int `mapstructure:"default_response_time_ms"`
	SnapshotCacheTTLMinutes int `mapstructure:"snapshot_cache_ttl_minutes"`
	WebhookDedupTTLHours    int `mapstructure:"webhook_dedup_ttl_hours"`
}

// NotificationConfig holds settings for outbound candidate notifications.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	QueueSize  int `mapstructure:"queue_size"`
	MaxRetries int `mapstructure:"max_retries"`
}

// BillingConfig holds settings for the external billing gate.
type BillingConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
