// Package config provides configuration management for the Aksjeradar backend.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Access     AccessConfig
	Billing    BillingConfig
	MarketData MarketDataConfig
	RateLimit  RateLimitConfig
	SMTP       SMTPConfig
	News       NewsConfig
	Logging    LoggingConfig
	Metrics    MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig groups the storage backends
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration for the tick history store
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// AccessConfig holds the exempt-account allowlist
type AccessConfig struct {
	ExemptEmails []string
}

// BillingConfig holds payment gateway integration configuration
type BillingConfig struct {
	WebhookSecret string
	MonthlyNOK    string
	YearlyNOK     string
	TrialDays     int
}

// MarketDataConfig holds market data provider and poller configuration
type MarketDataConfig struct {
	ProviderURL    string
	APIKey         string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Symbols        []string
	QuoteTTL       time.Duration
	AllowFallback  bool
}

// RateLimitConfig holds request-rate and daily-quota configuration per tier
type RateLimitConfig struct {
	DemoRPS        int
	PremiumRPS     int
	Burst          int
	DemoDailyQuota int64
}

// SMTPConfig holds outbound email configuration
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

// NewsConfig holds the market news feed configuration
type NewsConfig struct {
	FeedURL    string
	RefreshTTL time.Duration
	MaxItems   int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
	Env   string
}

// MetricsConfig holds the metrics/health server configuration
type MetricsConfig struct {
	Port string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "aksjeradar"),
				User:           getEnv("POSTGRES_USER", "aksjeradar"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "aksjeradar"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", ""),
			AccessTokenTTL:  getEnvAsDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
			RefreshTokenTTL: getEnvAsDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			BcryptCost:      getEnvAsInt("BCRYPT_COST", 10),
		},
		Access: AccessConfig{
			ExemptEmails: getEnvAsSlice("EXEMPT_EMAILS", nil),
		},
		Billing: BillingConfig{
			WebhookSecret: getEnv("BILLING_WEBHOOK_SECRET", ""),
			MonthlyNOK:    getEnv("BILLING_MONTHLY_NOK", "199"),
			YearlyNOK:     getEnv("BILLING_YEARLY_NOK", "1990"),
			TrialDays:     getEnvAsInt("BILLING_TRIAL_DAYS", 14),
		},
		MarketData: MarketDataConfig{
			ProviderURL:    getEnv("MARKET_PROVIDER_URL", "https://quotes.example.com"),
			APIKey:         getEnv("MARKET_PROVIDER_API_KEY", ""),
			PollInterval:   getEnvAsDuration("MARKET_POLL_INTERVAL", 30*time.Second),
			RequestTimeout: getEnvAsDuration("MARKET_REQUEST_TIMEOUT", 10*time.Second),
			Symbols:        getEnvAsSlice("MARKET_SYMBOLS", []string{"EQNR.OL", "DNB.OL", "TEL.OL", "NHY.OL", "MOWI.OL", "YAR.OL", "AKRBP.OL", "ORK.OL", "SALM.OL", "STB.OL"}),
			QuoteTTL:       getEnvAsDuration("MARKET_QUOTE_TTL", 5*time.Minute),
			AllowFallback:  getEnvAsBool("MARKET_ALLOW_FALLBACK", true),
		},
		RateLimit: RateLimitConfig{
			DemoRPS:        getEnvAsInt("RATE_LIMIT_DEMO_RPS", 2),
			PremiumRPS:     getEnvAsInt("RATE_LIMIT_PREMIUM_RPS", 20),
			Burst:          getEnvAsInt("RATE_LIMIT_BURST", 10),
			DemoDailyQuota: int64(getEnvAsInt("RATE_LIMIT_DEMO_DAILY_QUOTA", 100)),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			Sender:   getEnv("SMTP_SENDER", "Aksjeradar <ikke-svar@aksjeradar.no>"),
		},
		News: NewsConfig{
			FeedURL:    getEnv("NEWS_FEED_URL", "https://www.newsweb.no/rss"),
			RefreshTTL: getEnvAsDuration("NEWS_REFRESH_TTL", time.Hour),
			MaxItems:   getEnvAsInt("NEWS_MAX_ITEMS", 25),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Env:   getEnv("ENV", "local"),
		},
		Metrics: MetricsConfig{
			Port: getEnv("METRICS_PORT", "9090"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Billing.WebhookSecret == "" {
		return fmt.Errorf("BILLING_WEBHOOK_SECRET is required")
	}
	if c.Database.Postgres.MaxConnections <= 0 {
		return fmt.Errorf("POSTGRES_MAX_CONNECTIONS must be positive")
	}
	if c.MarketData.PollInterval < time.Second {
		return fmt.Errorf("MARKET_POLL_INTERVAL must be at least 1s")
	}
	if len(c.MarketData.Symbols) == 0 {
		return fmt.Errorf("MARKET_SYMBOLS must not be empty")
	}
	if c.RateLimit.DemoRPS <= 0 || c.RateLimit.PremiumRPS <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultVal
	}
	return value
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultVal
	}
	return value
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultVal
	}
	return value
}

func getEnvAsSlice(key string, defaultVal []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// PostgresURL builds a migration-friendly connection URL.
func (c *PostgresConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}
