package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Workflow      WorkflowConfig      `mapstructure:"workflow"`
	Events        EventsConfig        `mapstructure:"events"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret" validate:"required"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" validate:"required"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// WorkflowConfig seeds the persisted review settings the first time the
// service starts against an empty settings table.
type WorkflowConfig struct {
	DefaultHourlyRate     float64 `mapstructure:"default_hourly_rate"`
	MileageRate           float64 `mapstructure:"mileage_rate"`
	DualApprovalThreshold float64 `mapstructure:"dual_approval_threshold"`
	StaleDraftDays        int     `mapstructure:"stale_draft_days"`
	AnnualBudget          float64 `mapstructure:"annual_budget"`
}

type EventsConfig struct {
	WorkerPoolSize int `mapstructure:"worker_pool_size"`
}

type NotificationConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      string        `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RateLimitConfig struct {
	PerSecond int `mapstructure:"per_second"`
	Burst     int `mapstructure:"burst"`
}

// ----------------- DEFAULTS -----------------

func LoadConfigFromEnv() *Config {
	return &Config{
		Environment: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("HTTP_BASE_URL", ""),
			AllowedOrigins:    getEnv("HTTP_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		Security: SecurityConfig{
			AccessTokenSecret:    getEnv("JWT_ACCESS_SECRET", ""),
			RefreshTokenSecret:   getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenDuration:  getEnvAsDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTokenDuration: getEnvAsDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 12),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Workflow: WorkflowConfig{
			DefaultHourlyRate:     getEnvAsFloat("WORKFLOW_DEFAULT_HOURLY_RATE", 25),
			MileageRate:           getEnvAsFloat("WORKFLOW_MILEAGE_RATE", 0.67),
			DualApprovalThreshold: getEnvAsFloat("WORKFLOW_DUAL_APPROVAL_THRESHOLD", 0),
			StaleDraftDays:        getEnvAsInt("WORKFLOW_STALE_DRAFT_DAYS", 7),
			AnnualBudget:          getEnvAsFloat("WORKFLOW_ANNUAL_BUDGET", 0),
		},
		Events: EventsConfig{
			WorkerPoolSize: getEnvAsInt("EVENTS_WORKER_POOL_SIZE", 16),
		},
		Notifications: NotificationConfig{
			Enabled:      getEnv("NOTIFICATIONS_ENABLED", "false") == "true",
			Brokers:      getEnv("NOTIFICATIONS_KAFKA_BROKERS", ""),
			Topic:        getEnv("NOTIFICATIONS_KAFKA_TOPIC", "hoa.notifications"),
			WriteTimeout: getEnvAsDuration("NOTIFICATIONS_WRITE_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			PerSecond: getEnvAsInt("RATE_LIMIT_PER_SECOND", 20),
			Burst:     getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Workflow.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("workflow config: %v", err))
	}

	if err := c.Notifications.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("notifications config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *SecurityConfig) Validate() error {
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("access_token_secret must be at least 32 characters")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return errors.New("refresh_token_secret must be at least 32 characters")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.BCryptCost < 10 || c.BCryptCost > 15 {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *WorkflowConfig) Validate() error {
	if c.DefaultHourlyRate < 0 || c.MileageRate < 0 || c.AnnualBudget < 0 {
		return errors.New("rates and budget cannot be negative")
	}
	if c.DualApprovalThreshold < 0 {
		return errors.New("dual_approval_threshold cannot be negative")
	}
	if c.StaleDraftDays < 1 {
		return errors.New("stale_draft_days must be at least 1")
	}
	return nil
}

func (c *NotificationConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Brokers == "" {
		return errors.New("brokers are required when notifications are enabled")
	}
	if c.Topic == "" {
		return errors.New("topic is required when notifications are enabled")
	}
	return nil
}
