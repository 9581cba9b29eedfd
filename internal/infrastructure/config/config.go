package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Event     EventConfig
	Ledger    LedgerConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// EventConfig holds outbox delivery configuration
type EventConfig struct {
	ProcessorEnabled   bool
	BatchSize          int
	PollInterval       time.Duration
	CleanupEnabled     bool
	CleanupRetention   time.Duration
	CleanupInterval    time.Duration
	IdempotencyEnabled bool
	IdempotencyStore   string // memory or redis
	IdempotencyTTL     time.Duration
}

// LedgerConfig holds ledger behaviour settings
type LedgerConfig struct {
	LockTimeout           time.Duration // postgres lock_timeout per transaction, 0 = server default
	DefaultReservationTTL time.Duration // applied when a reservation has no expiration date, 0 = never expires
	ExpirySweepEnabled    bool
	ExpirySweepInterval   time.Duration
	ExpirySweepBatchSize  int
	// LowAvailableThreshold raises stock alerts and feeds the low stock
	// gauge when available quantity drops to or below it
	LowAvailableThreshold decimal.Decimal
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration
	MetricsInterval   time.Duration // gauge collection interval
}

// Load reads config.toml from the working directory or /app, then lets
// LEDGER_ prefixed environment variables override it. Keys set nowhere take
// the built-in defaults. LEDGER_DATABASE_PASSWORD sets database.password.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Event: EventConfig{
			ProcessorEnabled:   v.GetBool("event.processor_enabled"),
			BatchSize:          v.GetInt("event.batch_size"),
			PollInterval:       v.GetDuration("event.poll_interval"),
			CleanupEnabled:     v.GetBool("event.cleanup_enabled"),
			CleanupRetention:   v.GetDuration("event.cleanup_retention"),
			CleanupInterval:    v.GetDuration("event.cleanup_interval"),
			IdempotencyEnabled: v.GetBool("event.idempotency_enabled"),
			IdempotencyStore:   v.GetString("event.idempotency_store"),
			IdempotencyTTL:     v.GetDuration("event.idempotency_ttl"),
		},
		Ledger: LedgerConfig{
			LockTimeout:           v.GetDuration("ledger.lock_timeout"),
			DefaultReservationTTL: v.GetDuration("ledger.default_reservation_ttl"),
			ExpirySweepEnabled:    v.GetBool("ledger.expiry_sweep_enabled"),
			ExpirySweepInterval:   v.GetDuration("ledger.expiry_sweep_interval"),
			ExpirySweepBatchSize:  v.GetInt("ledger.expiry_sweep_batch_size"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
		},
	}

	if raw := v.GetString("ledger.low_available_threshold"); raw != "" {
		threshold, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("ledger.low_available_threshold: %w", err)
		}
		cfg.Ledger.LowAvailableThreshold = threshold
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults are the built-in values for every key a deployment may omit
var defaults = map[string]any{
	"app.name": "inventory-ledger",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.dbname":             "inventory_ledger",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host": "localhost",
	"redis.port": 6379,

	"log.level":  "info",
	"log.format": "json",
	"log.output": "stdout",

	"http.read_timeout":       30 * time.Second,
	"http.write_timeout":      30 * time.Second,
	"http.idle_timeout":       120 * time.Second,
	"http.max_header_bytes":   1 << 20,
	"http.max_body_size":      10 << 20,
	"http.cors_allow_methods": []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID", "X-User-ID"},

	"event.batch_size":        100,
	"event.poll_interval":     2 * time.Second,
	"event.cleanup_retention": 7 * 24 * time.Hour,
	"event.cleanup_interval":  time.Hour,
	"event.idempotency_store": "memory",
	"event.idempotency_ttl":   24 * time.Hour,

	"ledger.expiry_sweep_interval":   time.Minute,
	"ledger.expiry_sweep_batch_size": 100,

	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.metrics_interval":        5 * time.Minute,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return errors.New("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return errors.New("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Event.IdempotencyStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("event.idempotency_store must be memory or redis, got %q", c.Event.IdempotencyStore)
	}
	if c.Ledger.LockTimeout < 0 {
		return fmt.Errorf("ledger.lock_timeout cannot be negative")
	}
	if c.Ledger.DefaultReservationTTL < 0 {
		return fmt.Errorf("ledger.default_reservation_ttl cannot be negative")
	}
	if c.Ledger.LowAvailableThreshold.IsNegative() {
		return fmt.Errorf("ledger.low_available_threshold cannot be negative")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
