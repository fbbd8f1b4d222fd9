// Package config loads application configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Search, Store, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Search    SearchConfig    `yaml:"search"`
	Store     StoreConfig     `yaml:"store"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 int           `yaml:"port"`
	ReadTimeout          time.Duration `yaml:"readTimeout"`
	WriteTimeout         time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout      time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout       time.Duration `yaml:"requestTimeout"`
	SlowRequestThreshold time.Duration `yaml:"slowRequestThreshold"`
	AllowedOrigins       []string      `yaml:"allowedOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Database         string        `yaml:"database"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	SSLMode          string        `yaml:"sslMode"`
	MaxOpenConns     int           `yaml:"maxOpenConns"`
	MaxIdleConns     int           `yaml:"maxIdleConns"`
	ConnMaxLifetime  time.Duration `yaml:"connMaxLifetime"`
	StatementTimeout time.Duration `yaml:"statementTimeout"`
}

// DSN returns a lib/pq-compatible data source name. A non-zero
// StatementTimeout is passed as a runtime parameter so the server cancels
// runaway queries on its own.
func (p PostgresConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
	if p.StatementTimeout > 0 {
		dsn += fmt.Sprintf(" statement_timeout=%d", p.StatementTimeout.Milliseconds())
	}
	return dsn
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents    string `yaml:"searchEvents"`
	CacheInvalidate string `yaml:"cacheInvalidate"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SearchConfig controls query validation, paging and aggregation limits.
type SearchConfig struct {
	MaxQueryLength  int           `yaml:"maxQueryLength"`
	DefaultPageSize int           `yaml:"defaultPageSize"`
	MaxPageSize     int           `yaml:"maxPageSize"`
	TopN            int           `yaml:"topN"`
	TextMatch       string        `yaml:"textMatch"`
	StageTimeout    time.Duration `yaml:"stageTimeout"`
	StatsTTL        time.Duration `yaml:"statsTTL"`
	ExportMaxRows   int           `yaml:"exportMaxRows"`
}

// StoreConfig selects the contract store backend. The memory backend is
// meant for local development and is seeded from a JSON-lines file.
type StoreConfig struct {
	Backend  string `yaml:"backend"`
	SeedFile string `yaml:"seedFile"`
}

// AnalyticsConfig controls search-history event publishing.
type AnalyticsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

// AuthConfig controls API-key checks and rate limiting on admin routes.
type AuthConfig struct {
	Enabled        bool    `yaml:"enabled"`
	DefaultRate    float64 `yaml:"defaultRate"`
	DefaultBurst   int     `yaml:"defaultBurst"`
	BootstrapAdmin string  `yaml:"bootstrapAdmin"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Search.TextMatch {
	case "substring", "fulltext":
	default:
		return fmt.Errorf("unknown search text match %q", c.Search.TextMatch)
	}
	if c.Search.MaxQueryLength <= 0 {
		return fmt.Errorf("search.maxQueryLength must be positive")
	}
	if c.Search.MaxPageSize <= 0 || c.Search.DefaultPageSize <= 0 {
		return fmt.Errorf("search page sizes must be positive")
	}
	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		c.Search.DefaultPageSize = c.Search.MaxPageSize
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                 8080,
			ReadTimeout:          30 * time.Second,
			WriteTimeout:         60 * time.Second,
			ShutdownTimeout:      15 * time.Second,
			RequestTimeout:       30 * time.Second,
			SlowRequestThreshold: 1 * time.Second,
			AllowedOrigins:       []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:             "localhost",
			Port:             5432,
			Database:         "contracts",
			User:             "contracts",
			Password:         "localdev",
			SSLMode:          "disable",
			MaxOpenConns:     25,
			MaxIdleConns:     5,
			ConnMaxLifetime:  5 * time.Minute,
			StatementTimeout: 20 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "contracts-analytics",
			Topics: KafkaTopics{
				SearchEvents:    "search-events",
				CacheInvalidate: "cache-invalidate",
			},
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Search: SearchConfig{
			MaxQueryLength:  2000,
			DefaultPageSize: 50,
			MaxPageSize:     100,
			TopN:            20,
			TextMatch:       "substring",
			StageTimeout:    10 * time.Second,
			StatsTTL:        time.Hour,
			ExportMaxRows:   10000,
		},
		Store: StoreConfig{
			Backend: "postgres",
		},
		Analytics: AnalyticsConfig{
			Enabled:       true,
			FlushInterval: 30 * time.Second,
		},
		Auth: AuthConfig{
			Enabled:      true,
			DefaultRate:  10,
			DefaultBurst: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads CS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("CS_SERVER_PORT", &cfg.Server.Port)
	setString("CS_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("CS_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("CS_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("CS_POSTGRES_USER", &cfg.Postgres.User)
	setString("CS_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("CS_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setDuration("CS_POSTGRES_STATEMENT_TIMEOUT", &cfg.Postgres.StatementTimeout)
	if v := os.Getenv("CS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setBool("CS_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("CS_REDIS_ADDR", &cfg.Redis.Addr)
	setString("CS_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("CS_SEARCH_MAX_QUERY_LENGTH", &cfg.Search.MaxQueryLength)
	setString("CS_SEARCH_TEXT_MATCH", &cfg.Search.TextMatch)
	setDuration("CS_SEARCH_STATS_TTL", &cfg.Search.StatsTTL)
	setString("CS_STORE_BACKEND", &cfg.Store.Backend)
	setString("CS_STORE_SEED_FILE", &cfg.Store.SeedFile)
	setBool("CS_ANALYTICS_ENABLED", &cfg.Analytics.Enabled)
	setBool("CS_AUTH_ENABLED", &cfg.Auth.Enabled)
	setString("CS_AUTH_BOOTSTRAP_ADMIN", &cfg.Auth.BootstrapAdmin)
	setString("CS_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("CS_LOGGING_FORMAT", &cfg.Logging.Format)
	setInt("CS_METRICS_PORT", &cfg.Metrics.Port)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
