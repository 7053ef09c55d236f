// Package config loads application configuration from a YAML file with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Source, Browse, Postgres, Kafka, Redis, etc.).
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
	Source    SourceConfig    `yaml:"source"`
	Browse    BrowseConfig    `yaml:"browse"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RPC       RPCConfig       `yaml:"rpc"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// SourceConfig selects where the document collection comes from.
type SourceConfig struct {
	Kind     string        `yaml:"kind"`
	URL      string        `yaml:"url"`
	Path     string        `yaml:"path"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
	Retry    RetryConfig   `yaml:"retry"`
	Breaker  BreakerConfig `yaml:"breaker"`
	Seed     int64         `yaml:"seed"`
}

// RetryConfig controls source load retries.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// BreakerConfig controls the source circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// BrowseConfig controls sessions and result presentation.
type BrowseConfig struct {
	SessionTTL     time.Duration `yaml:"sessionTTL"`
	MaxSessions    int           `yaml:"maxSessions"`
	SweepInterval  time.Duration `yaml:"sweepInterval"`
	DefaultSort    string        `yaml:"defaultSort"`
	HighlightOpen  string        `yaml:"highlightOpen"`
	HighlightClose string        `yaml:"highlightClose"`
	ShuffleSeed    int64         `yaml:"shuffleSeed"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables every Kafka-backed feature.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents   string `yaml:"analyticsEvents"`
	CollectionUpdates string `yaml:"collectionUpdates"`
}

// Enabled reports whether any brokers are configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables caching.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	KeyPrefix string        `yaml:"keyPrefix"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls request span logging.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// RPCConfig controls the internal JSON-over-TCP RPC listener.
type RPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AnalyticsConfig controls the analytics service.
type AnalyticsConfig struct {
	Port             int           `yaml:"port"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	RecentWindow     int           `yaml:"recentWindow"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of the defaults.
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
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "http":
		if c.Source.URL == "" {
			return fmt.Errorf("source.url is required for kind http")
		}
	case "file":
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for kind file")
		}
	case "postgres":
	default:
		return fmt.Errorf("unknown source.kind %q (want http, postgres or file)", c.Source.Kind)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rateLimit.requestsPerSecond and rateLimit.burst must be positive")
	}
	return nil
}

// defaultConfig returns defaults suitable for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Source: SourceConfig{
			Kind:     "http",
			URL:      "https://dummyjson.com/posts",
			Timeout:  10 * time.Second,
			CacheTTL: 10 * time.Minute,
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 200 * time.Millisecond,
				MaxDelay:     5 * time.Second,
			},
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
			},
		},
		Browse: BrowseConfig{
			SessionTTL:     30 * time.Minute,
			MaxSessions:    10000,
			SweepInterval:  time.Minute,
			DefaultSort:    "default",
			HighlightOpen:  "<mark>",
			HighlightClose: "</mark>",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "blogsearch",
			User:            "blogsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "blogsearch-group",
			Topics: KafkaTopics{
				AnalyticsEvents:   "browse-analytics-events",
				CollectionUpdates: "collection-updates",
			},
		},
		Redis: RedisConfig{
			PoolSize:  10,
			CacheTTL:  60 * time.Second,
			KeyPrefix: "bsb:",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			SampleRate: 1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		RPC: RPCConfig{
			Addr: ":9091",
		},
		Analytics: AnalyticsConfig{
			Port:             8083,
			SnapshotInterval: time.Minute,
			RecentWindow:     10000,
		},
	}
}

// applyEnvOverrides reads BSB_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("BSB_SERVER_PORT", &cfg.Server.Port)
	setString("BSB_SOURCE_KIND", &cfg.Source.Kind)
	setString("BSB_SOURCE_URL", &cfg.Source.URL)
	setString("BSB_SOURCE_PATH", &cfg.Source.Path)
	setDuration("BSB_SOURCE_TIMEOUT", &cfg.Source.Timeout)
	setDuration("BSB_BROWSE_SESSION_TTL", &cfg.Browse.SessionTTL)
	setInt("BSB_BROWSE_MAX_SESSIONS", &cfg.Browse.MaxSessions)
	setString("BSB_BROWSE_DEFAULT_SORT", &cfg.Browse.DefaultSort)
	setString("BSB_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("BSB_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("BSB_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("BSB_POSTGRES_USER", &cfg.Postgres.User)
	setString("BSB_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("BSB_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	if v := os.Getenv("BSB_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("BSB_REDIS_ADDR", &cfg.Redis.Addr)
	setString("BSB_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("BSB_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("BSB_LOGGING_FORMAT", &cfg.Logging.Format)
	setInt("BSB_METRICS_PORT", &cfg.Metrics.Port)
	if v := os.Getenv("BSB_RPC_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RPC.Enabled = b
		}
	}
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

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
