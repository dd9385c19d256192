package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint string

	HTTPAddr string

	MigrateOnStart bool

	NodeID int64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis RedisConfig

	Queue QueueConfig

	Provider ProviderClientConfig

	Scheduler SchedulerConfig

	Bootstrap BootstrapConfig

	MetricsPush MetricsPushConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type QueueConfig struct {
	Backend         string
	Queues          []string
	WorkersPerQueue int
	DefaultTimeout  time.Duration
	JobTTL          time.Duration
}

type ProviderClientConfig struct {
	RequestTimeout time.Duration
	RetryUnit      time.Duration
}

// BootstrapConfig installs an admin API key on first start so the API can
// be used before any key exists.
type BootstrapConfig struct {
	APIKeyName string
	APIKey     string
}

// MetricsPushConfig ships claim accounting counters to a central
// Prometheus. An empty Exporter disables pushing.
type MetricsPushConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
	Interval  time.Duration
}

func (c MetricsPushConfig) Enabled() bool {
	return strings.TrimSpace(c.Exporter) != ""
}

type SchedulerConfig struct {
	SyncInterval time.Duration
	JobTimeout   time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "hmsinsure"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),

		MigrateOnStart: getenvBool("MIGRATE_ON_START", true),
		NodeID:         getenvInt64("SNOWFLAKE_NODE_ID", 1),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "hmsinsure"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Queue: QueueConfig{
			Backend:         strings.ToLower(getenv("QUEUE_BACKEND", "redis")),
			Queues:          parseList(getenv("QUEUE_NAMES", "default,long")),
			WorkersPerQueue: int(getenvInt64("QUEUE_WORKERS", 2)),
			DefaultTimeout:  getenvDuration("QUEUE_DEFAULT_TIMEOUT", 25*time.Minute),
			JobTTL:          getenvDuration("QUEUE_JOB_TTL", 24*time.Hour),
		},
		Provider: ProviderClientConfig{
			RequestTimeout: getenvDuration("PROVIDER_REQUEST_TIMEOUT", 5*time.Minute),
			RetryUnit:      getenvDuration("PROVIDER_RETRY_UNIT", time.Second),
		},
		Scheduler: SchedulerConfig{
			SyncInterval: getenvDuration("SCHEDULER_SYNC_INTERVAL", 24*time.Hour),
			JobTimeout:   getenvDuration("SCHEDULER_JOB_TIMEOUT", time.Minute),
		},
		Bootstrap: BootstrapConfig{
			APIKeyName: getenv("BOOTSTRAP_API_KEY_NAME", "bootstrap"),
			APIKey:     strings.TrimSpace(os.Getenv("BOOTSTRAP_API_KEY")),
		},
		MetricsPush: MetricsPushConfig{
			Exporter:  strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_PUSH_EXPORTER"))),
			Endpoint:  strings.TrimSpace(os.Getenv("METRICS_PUSH_ENDPOINT")),
			AuthToken: strings.TrimSpace(os.Getenv("METRICS_PUSH_TOKEN")),
			Interval:  getenvDuration("METRICS_PUSH_INTERVAL", time.Minute),
		},
	}

	if !cfg.Redis.Enabled() && cfg.Queue.Backend == "redis" {
		cfg.Queue.Backend = "memory"
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
