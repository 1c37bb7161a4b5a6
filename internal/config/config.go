package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App         AppConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Auth        AuthConfig
	Billing     BillingConfig
	Provisioner ProvisionerConfig
	Platform    PlatformConfig
	Monitor     MonitorConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	MetricsAddr           string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// BillingConfig points at the external subscription billing provider.
type BillingConfig struct {
	APIURL         string
	APIKey         string
	TimeoutSeconds int
}

// ProvisionerConfig describes the external provisioning system: the outbound
// lifecycle webhook endpoint plus the shared secret its inbound signals carry.
type ProvisionerConfig struct {
	WebhookURL     string
	SharedSecret   string
	QueueSize      int
	Workers        int
	TimeoutSeconds int
}

// PlatformConfig holds platform-wide identity used by domain validation.
type PlatformConfig struct {
	RootDomain string
	BaseURL    string
	IngressIP  string
	DNSTimeout int
}

// MonitorConfig controls the app availability sampler.
type MonitorConfig struct {
	Enabled         bool
	IntervalSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "app-platform"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			MetricsAddr:           getEnv("METRICS_ADDR", ":9090"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Billing: BillingConfig{
			APIURL:         getEnv("BILLING_API_URL", ""),
			APIKey:         os.Getenv("BILLING_API_KEY"),
			TimeoutSeconds: getEnvAsInt("BILLING_TIMEOUT_SECONDS", 15),
		},
		Provisioner: ProvisionerConfig{
			WebhookURL:     getEnv("PROVISIONER_WEBHOOK_URL", ""),
			SharedSecret:   os.Getenv("PROVISIONER_SHARED_SECRET"),
			QueueSize:      getEnvAsInt("PROVISIONER_QUEUE_SIZE", 256),
			Workers:        getEnvAsInt("PROVISIONER_WORKERS", 4),
			TimeoutSeconds: getEnvAsInt("PROVISIONER_TIMEOUT_SECONDS", 10),
		},
		Platform: PlatformConfig{
			RootDomain: getEnv("PLATFORM_ROOT_DOMAIN", "localhost"),
			BaseURL:    getEnv("PLATFORM_BASE_URL", "http://localhost:8080"),
			IngressIP:  getEnv("PLATFORM_INGRESS_IP", "127.0.0.1"),
			DNSTimeout: getEnvAsInt("PLATFORM_DNS_TIMEOUT_SECONDS", 5),
		},
		Monitor: MonitorConfig{
			Enabled:         getEnvAsBool("MONITOR_ENABLED", true),
			IntervalSeconds: getEnvAsInt("MONITOR_INTERVAL_SECONDS", 60),
		},
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must not be empty")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the billing client timeout.
func (b BillingConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// Timeout returns the per-delivery webhook timeout.
func (p ProvisionerConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// DNSLookupTimeout bounds a single DNS resolution.
func (p PlatformConfig) DNSLookupTimeout() time.Duration {
	if p.DNSTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(p.DNSTimeout) * time.Second
}

// Interval returns the sampling interval.
func (m MonitorConfig) Interval() time.Duration {
	if m.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(m.IntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
