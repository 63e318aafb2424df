package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Catalog CatalogConfig
	Store   StoreConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Stripe  StripeConfig
	Auth    AuthConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Dir   string
	Level string
}

// CatalogConfig points at the external ticketing API.
type CatalogConfig struct {
	BaseURL string
	Timeout time.Duration
}

type StoreConfig struct {
	Backend     string // memory, file, redis, sqlite, postgres
	Dir         string
	SQLitePath  string
	PostgresDSN string
	CartKey     string
	CartTTL     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers    []string
	OrderTopic string
	Enabled    bool
}

type StripeConfig struct {
	SecretKey string
	Currency  string
	APIURL    string
}

type AuthConfig struct {
	OIDCIssuer string
	QRSecret   string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8085"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", "logs"),
			Level: getEnv("LOG_LEVEL", "INFO"),
		},
		Catalog: CatalogConfig{
			BaseURL: strings.TrimSuffix(getEnv("CATALOG_API_URL", "http://localhost:8000/api"), "/"),
			Timeout: getEnvDuration("CATALOG_TIMEOUT", 10*time.Second),
		},
		Store: StoreConfig{
			Backend:     strings.ToLower(getEnv("STORE_BACKEND", "file")),
			Dir:         getEnv("STORE_DIR", "data"),
			SQLitePath:  getEnv("SQLITE_PATH", "file:storefront.db?cache=shared"),
			PostgresDSN: getEnv("POSTGRES_DSN", ""),
			CartKey:     getEnv("CART_KEY", "ticketCart"),
			CartTTL:     time.Duration(getEnvInt("CART_TTL_MINUTES", 0)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			OrderTopic: getEnv("KAFKA_TOPIC_ORDER_PLACED", "storefront.order.placed"),
			Enabled:    getEnvBool("KAFKA_ENABLED", false),
		},
		Stripe: StripeConfig{
			SecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			Currency:  getEnv("STRIPE_CURRENCY", "kes"),
			APIURL:    getEnv("STRIPE_API_URL", ""),
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
			QRSecret:   getEnv("QR_SECRET_KEY", "storefront-dev-secret"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("15s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
