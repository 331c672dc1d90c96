package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration assembled from the environment.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Deletion  DeletionConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// AdminToken enables the operator routes when non-empty.
	AdminToken string
}

// DatabaseConfig configures the Postgres pool. An empty URL selects the
// in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the go-redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the outbox relay. No brokers disables the relay.
type KafkaConfig struct {
	Brokers        []string
	AuditTopic     string
	Partitions     int32
	Replication    int16
	OutboxInterval time.Duration
	OutboxBatch    int
}

type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// DeletionConfig holds approval workflow tuning.
type DeletionConfig struct {
	ReviewLockTTL time.Duration
}

// RateLimitConfig bounds API calls per user. Zero requests disables it.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// UsesPostgres reports whether the durable stores are configured.
func (c Config) UsesPostgres() bool {
	return c.Database.URL != ""
}

// FromEnv builds the config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() Config {
	_ = godotenv.Load()

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Server: Server{
			Addr:            envString("MASTERCOM_ADDR", ":8080"),
			RequestTimeout:  envDuration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AdminToken:      os.Getenv("ADMIN_API_TOKEN"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:        envList("KAFKA_BROKERS"),
			AuditTopic:     envString("KAFKA_AUDIT_TOPIC", "mastercom.audit"),
			Partitions:     int32(envInt("KAFKA_AUDIT_PARTITIONS", 3)),
			Replication:    int16(envInt("KAFKA_AUDIT_REPLICATION", 1)),
			OutboxInterval: envDuration("OUTBOX_POLL_INTERVAL", time.Second),
			OutboxBatch:    envInt("OUTBOX_BATCH_SIZE", 100),
		},
		Auth: AuthConfig{
			JWTSigningKey: jwtSigningKey,
			Issuer:        envString("JWT_ISSUER", "mastercom"),
			Audience:      envString("JWT_AUDIENCE", "mastercom-api"),
			TokenTTL:      envDuration("JWT_TTL", 8*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: envListDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Deletion: DeletionConfig{
			ReviewLockTTL: envDuration("REVIEW_LOCK_TTL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			Requests: envInt("RATE_LIMIT_REQUESTS", 120),
			Window:   envDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key string) []string {
	return envListDefault(key, nil)
}

func envListDefault(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
