package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Redis-backed job queue (internal/jobqueue, internal/db)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueuePoll     time.Duration

	// Push gateway (internal/gateway)
	GatewayBaseURL string
	GatewayAPIKey  string
	GatewayTimeout time.Duration

	// Gateway throttling: SendMulticast calls allowed per second, shared
	// across every dispatch and retry worker (internal/ratelimiter).
	GatewayRateLimit int

	// Dispatch worker pool (cmd/worker, internal/dispatch)
	DispatchWorkers int

	// Prometheus scrape port for the worker process (cmd/worker); the API
	// process serves /metrics on its main HTTP port instead.
	WorkerMetricsPort string

	// Timezone discovery sweep interval (internal/discovery, cmd/worker)
	DiscoverySweepInterval time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		QueuePoll:     getDuration("QUEUE_POLL_INTERVAL", 1*time.Second),

		GatewayBaseURL: getEnv("GATEWAY_BASE_URL", "https://fcm.googleapis.com"),
		GatewayAPIKey:  getEnv("GATEWAY_API_KEY", ""),
		GatewayTimeout: getDuration("GATEWAY_TIMEOUT", 10*time.Second),

		GatewayRateLimit: getInt("GATEWAY_RATE_LIMIT", 100),

		DispatchWorkers: getInt("DISPATCH_WORKERS", 5),

		WorkerMetricsPort: getEnv("WORKER_METRICS_PORT", "9090"),

		DiscoverySweepInterval: getDuration("DISCOVERY_SWEEP_INTERVAL", 15*time.Minute),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
