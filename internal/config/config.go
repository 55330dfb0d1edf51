package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL is only required when the
// postgres backend is selected.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Backing store
	StoreBackend string // memory | postgres | dynamodb
	DatabaseURL  string
	DBMaxConns   int32
	DBMinConns   int32
	DynamoTable  string

	// Slot keys: one holds the event collection, the other the lock record.
	QueueKey string
	LockKey  string

	// Write retry backoff durations: index 0 = delay before second attempt, etc.
	StoreRetryBackoff []time.Duration

	// Cross-instance lock
	LockEnabled        bool
	LockMode           string
	LockDuration       time.Duration
	LockCheckInterval  time.Duration
	LockAcquireTimeout time.Duration

	// Flusher
	FlushInterval    time.Duration
	FlushMaxAttempts int
	SinkURL          string
	SinkTimeout      time.Duration

	// Rate limiting: maximum deliveries per second during a flush cycle
	RateLimit int
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DBMaxConns:   int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:   int32(getInt("DB_MIN_CONNS", 2)),
		DynamoTable:  getEnv("DYNAMO_TABLE", "event-buffer-slots"),

		QueueKey: getEnv("QUEUE_KEY", "telemetry.eventQueue"),
		LockKey:  getEnv("LOCK_KEY", "telemetry.queueLock"),

		StoreRetryBackoff: []time.Duration{
			getDuration("STORE_RETRY_BACKOFF_1", 100*time.Millisecond),
			getDuration("STORE_RETRY_BACKOFF_2", 250*time.Millisecond),
			getDuration("STORE_RETRY_BACKOFF_3", 500*time.Millisecond),
		},

		LockEnabled:        getBool("LOCK_ENABLED", true),
		LockMode:           getEnv("LOCK_MODE", "compete"),
		LockDuration:       getDuration("LOCK_DURATION", 30*time.Second),
		LockCheckInterval:  getDuration("LOCK_CHECK_INTERVAL", 500*time.Millisecond),
		LockAcquireTimeout: getDuration("LOCK_ACQUIRE_TIMEOUT", 5*time.Second),

		FlushInterval:    getDuration("FLUSH_INTERVAL", 30*time.Second),
		FlushMaxAttempts: getInt("FLUSH_MAX_ATTEMPTS", 5),
		SinkURL:          getEnv("SINK_URL", "http://localhost:9090/ingest"),
		SinkTimeout:      getDuration("SINK_TIMEOUT", 10*time.Second),

		RateLimit: getInt("RATE_LIMIT_PER_SEC", 50),
	}

	if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
	}

	return cfg, nil
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

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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
