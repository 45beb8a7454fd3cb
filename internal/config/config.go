package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// APIConfig holds the runtime settings for cmd/publish-service.
type APIConfig struct {
	Addr           string
	DatabaseURL    string
	JWTSecret      string
	MigrationsPath string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
}

// StreamerConfig holds the runtime settings for cmd/history-streamer.
type StreamerConfig struct {
	DatabaseURL string

	KafkaBrokers []string
	KafkaTopic   string

	S3Bucket string
	S3Prefix string

	BatchSize      int
	PollInterval   time.Duration
	MaxConcurrency int
}

const (
	defaultAddr         = ":8070"
	defaultKafkaTopic   = "event-status-history"
	defaultS3Prefix     = "governance"
	defaultBatchSize    = 10
	defaultPollInterval = 3 * time.Second
	defaultConcurrency  = 5
)

func LoadAPI() (APIConfig, error) {
	cfg := APIConfig{
		Addr:              getEnv("PUBLISH_SERVICE_ADDR", defaultAddr),
		DatabaseURL:       firstNonEmpty(os.Getenv("PUBLISH_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		JWTSecret:         os.Getenv("PUBLISH_JWT_SECRET"),
		MigrationsPath:    getEnv("PUBLISH_MIGRATIONS_PATH", "migrations"),
		DBMaxOpenConns:    getInt("PUBLISH_DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:    getInt("PUBLISH_DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getDuration("PUBLISH_DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
	if cfg.DatabaseURL == "" {
		return APIConfig{}, fmt.Errorf("DATABASE_URL or PUBLISH_DATABASE_URL required")
	}
	if cfg.JWTSecret == "" {
		return APIConfig{}, fmt.Errorf("PUBLISH_JWT_SECRET required")
	}
	return cfg, nil
}

func LoadStreamer() (StreamerConfig, error) {
	cfg := StreamerConfig{
		DatabaseURL:    firstNonEmpty(os.Getenv("PUBLISH_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		KafkaBrokers:   splitList(os.Getenv("HISTORY_KAFKA_BROKERS")),
		KafkaTopic:     getEnv("HISTORY_KAFKA_TOPIC", defaultKafkaTopic),
		S3Bucket:       os.Getenv("HISTORY_S3_BUCKET"),
		S3Prefix:       getEnv("HISTORY_S3_PREFIX", defaultS3Prefix),
		BatchSize:      getInt("HISTORY_BATCH_SIZE", defaultBatchSize),
		PollInterval:   getDuration("HISTORY_POLL_INTERVAL", defaultPollInterval),
		MaxConcurrency: getInt("HISTORY_MAX_CONCURRENCY", defaultConcurrency),
	}
	if cfg.DatabaseURL == "" {
		return StreamerConfig{}, fmt.Errorf("DATABASE_URL or PUBLISH_DATABASE_URL required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return StreamerConfig{}, fmt.Errorf("HISTORY_KAFKA_BROKERS required")
	}
	if cfg.S3Bucket == "" {
		return StreamerConfig{}, fmt.Errorf("HISTORY_S3_BUCKET required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
