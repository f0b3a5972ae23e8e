// Package config centralizes environment-driven settings so main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures the process-level configuration.
type Server struct {
	Addr          string
	LogLevel      string
	SigningSecret string
	RunLogPath    string
	PostgresDSN   string
	Redis         Redis
	Kafka         Kafka
}

// Redis holds cache connection settings. An empty URL disables the cache.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KPISnapTTL   time.Duration
}

// Kafka holds broker settings. Empty brokers disable publishing and the
// streaming KPI consumer.
type Kafka struct {
	Brokers []string
	Topic   string
	GroupID string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("GNCE_ADDR", ":8080"),
		LogLevel:      envOr("GNCE_LOG_LEVEL", "info"),
		SigningSecret: os.Getenv("GNCE_SIGNING_SECRET"),
		RunLogPath:    envOr("GNCE_RUN_LOG", "out/run_events.ndjson"),
		PostgresDSN:   os.Getenv("GNCE_POSTGRES_DSN"),
		Redis: Redis{
			URL:          os.Getenv("GNCE_REDIS_URL"),
			PoolSize:     envInt("GNCE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("GNCE_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			KPISnapTTL:   envDuration("GNCE_KPI_CACHE_TTL", 30*time.Second),
		},
		Kafka: Kafka{
			Topic:   envOr("GNCE_KAFKA_TOPIC", "gnce.run-events"),
			GroupID: envOr("GNCE_KAFKA_GROUP", "gnce-kpi"),
		},
	}
	if brokers := os.Getenv("GNCE_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
