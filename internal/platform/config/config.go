package config

import (
	"os"
	"strings"
	"time"

	platstrings "fiscalwatch/pkg/platform/strings"
)

// Config captures the process configuration so main stays lean.
type Config struct {
	Addr string

	// DatabaseURL selects the postgres stores when set; empty means the
	// in-memory stores (demo and test mode).
	DatabaseURL string

	// RedisURL enables the redis-backed alert dedup fast path when set.
	RedisURL string

	// KafkaBrokers enables the alert event stream when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	CollectionInterval   time.Duration
	VerificationInterval time.Duration
	WebhookTimeout       time.Duration
}

// FromEnv builds a Config from environment variables with working defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:                 getenv("FISCALWATCH_ADDR", ":8080"),
		DatabaseURL:          os.Getenv("FISCALWATCH_DATABASE_URL"),
		RedisURL:             os.Getenv("FISCALWATCH_REDIS_URL"),
		KafkaTopic:           getenv("FISCALWATCH_KAFKA_TOPIC", "fiscalwatch.alerts"),
		CollectionInterval:   getduration("FISCALWATCH_COLLECTION_INTERVAL", time.Hour),
		VerificationInterval: getduration("FISCALWATCH_VERIFICATION_INTERVAL", 30*time.Minute),
		WebhookTimeout:       getduration("FISCALWATCH_WEBHOOK_TIMEOUT", 10*time.Second),
	}
	if brokers := os.Getenv("FISCALWATCH_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = platstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
