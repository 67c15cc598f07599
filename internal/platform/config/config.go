package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Worker captures batch-worker level configuration.
type Worker struct {
	OpsAddr string

	PostgresURL string
	Redis       RedisConfig

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	// Parallelism bounds concurrent employee pipelines within one job.
	Parallelism int

	// RuleCacheTTL bounds how long a resolved legal rule may be served from
	// cache. Rules are read-only during a batch run, so one run duration is
	// the right order of magnitude.
	RuleCacheTTL time.Duration

	// StampGrace is how long after scheduled end a missing end stamp is
	// tolerated before the day is persisted as provisional.
	StampGrace time.Duration
}

// RedisConfig holds Redis connection tuning.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Worker config from environment variables so main stays lean.
func FromEnv() Worker {
	cfg := Worker{
		OpsAddr:      getenv("KINTAI_OPS_ADDR", ":9090"),
		PostgresURL:  os.Getenv("KINTAI_POSTGRES_URL"),
		KafkaTopic:   getenv("KINTAI_KAFKA_TOPIC", "kintai.recompute"),
		KafkaGroup:   getenv("KINTAI_KAFKA_GROUP", "kintai-worker"),
		Parallelism:  getenvInt("KINTAI_PARALLELISM", 8),
		RuleCacheTTL: getenvDuration("KINTAI_RULE_CACHE_TTL", 10*time.Minute),
		StampGrace:   getenvDuration("KINTAI_STAMP_GRACE", 4*time.Hour),
		Redis: RedisConfig{
			URL:          os.Getenv("KINTAI_REDIS_URL"),
			PoolSize:     getenvInt("KINTAI_REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("KINTAI_REDIS_MIN_IDLE", 2),
			DialTimeout:  getenvDuration("KINTAI_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("KINTAI_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("KINTAI_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	if brokers := os.Getenv("KINTAI_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
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
