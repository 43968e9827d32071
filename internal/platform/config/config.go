package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean.
type Config struct {
	Addr string

	// JWTSigningKey guards the audit read and operations endpoints.
	JWTSigningKey string

	// PostgresDSN selects the durable ledger store; empty means in-memory.
	PostgresDSN string

	Redis RedisConfig

	Kafka KafkaConfig

	Compliance ComplianceConfig

	Runtime RuntimeConfig

	// ConfidentialTerms extends the CONFIDENTIAL-level redaction list.
	ConfidentialTerms []string
}

// RuntimeConfig points at the local inference runtimes. Empty URLs mean the
// tier is not installed on this host.
type RuntimeConfig struct {
	AcceleratedURL string
	CPUURL         string
	Model          string
	Timeout        time.Duration
}

// RedisConfig configures the optional decision cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DecisionTTL  time.Duration
}

// KafkaConfig configures the optional audit mirror.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ComplianceConfig configures replication to the remote compliance store.
type ComplianceConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RetryInterval time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("SENTRA_ADDR", ":8080"),
		JWTSigningKey: envOr("SENTRA_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("SENTRA_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("SENTRA_REDIS_URL"),
			PoolSize:     envInt("SENTRA_REDIS_POOL_SIZE", 10),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			DecisionTTL:  envDuration("SENTRA_DECISION_CACHE_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("SENTRA_KAFKA_BROKERS")),
			Topic:   envOr("SENTRA_KAFKA_AUDIT_TOPIC", "audit.events"),
		},
		Compliance: ComplianceConfig{
			BaseURL:       os.Getenv("SENTRA_COMPLIANCE_URL"),
			Timeout:       envDuration("SENTRA_COMPLIANCE_TIMEOUT", 10*time.Second),
			RetryInterval: envDuration("SENTRA_COMPLIANCE_RETRY_INTERVAL", 5*time.Minute),
		},
		Runtime: RuntimeConfig{
			AcceleratedURL: os.Getenv("SENTRA_RUNTIME_ACCELERATED_URL"),
			CPUURL:         os.Getenv("SENTRA_RUNTIME_CPU_URL"),
			Model:          envOr("SENTRA_RUNTIME_MODEL", "content-guard-v2"),
			Timeout:        envDuration("SENTRA_RUNTIME_TIMEOUT", 15*time.Second),
		},
		ConfidentialTerms: splitNonEmpty(os.Getenv("SENTRA_CONFIDENTIAL_TERMS")),
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
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
