package config

import (
	"os"
	"strings"
	"time"
)

// Store backends selectable at startup.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Server captures process level configuration.
type Server struct {
	Addr string

	// Hex-encoded secp256k1 private keys. Empty means generate an
	// ephemeral key at startup, which is fine for development only.
	IssuerKeyHex string
	HolderKeyHex string

	StoreBackend string
	RedisAddr    string
	DatabaseURL  string

	// KafkaBrokers enables the Kafka audit sink when non-empty.
	KafkaBrokers []string
	AuditTopic   string

	// RegistryLatency simulates confirmation delay of the trust ledger.
	RegistryLatency time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:         envOr("CREDRELAY_ADDR", ":8080"),
		IssuerKeyHex: os.Getenv("CREDRELAY_ISSUER_KEY"),
		HolderKeyHex: os.Getenv("CREDRELAY_HOLDER_KEY"),
		StoreBackend: envOr("CREDRELAY_STORE", StoreMemory),
		RedisAddr:    envOr("CREDRELAY_REDIS_ADDR", "localhost:6379"),
		DatabaseURL:  os.Getenv("CREDRELAY_DATABASE_URL"),
		AuditTopic:   os.Getenv("CREDRELAY_AUDIT_TOPIC"),
	}

	if brokers := os.Getenv("CREDRELAY_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if raw := os.Getenv("CREDRELAY_REGISTRY_LATENCY"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
			cfg.RegistryLatency = d
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
