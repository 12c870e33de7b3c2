package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration. Values come from the
// environment so main stays lean; empty DatabaseURL, RedisURL, or
// KafkaBrokers fall back to in-memory stores, no cache, and log-only
// notifications respectively.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string
	Owner         string
}

// VerificationCacheTTL bounds staleness of cached verification results.
// Revocation invalidates eagerly; the TTL only covers out-of-band writes.
var VerificationCacheTTL = 30 * time.Second

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("LEDGER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("LEDGER_KAFKA_TOPIC")
	if topic == "" {
		topic = "ledger.events"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default, must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	owner := os.Getenv("LEDGER_OWNER")
	if owner == "" {
		owner = "did:web:registry.owner"
	}

	return Server{
		Addr:          addr,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaBrokers:  splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:    topic,
		JWTSigningKey: jwtSigningKey,
		Owner:         owner,
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
