package config

import (
	"os"
	"strings"
)

// Server captures process-level configuration.
type Server struct {
	Addr            string
	AdminJWTSecret  string
	PostgresURL     string
	RedisURL        string
	KafkaBrokers    []string
	KafkaAuditTopic string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("TOKENGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	secret := os.Getenv("TOKENGATE_ADMIN_JWT_SECRET")
	if secret == "" {
		// Use a default for development - should be overridden in production
		secret = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("TOKENGATE_KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "tokengate.audit"
	}

	var brokers []string
	if raw := os.Getenv("TOKENGATE_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:            addr,
		AdminJWTSecret:  secret,
		PostgresURL:     os.Getenv("TOKENGATE_POSTGRES_URL"),
		RedisURL:        os.Getenv("TOKENGATE_REDIS_URL"),
		KafkaBrokers:    brokers,
		KafkaAuditTopic: topic,
	}
}
