package config

import (
	"os"
	"strings"

	pstrings "veriledger/pkg/platform/strings"
)

// Server captures process-level configuration. FromEnv keeps main lean; every
// field has a development default so the engine boots with no environment.
type Server struct {
	Addr          string
	PostgresDSN   string
	RedisURL      string
	KafkaBrokers  []string
	AuditTopic    string
	JWTSigningKey string
	OwnerIdentity string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:          getenv("VERILEDGER_ADDR", ":8080"),
		PostgresDSN:   os.Getenv("VERILEDGER_POSTGRES_DSN"),
		RedisURL:      os.Getenv("VERILEDGER_REDIS_URL"),
		AuditTopic:    getenv("VERILEDGER_AUDIT_TOPIC", "veriledger.audit"),
		JWTSigningKey: getenv("VERILEDGER_JWT_KEY", "dev-secret-key-change-in-production"),
		OwnerIdentity: os.Getenv("VERILEDGER_OWNER_IDENTITY"),
	}
	if brokers := os.Getenv("VERILEDGER_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = pstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
