// Package config loads trackerd-specific settings from the environment.
package config

import (
	"os"
	"strings"
)

type Config struct {
	// RedisDSN selects the Redis persistence backend when set.
	RedisDSN string
	// DatabaseURL selects the Postgres backend when Redis is not configured.
	DatabaseURL string
	// NATSURL is the NATS server for playback ingest and progress publishing.
	NATSURL string
	// JWTSecret enables bearer auth on the API when set.
	JWTSecret string
}

func Load() Config {
	natsURL := strings.TrimSpace(os.Getenv("NATS_URL"))
	if natsURL == "" {
		natsURL = "nats://nats:4222"
	}
	return Config{
		RedisDSN:    strings.TrimSpace(os.Getenv("REDIS_DSN")),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		NATSURL:     natsURL,
		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_SECRET")),
	}
}

// IsProd reports whether the process runs with production guarantees.
func IsProd() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production")
}
