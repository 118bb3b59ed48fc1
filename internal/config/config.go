package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "jwt-secret", "password",
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port                   int      `env:"PORT" envDefault:"8080"`
	DatabaseURL            string   `env:"DATABASE_URL"`
	RedisURL               string   `env:"REDIS_URL"`
	StoreDriver            string   `env:"STORE_DRIVER" envDefault:"postgres"`
	JWTSecret              string   `env:"JWT_SECRET,required"`
	JWTIssuer              string   `env:"JWT_ISSUER"`
	LogLevel               string   `env:"LOG_LEVEL" envDefault:"info"`
	MaxMessageLength       int      `env:"MAX_MESSAGE_LENGTH" envDefault:"2000"`
	AuthTimeoutSeconds     int      `env:"AUTH_TIMEOUT_SECONDS" envDefault:"10"`
	IdleTimeoutSeconds     int      `env:"IDLE_TIMEOUT_SECONDS" envDefault:"600"`
	SendQueueSize          int      `env:"SEND_QUEUE_SIZE" envDefault:"256"`
	SendRateLimitPerMin    int      `env:"SEND_RATE_LIMIT_PER_MIN" envDefault:"120"`
	ReconcileWindowSeconds int      `env:"RECONCILE_WINDOW_SECONDS" envDefault:"30"`
	AllowedOrigins         []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

func (c *Config) AuthTimeout() time.Duration {
	return time.Duration(c.AuthTimeoutSeconds) * time.Second
}

func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

func (c *Config) ReconcileWindow() time.Duration {
	return time.Duration(c.ReconcileWindowSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
		if isProduction {
			return fmt.Errorf("STORE_DRIVER=%s is not durable and cannot be used in production", StoreDriverMemory)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (expected %s or %s)", c.StoreDriver, StoreDriverPostgres, StoreDriverMemory)
	}

	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive")
	}
	if c.AuthTimeoutSeconds <= 0 || c.IdleTimeoutSeconds <= 0 {
		return fmt.Errorf("AUTH_TIMEOUT_SECONDS and IDLE_TIMEOUT_SECONDS must be positive")
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("SEND_QUEUE_SIZE must be positive")
	}

	if isProduction {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}
		if c.RedisURL == "" {
			log.Warn().Msg("REDIS_URL is empty in production: fan-out is limited to this process")
		} else if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if len(c.AllowedOrigins) == 0 {
			log.Warn().Msg("ALLOWED_ORIGINS is empty in production: only same-origin websocket upgrades are accepted")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
