package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("AuthTimeout converts seconds to duration", func(t *testing.T) {
		cfg := &Config{AuthTimeoutSeconds: 10}
		assert.Equal(t, 10*time.Second, cfg.AuthTimeout())
	})

	t.Run("IdleTimeout converts seconds to duration", func(t *testing.T) {
		cfg := &Config{IdleTimeoutSeconds: 600}
		assert.Equal(t, 10*time.Minute, cfg.IdleTimeout())
	})

	t.Run("ReconcileWindow converts seconds to duration", func(t *testing.T) {
		cfg := &Config{ReconcileWindowSeconds: 30}
		assert.Equal(t, 30*time.Second, cfg.ReconcileWindow())
	})
}

func validConfig() *Config {
	return &Config{
		StoreDriver:        StoreDriverPostgres,
		DatabaseURL:        "postgres://localhost/chat",
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		MaxMessageLength:   2000,
		AuthTimeoutSeconds: 10,
		IdleTimeoutSeconds: 600,
		SendQueueSize:      256,
	}
}

func TestValidate(t *testing.T) {
	t.Run("accepts valid postgres config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate(true))
	})

	t.Run("postgres driver requires DATABASE_URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.DatabaseURL = ""
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("memory driver allowed outside production", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreDriver = StoreDriverMemory
		cfg.DatabaseURL = ""
		assert.NoError(t, cfg.Validate(false))
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreDriver = "mongo"
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects short secret in production", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTSecret = "secret"
		assert.NoError(t, cfg.Validate(false))
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("rejects non-positive limits", func(t *testing.T) {
		cfg := validConfig()
		cfg.MaxMessageLength = 0
		assert.Error(t, cfg.Validate(false))

		cfg = validConfig()
		cfg.SendQueueSize = 0
		assert.Error(t, cfg.Validate(false))
	})
}

func TestLoad(t *testing.T) {
	keys := []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "STORE_DRIVER", "JWT_SECRET",
		"LOG_LEVEL", "MAX_MESSAGE_LENGTH", "ALLOWED_ORIGINS",
	}
	originalEnv := make(map[string]string, len(keys))
	for _, k := range keys {
		originalEnv[k] = os.Getenv(k)
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		for _, k := range keys {
			os.Unsetenv(k)
		}
		os.Setenv("JWT_SECRET", "test-secret")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
		assert.Equal(t, 2000, cfg.MaxMessageLength)
		assert.Equal(t, 10, cfg.AuthTimeoutSeconds)
		assert.Equal(t, 600, cfg.IdleTimeoutSeconds)
		assert.Equal(t, 256, cfg.SendQueueSize)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Empty(t, cfg.AllowedOrigins)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("JWT_SECRET", "test-secret")
		os.Setenv("PORT", "3000")
		os.Setenv("STORE_DRIVER", "memory")
		os.Setenv("MAX_MESSAGE_LENGTH", "500")
		os.Setenv("LOG_LEVEL", "debug")
		os.Setenv("ALLOWED_ORIGINS", "http://localhost:3000,https://app.example.com")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
		assert.Equal(t, 500, cfg.MaxMessageLength)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.AllowedOrigins)
	})

	t.Run("fails without required JWT_SECRET", func(t *testing.T) {
		os.Unsetenv("JWT_SECRET")

		_, err := Load()
		assert.Error(t, err)
	})
}
