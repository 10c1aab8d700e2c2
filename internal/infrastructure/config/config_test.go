package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"IMMO_APP_NAME":              os.Getenv("IMMO_APP_NAME"),
		"IMMO_APP_ENV":               os.Getenv("IMMO_APP_ENV"),
		"IMMO_APP_PORT":              os.Getenv("IMMO_APP_PORT"),
		"IMMO_DATABASE_HOST":         os.Getenv("IMMO_DATABASE_HOST"),
		"IMMO_DATABASE_PORT":         os.Getenv("IMMO_DATABASE_PORT"),
		"IMMO_DATABASE_PASSWORD":     os.Getenv("IMMO_DATABASE_PASSWORD"),
		"IMMO_DATABASE_SSLMODE":      os.Getenv("IMMO_DATABASE_SSLMODE"),
		"IMMO_WORKER_BATCH_SIZE":     os.Getenv("IMMO_WORKER_BATCH_SIZE"),
		"IMMO_DUNNING_REMINDER_DAYS": os.Getenv("IMMO_DUNNING_REMINDER_DAYS"),
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

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "immoflow-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "immoflow", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Worker.BatchSize)
		assert.Equal(t, 3, cfg.Worker.MaxRetries)
		assert.Equal(t, 14, cfg.Dunning.ReminderDays)
		assert.Equal(t, 30, cfg.Dunning.FirstDunningDays)
		assert.Equal(t, 45, cfg.Dunning.SecondDunningDays)
	})

	t.Run("environment variables override defaults", func(t *testing.T) {
		clearEnv()
		os.Setenv("IMMO_APP_NAME", "test-app")
		os.Setenv("IMMO_APP_PORT", "9000")
		os.Setenv("IMMO_DATABASE_HOST", "testdb.local")
		os.Setenv("IMMO_DATABASE_PORT", "5433")
		os.Setenv("IMMO_WORKER_BATCH_SIZE", "50")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 50, cfg.Worker.BatchSize)
	})

	t.Run("production requires database password and TLS", func(t *testing.T) {
		clearEnv()
		os.Setenv("IMMO_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password")

		os.Setenv("IMMO_DATABASE_PASSWORD", "secret")
		_, err = Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sslmode")

		os.Setenv("IMMO_DATABASE_SSLMODE", "require")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})

	t.Run("rejects non-increasing dunning thresholds", func(t *testing.T) {
		clearEnv()
		os.Setenv("IMMO_DUNNING_REMINDER_DAYS", "60")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "strictly increasing")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "immo",
		Password: "p@ss/word",
		DBName:   "immoflow",
		SSLMode:  "require",
	}

	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	// Special characters in the password must be escaped
	assert.NotContains(t, dsn, "p@ss/word")
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", r.Addr())
}
