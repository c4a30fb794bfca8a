package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// managedEnv lists every variable the tests touch. viper ignores empty
// values, so setting them to "" is equivalent to unsetting them.
var managedEnv = []string{
	"STOREFRONT_APP_NAME",
	"STOREFRONT_APP_ENV",
	"STOREFRONT_APP_PORT",
	"STOREFRONT_DATABASE_HOST",
	"STOREFRONT_DATABASE_PORT",
	"STOREFRONT_DATABASE_USER",
	"STOREFRONT_DATABASE_PASSWORD",
	"STOREFRONT_DATABASE_DBNAME",
	"STOREFRONT_DATABASE_SSLMODE",
	"STOREFRONT_DATABASE_MAX_OPEN_CONNS",
	"STOREFRONT_DATABASE_MAX_IDLE_CONNS",
	"STOREFRONT_JWT_SECRET",
	"STOREFRONT_REDIS_GUEST_CART_TTL",
	"STOREFRONT_CHECKOUT_RATE_PER_MINUTE",
	"STOREFRONT_CHECKOUT_BURST",
	"STOREFRONT_RECEIPT_ARCHIVE",
	"STOREFRONT_STORAGE_BUCKET",
	"STOREFRONT_STORAGE_ACCESS_KEY",
	"STOREFRONT_STORAGE_SECRET_KEY",
	"STOREFRONT_HTTP_CORS_ALLOW_ORIGINS",
	"STOREFRONT_TELEMETRY_DB_LOG_FULL_SQL",
	"STOREFRONT_TELEMETRY_SAMPLING_RATIO",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedEnv {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "storefront", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "storefront", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.Equal(t, 30*24*time.Hour, cfg.Redis.GuestCartTTL)
		assert.Equal(t, 10, cfg.Checkout.RatePerMinute)
		assert.Equal(t, 3, cfg.Checkout.Burst)
		assert.Equal(t, 24*time.Hour, cfg.Checkout.IdempotencyTTL)
		assert.Equal(t, 20*time.Second, cfg.Receipt.Timeout)
		assert.Equal(t, "storefront", cfg.Telemetry.ServiceName)
		assert.False(t, cfg.Storage.Configured())
	})

	t.Run("loads values from environment variables with STOREFRONT prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOREFRONT_APP_NAME", "shop")
		t.Setenv("STOREFRONT_APP_PORT", "9000")
		t.Setenv("STOREFRONT_DATABASE_HOST", "testdb.local")
		t.Setenv("STOREFRONT_DATABASE_PORT", "5433")
		t.Setenv("STOREFRONT_DATABASE_SSLMODE", "require")
		t.Setenv("STOREFRONT_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("STOREFRONT_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("STOREFRONT_REDIS_GUEST_CART_TTL", "48h")
		t.Setenv("STOREFRONT_CHECKOUT_RATE_PER_MINUTE", "30")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "shop", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, 48*time.Hour, cfg.Redis.GuestCartTTL)
		assert.Equal(t, 30, cfg.Checkout.RatePerMinute)
		assert.Equal(t, "shop", cfg.Telemetry.ServiceName)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOREFRONT_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("STOREFRONT_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOREFRONT_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})

	t.Run("receipt archive requires storage", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOREFRONT_RECEIPT_ARCHIVE", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "receipt.archive")

		t.Setenv("STOREFRONT_STORAGE_BUCKET", "receipts")
		t.Setenv("STOREFRONT_STORAGE_ACCESS_KEY", "key")
		t.Setenv("STOREFRONT_STORAGE_SECRET_KEY", "secret")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Storage.Configured())
	})

	t.Run("rejects sampling ratio outside the unit interval", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOREFRONT_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STOREFRONT_APP_ENV", "production")
		t.Setenv("STOREFRONT_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		t.Setenv("STOREFRONT_DATABASE_PASSWORD", "secure-password")
		t.Setenv("STOREFRONT_DATABASE_SSLMODE", "require")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.App.IsProduction())
	})

	t.Run("requires jwt.secret in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("STOREFRONT_JWT_SECRET", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret is required in production")
	})

	t.Run("requires jwt.secret at least 32 characters in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("STOREFRONT_JWT_SECRET", "short-secret")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 32 characters")
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("STOREFRONT_DATABASE_PASSWORD", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("STOREFRONT_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects wildcard CORS in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("STOREFRONT_HTTP_CORS_ALLOW_ORIGINS", "*")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cors_allow_origins")
	})

	t.Run("rejects full SQL logging in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("STOREFRONT_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "/testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
