package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/require"
)

func TestParseMemoryDefaults(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORAGE_DRIVER", "memory")

    cfg, err := Parse()
    require.NoError(t, err)
    require.Equal(t, "memory", cfg.StorageDriver)
    require.Equal(t, "8080", cfg.Port)
    require.Equal(t, 15, cfg.AccessTTLMin)
    require.Equal(t, 30, cfg.RefreshTTLDays)
    require.Equal(t, "localhost:6379", cfg.Redis.address())
    require.True(t, cfg.Cache.Methods["GET"])
    require.Equal(t, 60, cfg.RateLimit.Capacity)
}

func TestParseRequiresSecret(t *testing.T) {
    t.Setenv("JWT_SECRET", "")
    t.Setenv("STORAGE_DRIVER", "memory")
    _, err := Parse()
    require.Error(t, err)
}

func TestParseMySQLNeedsConnection(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORAGE_DRIVER", "mysql")
    t.Setenv("DB_USER", "app")
    t.Setenv("DB_HOST", "")
    t.Setenv("DB_NAME", "mano")
    _, err := Parse()
    require.ErrorContains(t, err, "DB_HOST")

    t.Setenv("DB_HOST", "db")
    cfg, err := Parse()
    require.NoError(t, err)
    require.Equal(t, "3306", cfg.DBPort)
}

func TestParseRejectsUnknownDriver(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORAGE_DRIVER", "sqlite")
    _, err := Parse()
    require.Error(t, err)
}

func TestRateLimitShorthands(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORAGE_DRIVER", "memory")
    t.Setenv("RATE_LIMIT_BURST", "5")
    t.Setenv("RATE_LIMIT_REFILL_EVERY", "3s")
    t.Setenv("RATE_LIMIT_TTL", "1s")
    t.Setenv("CACHE_METHODS", "get, head")
    t.Setenv("REDIS_HOST", "cache")
    t.Setenv("REDIS_PORT", "6380")

    cfg, err := Parse()
    require.NoError(t, err)
    require.Equal(t, 5, cfg.RateLimit.Capacity)
    require.Equal(t, 1, cfg.RateLimit.RefillTokens)
    require.Equal(t, 3*time.Second, cfg.RateLimit.RefillInterval)
    require.Equal(t, 15*time.Second, cfg.RateLimit.TTL)
    require.True(t, cfg.Cache.Methods["HEAD"])
    require.Equal(t, "cache:6380", cfg.Redis.address())
}
