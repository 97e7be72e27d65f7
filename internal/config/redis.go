package config

// Redis backs distributed rate limiting, the reference-data response cache
// and replay of realtime events. If the connection fails during startup the
// constructor returns nil and callers degrade gracefully.

import (
    "context"
    "crypto/tls"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings. REDIS_HOST and REDIS_PORT take
// precedence over the REDIS_ADDR shorthand.
type RedisConfig struct {
    Host     string `env:"REDIS_HOST"`
    Port     string `env:"REDIS_PORT"`
    Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
    Password string `env:"REDIS_PASSWORD"`
    DB       int    `env:"REDIS_DB"`
    TLS      bool   `env:"REDIS_TLS"`
    Disabled bool   `env:"REDIS_DISABLED"`
}

func (c RedisConfig) address() string {
    if c.Host != "" && c.Port != "" {
        return c.Host + ":" + c.Port
    }
    return c.Addr
}

// NewRedisClient instantiates a Redis client and pings it with a short
// timeout. The returned client is nil when Redis is disabled or unreachable.
func NewRedisClient(cfg RedisConfig) *redis.Client {
    if cfg.Disabled {
        return nil
    }
    var tlsConf *tls.Config
    if cfg.TLS {
        tlsConf = &tls.Config{InsecureSkipVerify: true}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      cfg.address(),
        Password:  cfg.Password,
        DB:        cfg.DB,
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
