package config

import "time"

// RateLimitConfig drives the Redis token bucket in front of the auth routes.
type RateLimitConfig struct {
    Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
    Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"60"`
    Burst          int           `env:"RATE_LIMIT_BURST" envDefault:"-1"`
    RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
    RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
    RefillEvery    time.Duration `env:"RATE_LIMIT_REFILL_EVERY"`
    TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"10m"`
    KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY" envDefault:"ip_user_route"`
    Prefix         string        `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
    Debug          bool          `env:"RATE_LIMIT_DEBUG"`
}

// normalize applies the shorthand variables and clamps values into range.
func (c *RateLimitConfig) normalize() {
    if c.Burst > 0 {
        c.Capacity = c.Burst
    }
    if c.RefillEvery > 0 {
        c.RefillTokens = 1
        c.RefillInterval = c.RefillEvery
    }
    if c.Capacity < 1 {
        c.Capacity = 1
    }
    if c.RefillTokens < 1 {
        c.RefillTokens = 1
    }
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
        c.TTL = minTTL
    }
}
