package config

import (
    "strings"
    "time"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching is
// disabled. MethodList names the HTTP methods to cache; normalize turns it
// into the Methods set the middleware reads.
type CacheConfig struct {
    Enabled      bool          `env:"CACHE_ENABLED" envDefault:"true"`
    MethodList   []string      `env:"CACHE_METHODS" envDefault:"GET" envSeparator:","`
    TTL          time.Duration `env:"CACHE_TTL" envDefault:"30s"`
    KeyStrategy  string        `env:"CACHE_KEY_STRATEGY" envDefault:"route_query"`
    Prefix       string        `env:"CACHE_PREFIX" envDefault:"cache"`
    MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" envDefault:"1048576"`

    Methods map[string]bool
}

func (c *CacheConfig) normalize() {
    c.Methods = map[string]bool{}
    for _, m := range c.MethodList {
        m = strings.TrimSpace(strings.ToUpper(m))
        if m != "" {
            c.Methods[m] = true
        }
    }
    if c.TTL <= 0 {
        c.TTL = time.Second
    }
}
