package middleware

import (
    "context"
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/mano-pro/internal/config"
)

// tokenBucketScript refills and takes one token atomically. It returns
// {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])
    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + intervals * refill_tokens)
        last_refill = last_refill + intervals * interval_ms
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)
    return { allowed, tokens, retry_after_ms }
`)

type decision struct {
    allowed   bool
    remaining int64
    retry     time.Duration
}

type limiter interface {
    take(ctx context.Context, key string, now time.Time) (decision, error)
}

type redisLimiter struct {
    cfg config.RateLimitConfig
    rdb *redis.Client
}

func (l redisLimiter) take(ctx context.Context, key string, now time.Time) (decision, error) {
    vals, err := tokenBucketScript.Run(ctx, l.rdb, []string{key},
        now.UnixMilli(), l.cfg.Capacity, l.cfg.RefillTokens,
        l.cfg.RefillInterval.Milliseconds(), int64(l.cfg.TTL/time.Second)).Int64Slice()
    if err != nil {
        return decision{}, err
    }
    if len(vals) != 3 {
        return decision{}, redis.Nil
    }
    return decision{allowed: vals[0] == 1, remaining: vals[1], retry: time.Duration(vals[2]) * time.Millisecond}, nil
}

type bucket struct {
    tokens int64
    last   time.Time
}

// localLimiter is the same bucket kept in process memory. It only limits a
// single instance and serves deployments without Redis.
type localLimiter struct {
    cfg     config.RateLimitConfig
    mu      sync.Mutex
    buckets map[string]*bucket
    swept   time.Time
}

func (l *localLimiter) take(_ context.Context, key string, now time.Time) (decision, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    l.sweep(now)
    b, ok := l.buckets[key]
    if !ok || now.Sub(b.last) > l.cfg.TTL {
        b = &bucket{tokens: int64(l.cfg.Capacity), last: now}
        l.buckets[key] = b
    }
    if n := int64(now.Sub(b.last) / l.cfg.RefillInterval); n > 0 {
        b.tokens = min(int64(l.cfg.Capacity), b.tokens+n*int64(l.cfg.RefillTokens))
        b.last = b.last.Add(time.Duration(n) * l.cfg.RefillInterval)
    }
    if b.tokens > 0 {
        b.tokens--
        return decision{allowed: true, remaining: b.tokens}, nil
    }
    return decision{remaining: 0, retry: l.cfg.RefillInterval - now.Sub(b.last)}, nil
}

// sweep drops buckets idle for longer than the TTL, at most once per TTL.
// Callers hold l.mu.
func (l *localLimiter) sweep(now time.Time) {
    if now.Sub(l.swept) < l.cfg.TTL {
        return
    }
    for k, b := range l.buckets {
        if now.Sub(b.last) > l.cfg.TTL {
            delete(l.buckets, k)
        }
    }
    l.swept = now
}

// NewTokenBucket limits requests per key with a token bucket. The bucket
// lives in Redis when rdb is set and in process memory otherwise. Redis
// errors let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    var lim limiter = &localLimiter{cfg: cfg, buckets: map[string]*bucket{}}
    if rdb != nil {
        lim = redisLimiter{cfg: cfg, rdb: rdb}
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg, c)
            d, err := lim.take(c.Request().Context(), key, time.Now())
            if err != nil {
                if cfg.Debug {
                    c.Logger().Warnf("[ratelimit] redis error for key=%s: %v", key, err)
                }
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if !d.allowed {
                secs := max(0, int(math.Ceil(d.retry.Seconds())))
                h.Set("Retry-After", strconv.Itoa(secs))
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too_many_requests",
                    "message":     "rate limit exceeded",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}

func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    uid := subject(c)
    route := c.Request().Method + " " + c.Path()

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", uid)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    case "user_route":
        parts = append(parts, "user", uid, "route", route)
    default:
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    }
    return strings.Join(parts, ":")
}
