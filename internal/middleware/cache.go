package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/mano-pro/internal/config"
)

// captureWriter tees the response into buf, up to limit bytes.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int64
    truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
        cw.truncated = true
    } else {
        cw.buf.Write(b)
    }
    return cw.ResponseWriter.Write(b)
}

// cachedResponse is what a cache entry holds in Redis.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

func cacheKey(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{"route", c.Path()}
    case "method_route":
        parts = []string{"method", r.Method, "route", c.Path()}
    case "method_route_query":
        parts = []string{"method", r.Method, "route", c.Path(), "q", r.URL.RawQuery}
    default:
        parts = []string{"route", c.Path(), "q", r.URL.RawQuery}
    }
    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// NewRedisCache replays successful responses of the configured methods from
// Redis. Authenticated requests bypass the cache so per-user payloads are
// never shared.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            r := c.Request()
            if !cfg.Methods[r.Method] || r.Header.Get("Authorization") != "" {
                return next(c)
            }
            key := cacheKey(cfg, c)

            if bs, err := rdb.Get(r.Context(), key).Bytes(); err == nil {
                var hit cachedResponse
                if json.Unmarshal(bs, &hit) == nil {
                    h := c.Response().Header()
                    for k, vals := range hit.Header {
                        if strings.EqualFold(k, echo.HeaderContentLength) {
                            continue
                        }
                        h[k] = vals
                    }
                    h.Set("X-Cache", "HIT")
                    return c.Blob(hit.Status, h.Get(echo.HeaderContentType), hit.Body)
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated {
                return nil
            }
            entry := cachedResponse{Status: cw.status, Header: c.Response().Header().Clone(), Body: cw.buf.Bytes()}
            entry.Header.Del("X-Cache")
            if payload, err := json.Marshal(entry); err == nil {
                _ = rdb.Set(context.WithoutCancel(r.Context()), key, payload, cfg.TTL).Err()
            }
            return nil
        }
    }
}
