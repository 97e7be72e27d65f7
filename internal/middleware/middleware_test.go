package middleware

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/mano-pro/internal/config"
    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/utils"
)

func newServer() *echo.Echo {
    e := echo.New()
    g := e.Group("/v1", JWTAuth("secret"))
    g.GET("/me", func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"id": UserID(c), "role": Role(c)})
    })
    g.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
        RequireRole(model.RoleAdmin))
    return e
}

func do(e *echo.Echo, target, token string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodGet, target, nil)
    if token != "" {
        req.Header.Set("Authorization", "Bearer "+token)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestJWTAuth(t *testing.T) {
    e := newServer()
    tok, err := utils.NewAccessToken("secret", "user-1", string(model.RoleArtisan), 5)
    require.NoError(t, err)

    rec := do(e, "/v1/me", "")
    require.Equal(t, http.StatusUnauthorized, rec.Code)

    rec = do(e, "/v1/me", "garbage")
    require.Equal(t, http.StatusUnauthorized, rec.Code)

    rec = do(e, "/v1/me", tok.Token)
    require.Equal(t, http.StatusOK, rec.Code)
    require.JSONEq(t, `{"id":"user-1","role":"artisan"}`, rec.Body.String())

    rec = do(e, "/v1/me?access_token="+tok.Token, "")
    require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
    e := newServer()
    artisan, err := utils.NewAccessToken("secret", "user-1", string(model.RoleArtisan), 5)
    require.NoError(t, err)
    admin, err := utils.NewAccessToken("secret", "user-2", string(model.RoleAdmin), 5)
    require.NoError(t, err)

    require.Equal(t, http.StatusForbidden, do(e, "/v1/admin", artisan.Token).Code)
    require.Equal(t, http.StatusNoContent, do(e, "/v1/admin", admin.Token).Code)
}

func TestLocalTokenBucket(t *testing.T) {
    cfg := config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            5 * time.Hour,
        KeyStrategy:    "ip",
        Prefix:         "rl",
    }
    e := echo.New()
    e.POST("/v1/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
        NewTokenBucket(cfg, nil))

    codes := make([]int, 3)
    for i := range codes {
        req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, req)
        codes[i] = rec.Code
        if rec.Code == http.StatusTooManyRequests {
            require.NotEmpty(t, rec.Header().Get("Retry-After"))
        }
    }
    require.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestLocalLimiterRefills(t *testing.T) {
    l := &localLimiter{
        cfg:     config.RateLimitConfig{Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute},
        buckets: map[string]*bucket{},
    }
    now := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
    d, _ := l.take(context.Background(), "k", now)
    require.True(t, d.allowed)
    d, _ = l.take(context.Background(), "k", now.Add(500*time.Millisecond))
    require.False(t, d.allowed)
    require.Equal(t, 500*time.Millisecond, d.retry)
    d, _ = l.take(context.Background(), "k", now.Add(time.Second))
    require.True(t, d.allowed)
}

func TestLocalLimiterEvictsIdleBuckets(t *testing.T) {
    l := &localLimiter{
        cfg:     config.RateLimitConfig{Capacity: 3, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute},
        buckets: map[string]*bucket{},
    }
    now := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
    for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
        _, _ = l.take(context.Background(), "rl:ip:"+ip, now)
    }
    require.Len(t, l.buckets, 3)

    _, _ = l.take(context.Background(), "rl:ip:10.0.0.3", now.Add(30*time.Second))
    require.Len(t, l.buckets, 3)

    _, _ = l.take(context.Background(), "rl:ip:10.0.0.4", now.Add(2*time.Minute))
    require.Len(t, l.buckets, 2)
    require.Contains(t, l.buckets, "rl:ip:10.0.0.3")
    require.Contains(t, l.buckets, "rl:ip:10.0.0.4")
}

func TestCachePassThroughWithoutRedis(t *testing.T) {
    e := echo.New()
    e.GET("/v1/reference/trades", func(c echo.Context) error { return c.JSON(http.StatusOK, model.Trades) },
        NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil))
    rec := do(e, "/v1/reference/trades", "")
    require.Equal(t, http.StatusOK, rec.Code)
    require.Empty(t, rec.Header().Get("X-Cache"))
}
