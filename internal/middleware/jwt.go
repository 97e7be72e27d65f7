package middleware

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mano-pro/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores its subject and role under "user_id" and "role". Browsers cannot set
// headers on an EventSource, so the token may also arrive as the
// access_token query parameter.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := bearer(c.Request())
            if raw == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            claims, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(userIDKey, claims.Subject)
            c.Set(roleKey, claims.Role)
            return next(c)
        }
    }
}

func bearer(r *http.Request) string {
    if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    return r.URL.Query().Get("access_token")
}
