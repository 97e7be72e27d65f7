package middleware

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mano-pro/internal/model"
)

// Context keys written by JWTAuth.
const (
    userIDKey = "user_id"
    roleKey   = "role"
)

// UserID returns the authenticated user's id, or "" on public routes.
func UserID(c echo.Context) string {
    s, _ := c.Get(userIDKey).(string)
    return s
}

// Role returns the authenticated user's role, or "" on public routes.
func Role(c echo.Context) model.Role {
    s, _ := c.Get(roleKey).(string)
    return model.Role(s)
}

// subject identifies the caller for rate-limit keys.
func subject(c echo.Context) string {
    if id := UserID(c); id != "" {
        return id
    }
    return "anon"
}
