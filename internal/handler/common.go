package handler

import (
    "context"
    "errors"
    "log"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mano-pro/internal/lifecycle"
    "github.com/iliyamo/mano-pro/internal/middleware"
    "github.com/iliyamo/mano-pro/internal/repository"
    "github.com/iliyamo/mano-pro/internal/service"
)

// requestTimeout bounds the store calls of one request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// actorFrom builds the caller from what JWTAuth stored in the context.
func actorFrom(c echo.Context) service.Actor {
    return service.Actor{ID: middleware.UserID(c), Role: middleware.Role(c)}
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// respondError maps domain errors to status codes. Unknown errors are logged
// and hidden behind a 500.
func respondError(c echo.Context, err error) error {
    status := http.StatusInternalServerError
    switch {
    case errors.Is(err, service.ErrValidation):
        status = http.StatusBadRequest
    case errors.Is(err, service.ErrInvalidCredentials):
        status = http.StatusUnauthorized
    case errors.Is(err, service.ErrForbidden):
        status = http.StatusForbidden
    case errors.Is(err, repository.ErrNotFound):
        status = http.StatusNotFound
    case errors.Is(err, repository.ErrConflict),
        errors.Is(err, repository.ErrEmailExists),
        errors.Is(err, lifecycle.ErrInvalidTransition),
        errors.Is(err, lifecycle.ErrUnknownProposal):
        status = http.StatusConflict
    case errors.Is(err, context.DeadlineExceeded):
        status = http.StatusServiceUnavailable
    }
    if status == http.StatusInternalServerError {
        log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
        return c.JSON(status, echo.Map{"error": "internal error"})
    }
    return c.JSON(status, echo.Map{"error": err.Error()})
}
