package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/service"
)

// ----- reference data -----

func Trades(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{"items": model.Trades})
}

func Arrondissements(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{"items": model.Arrondissements})
}

func UrgencyLevels(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{"items": model.UrgencyLevels})
}

// ----- notifications -----

type NotificationHandler struct {
    Notifications *service.NotificationService
}

func NewNotificationHandler(svc *service.Services) *NotificationHandler {
    return &NotificationHandler{Notifications: svc.Notifications}
}

func (h *NotificationHandler) List(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    items, err := h.Notifications.List(ctx, actorFrom(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    if err := h.Notifications.MarkRead(ctx, actorFrom(c), c.Param("id")); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// ----- admin -----

type AdminHandler struct {
    Accounts *service.AccountService
}

func NewAdminHandler(svc *service.Services) *AdminHandler {
    return &AdminHandler{Accounts: svc.Accounts}
}

type verificationReq struct {
    Verified  bool `json:"verified"`
    Certified bool `json:"certified"`
}

// SetVerification flags an artisan as verified and/or certified.
func (h *AdminHandler) SetVerification(c echo.Context) error {
    var req verificationReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    u, err := h.Accounts.SetVerification(ctx, actorFrom(c), c.Param("id"), req.Verified, req.Certified)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, u)
}
