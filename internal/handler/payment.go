package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mano-pro/internal/service"
)

type PaymentHandler struct {
    Payments *service.PaymentService
}

func NewPaymentHandler(svc *service.Services) *PaymentHandler {
    return &PaymentHandler{Payments: svc.Payments}
}

// Request bills a completed project. An empty amount bills the agreed price.
func (h *PaymentHandler) Request(c echo.Context) error {
    var req service.PaymentRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    pay, err := h.Payments.Request(ctx, actorFrom(c), c.Param("id"), req)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, pay)
}

func (h *PaymentHandler) List(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    items, err := h.Payments.List(ctx, actorFrom(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *PaymentHandler) Summary(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    sum, err := h.Payments.Summary(ctx, actorFrom(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, sum)
}

// Process settles a pending payment. A declined payment is still a 200; the
// body carries the failed status.
func (h *PaymentHandler) Process(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    pay, err := h.Payments.Process(ctx, actorFrom(c), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, pay)
}

func (h *PaymentHandler) GenerateInvoice(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    inv, err := h.Payments.GenerateInvoice(ctx, actorFrom(c), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, inv)
}

func (h *PaymentHandler) GetInvoice(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    inv, err := h.Payments.GetInvoice(ctx, actorFrom(c), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, inv)
}
