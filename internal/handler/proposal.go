package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mano-pro/internal/service"
)

type ProposalHandler struct {
    Proposals *service.ProposalService
}

func NewProposalHandler(svc *service.Services) *ProposalHandler {
    return &ProposalHandler{Proposals: svc.Proposals}
}

func (h *ProposalHandler) Mine(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    items, err := h.Proposals.ListMine(ctx, actorFrom(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Accept turns the proposal into a project and responds with the project.
func (h *ProposalHandler) Accept(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    project, err := h.Proposals.Accept(ctx, actorFrom(c), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, project)
}

func (h *ProposalHandler) Reject(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    p, err := h.Proposals.Reject(ctx, actorFrom(c), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, p)
}
