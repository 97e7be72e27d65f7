package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/service"
)

// ProjectHandler serves project tracking and the project chat.
type ProjectHandler struct {
    Projects *service.ProjectService
    Chat     *service.ChatService
}

func NewProjectHandler(svc *service.Services) *ProjectHandler {
    return &ProjectHandler{Projects: svc.Projects, Chat: svc.Chat}
}

type statusReq struct {
    Status model.ProjectStatus `json:"status"`
}

type noteReq struct {
    Message string `json:"message"`
}

type reviewReq struct {
    Rating int    `json:"rating"`
    Review string `json:"review"`
}

type messageReq struct {
    Text   string   `json:"text"`
    Photos []string `json:"photos"`
}

func (h *ProjectHandler) List(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    items, err := h.Projects.List(ctx, actorFrom(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *ProjectHandler) Get(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    p, err := h.Projects.Get(ctx, actorFrom(c), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) UpdateStatus(c echo.Context) error {
    var req statusReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    p, err := h.Projects.UpdateStatus(ctx, actorFrom(c), c.Param("id"), req.Status)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) AddPhotos(c echo.Context) error {
    var req photosReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    p, err := h.Projects.AddPhotos(ctx, actorFrom(c), c.Param("id"), req.Phase, req.URLs)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) Timeline(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    items, err := h.Projects.Timeline(ctx, actorFrom(c), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// AddNote appends a free-text note to the timeline.
func (h *ProjectHandler) AddNote(c echo.Context) error {
    var req noteReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    entry, err := h.Projects.AddNote(ctx, actorFrom(c), c.Param("id"), req.Message)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, entry)
}

func (h *ProjectHandler) Review(c echo.Context) error {
    var req reviewReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    p, err := h.Projects.Review(ctx, actorFrom(c), c.Param("id"), req.Rating, req.Review)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, p)
}

// ----- chat -----

func (h *ProjectHandler) Messages(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    items, err := h.Chat.List(ctx, actorFrom(c), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *ProjectHandler) SendMessage(c echo.Context) error {
    var req messageReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    m, err := h.Chat.Send(ctx, actorFrom(c), c.Param("id"), req.Text, req.Photos)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, m)
}

// MarkRead marks the counterpart's messages as read by the caller.
func (h *ProjectHandler) MarkRead(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    n, err := h.Chat.MarkRead(ctx, actorFrom(c), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"updated": n})
}
