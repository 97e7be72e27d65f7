package handler

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/service"
)

// EmergencyHandler serves emergency posting, browsing and bidding.
type EmergencyHandler struct {
    Emergencies *service.EmergencyService
    Proposals   *service.ProposalService
}

func NewEmergencyHandler(svc *service.Services) *EmergencyHandler {
    return &EmergencyHandler{Emergencies: svc.Emergencies, Proposals: svc.Proposals}
}

type photosReq struct {
    Phase model.PhotoPhase `json:"phase"`
    URLs  []string         `json:"urls"`
}

// filterFrom reads the browse filters: ?trade=a,b&arrondissement=1,2
// &urgency=high&search=fuite. Malformed arrondissements are ignored.
func filterFrom(c echo.Context) model.EmergencyFilter {
    f := model.EmergencyFilter{
        Urgency: model.Urgency(strings.TrimSpace(c.QueryParam("urgency"))),
        Search:  strings.TrimSpace(c.QueryParam("search")),
    }
    for _, t := range strings.Split(c.QueryParam("trade"), ",") {
        if t = strings.TrimSpace(t); t != "" {
            f.Trades = append(f.Trades, t)
        }
    }
    for _, s := range strings.Split(c.QueryParam("arrondissement"), ",") {
        if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
            f.Arrondissements = append(f.Arrondissements, n)
        }
    }
    return f
}

func (h *EmergencyHandler) Create(c echo.Context) error {
    var req service.EmergencyInput
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    em, err := h.Emergencies.Create(ctx, actorFrom(c), req)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, em)
}

// ListOpen lists open emergencies matching the query filters.
func (h *EmergencyHandler) ListOpen(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    items, err := h.Emergencies.ListOpen(ctx, filterFrom(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *EmergencyHandler) Mine(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    items, err := h.Emergencies.ListMine(ctx, actorFrom(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Opportunities lists open emergencies in the artisan's trades and areas.
func (h *EmergencyHandler) Opportunities(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    items, err := h.Emergencies.ListOpportunities(ctx, actorFrom(c), filterFrom(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *EmergencyHandler) Get(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    em, err := h.Emergencies.Get(ctx, c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, em)
}

func (h *EmergencyHandler) Close(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    em, err := h.Emergencies.Close(ctx, actorFrom(c), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, em)
}

func (h *EmergencyHandler) AddPhotos(c echo.Context) error {
    var req photosReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    em, err := h.Emergencies.AddPhotos(ctx, actorFrom(c), c.Param("id"), req.URLs)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, em)
}

// ListProposals returns the bids on an emergency. The poster sees every bid,
// an artisan only their own.
func (h *EmergencyHandler) ListProposals(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    items, err := h.Proposals.ListForEmergency(ctx, actorFrom(c), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *EmergencyHandler) SubmitProposal(c echo.Context) error {
    var req service.ProposalInput
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    p, err := h.Proposals.Submit(ctx, actorFrom(c), c.Param("id"), req)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, p)
}
