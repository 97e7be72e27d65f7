package handler

import (
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mano-pro/internal/config"
    "github.com/iliyamo/mano-pro/internal/middleware"
    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/repository"
    "github.com/iliyamo/mano-pro/internal/service"
    "github.com/iliyamo/mano-pro/internal/utils"
)

// AuthHandler bundles dependencies for auth and profile endpoints.
type AuthHandler struct {
    Cfg      config.Config
    Accounts *service.AccountService
    Tokens   service.TokenStore
}

func NewAuthHandler(cfg config.Config, accounts *service.AccountService, tokens service.TokenStore) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Accounts: accounts, Tokens: tokens}
}

// ----- DTOs -----

type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}

type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

type authResp struct {
    User    model.User `json:"user"`
    Access  tokenPart  `json:"access"`
    Refresh tokenPart  `json:"refresh"`
}

// issue signs an access token and stores a fresh refresh token for u.
func (h *AuthHandler) issue(c echo.Context, u model.User) (authResp, error) {
    ctx, cancel := reqCtx(c)
    defer cancel()

    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, string(u.Role), h.Cfg.AccessTTLMin)
    if err != nil {
        return authResp{}, err
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return authResp{}, err
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return authResp{}, err
    }
    return authResp{
        User:    u,
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
    }, nil
}

// Register creates a gestionnaire or artisan account and signs it in.
func (h *AuthHandler) Register(c echo.Context) error {
    var req service.RegisterInput
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    u, err := h.Accounts.Register(ctx, req)
    if err != nil {
        return respondError(c, err)
    }
    resp, err := h.issue(c, u)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if strings.TrimSpace(req.Email) == "" || req.Password == "" {
        return badRequest(c, "email/password required")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    u, err := h.Accounts.Authenticate(ctx, req.Email, req.Password)
    if err != nil {
        return respondError(c, err)
    }
    resp, err := h.issue(c, u)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, resp)
}

// owner resolves the user behind a valid refresh token.
func (h *AuthHandler) owner(c echo.Context, raw string) (model.User, string, error) {
    ctx, cancel := reqCtx(c)
    defer cancel()

    hash := utils.HashRefreshRaw(raw)
    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return model.User{}, "", err
    }
    u, err := h.Accounts.Profile(ctx, userID)
    return u, hash, err
}

func refreshToken(c echo.Context) (string, bool) {
    var req refreshReq
    if err := c.Bind(&req); err != nil {
        return "", false
    }
    raw := strings.TrimSpace(req.RefreshToken)
    return raw, raw != ""
}

// Refresh validates a refresh token, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
    raw, ok := refreshToken(c)
    if !ok {
        return badRequest(c, "refresh_token required")
    }
    u, hash, err := h.owner(c, raw)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return respondError(c, err)
    }
    // A concurrent rotation of the same token may have revoked it between
    // the check above and here; only the request that revokes it proceeds.
    if err := h.Tokens.RevokeByHash(c.Request().Context(), hash); err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return respondError(c, err)
    }
    resp, err := h.issue(c, u)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
    raw, ok := refreshToken(c)
    if !ok {
        return badRequest(c, "refresh_token required")
    }
    u, _, err := h.owner(c, raw)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return respondError(c, err)
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, string(u.Role), h.Cfg.AccessTTLMin)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "access": tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// Logout revokes one session when a refresh_token is posted, or every
// session of the bearer when only an access token is presented.
func (h *AuthHandler) Logout(c echo.Context) error {
    raw, hasRefresh := refreshToken(c)

    ctx, cancel := reqCtx(c)
    defer cancel()

    if hasRefresh {
        hash := utils.HashRefreshRaw(raw)
        if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
        }
        if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
            if errors.Is(err, repository.ErrNotFound) {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
            }
            return respondError(c, err)
        }
        return c.NoContent(http.StatusNoContent)
    }

    auth := c.Request().Header.Get("Authorization")
    if !strings.HasPrefix(auth, "Bearer ") {
        return badRequest(c, "provide Authorization header or refresh_token")
    }
    claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Tokens.RevokeAllForUser(ctx, claims.Subject); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    u, err := h.Accounts.Profile(ctx, middleware.UserID(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, u)
}

// UpdateMe applies a partial profile update.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
    var req service.ProfileInput
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    u, err := h.Accounts.UpdateProfile(ctx, actorFrom(c), req)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, u)
}
