package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/mano-pro/internal/config"
    "github.com/iliyamo/mano-pro/internal/handler"
    "github.com/iliyamo/mano-pro/internal/middleware"
    "github.com/iliyamo/mano-pro/internal/model"
)

// Handlers groups every HTTP handler the API mounts.
type Handlers struct {
    Auth          *handler.AuthHandler
    Emergencies   *handler.EmergencyHandler
    Proposals     *handler.ProposalHandler
    Projects      *handler.ProjectHandler
    Payments      *handler.PaymentHandler
    Notifications *handler.NotificationHandler
    Admin         *handler.AdminHandler
    Uploads       *handler.UploadHandler
    Events        *handler.EventsHandler
}

// RegisterRoutes mounts the whole API. rdb may be nil; rate limiting then
// runs in-process and response caching is off.
func RegisterRoutes(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
    e.GET("/healthz", handler.Health)

    RegisterPublic(e, cfg, rdb)
    RegisterAuth(e, h.Auth, cfg, rdb)

    // Everything below needs a valid access token.
    v1 := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
    posters := middleware.RequireRole(model.RoleGestionnaire, model.RoleAdmin)
    artisans := middleware.RequireRole(model.RoleArtisan)

    v1.GET("/me", h.Auth.Me)
    v1.PUT("/me", h.Auth.UpdateMe)
    v1.GET("/me/events", h.Events.Mine)
    v1.POST("/uploads", h.Uploads.Upload)

    em := h.Emergencies
    v1.GET("/emergencies", em.ListOpen)
    v1.POST("/emergencies", em.Create, posters)
    v1.GET("/emergencies/mine", em.Mine, posters)
    v1.GET("/emergencies/:id", em.Get)
    v1.POST("/emergencies/:id/close", em.Close, posters)
    v1.POST("/emergencies/:id/photos", em.AddPhotos, posters)
    v1.GET("/emergencies/:id/proposals", em.ListProposals)
    v1.POST("/emergencies/:id/proposals", em.SubmitProposal, artisans)
    v1.GET("/opportunities", em.Opportunities, artisans)

    v1.GET("/proposals/mine", h.Proposals.Mine, artisans)
    v1.POST("/proposals/:id/accept", h.Proposals.Accept, posters)
    v1.POST("/proposals/:id/reject", h.Proposals.Reject, posters)

    // Participation is checked by the service layer.
    pr := h.Projects
    v1.GET("/projects", pr.List)
    v1.GET("/projects/:id", pr.Get)
    v1.PUT("/projects/:id/status", pr.UpdateStatus)
    v1.POST("/projects/:id/photos", pr.AddPhotos)
    v1.GET("/projects/:id/timeline", pr.Timeline)
    v1.POST("/projects/:id/timeline", pr.AddNote)
    v1.POST("/projects/:id/review", pr.Review, posters)
    v1.GET("/projects/:id/messages", pr.Messages)
    v1.POST("/projects/:id/messages", pr.SendMessage)
    v1.POST("/projects/:id/messages/read", pr.MarkRead)
    v1.GET("/projects/:id/events", h.Events.Project)

    pay := h.Payments
    v1.POST("/projects/:id/payments", pay.Request, artisans)
    v1.GET("/payments", pay.List)
    v1.GET("/payments/summary", pay.Summary)
    v1.POST("/payments/:id/process", pay.Process, posters)
    v1.POST("/payments/:id/invoice", pay.GenerateInvoice)
    v1.GET("/invoices/:id", pay.GetInvoice)

    v1.GET("/notifications", h.Notifications.List)
    v1.POST("/notifications/:id/read", h.Notifications.MarkRead)

    admin := v1.Group("/admin", middleware.RequireRole(model.RoleAdmin))
    admin.PUT("/users/:id/verification", h.Admin.SetVerification)
}

// RegisterAuth mounts the session endpoints under /v1/auth behind the
// token-bucket limiter.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, cfg config.Config, rdb *redis.Client) {
    g := e.Group("/v1/auth", middleware.NewTokenBucket(cfg.RateLimit, rdb))
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    // Rotates the refresh token.
    g.POST("/refresh", a.Refresh)
    g.POST("/refresh-access", a.RefreshAccess)
    g.POST("/logout", a.Logout)
}

// RegisterPublic mounts the reference lists. They never change at runtime,
// so responses go through the Redis cache.
func RegisterPublic(e *echo.Echo, cfg config.Config, rdb *redis.Client) {
    g := e.Group("/v1/reference", middleware.NewRedisCache(cfg.Cache, rdb))
    g.GET("/trades", handler.Trades)
    g.GET("/arrondissements", handler.Arrondissements)
    g.GET("/urgency-levels", handler.UrgencyLevels)
}
