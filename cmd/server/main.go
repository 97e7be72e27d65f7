package main // Entry point package

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/google/uuid"
    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/mano-pro/internal/config"
    "github.com/iliyamo/mano-pro/internal/database"
    "github.com/iliyamo/mano-pro/internal/handler"
    "github.com/iliyamo/mano-pro/internal/queue"
    "github.com/iliyamo/mano-pro/internal/realtime"
    "github.com/iliyamo/mano-pro/internal/repository"
    "github.com/iliyamo/mano-pro/internal/repository/memory"
    "github.com/iliyamo/mano-pro/internal/router"
    "github.com/iliyamo/mano-pro/internal/service"
    "github.com/iliyamo/mano-pro/internal/storage"
    "github.com/iliyamo/mano-pro/internal/telemetry"
)

func main() {
    _ = godotenv.Load() // .env is optional; real env vars win
    cfg := config.Load()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
    if err != nil {
        log.Printf("tracing disabled: %v", err)
    }
    defer func() {
        c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        _ = shutdownTracing(c)
    }()

    store, closeStore := openStore(cfg)
    defer closeStore()

    rdb := config.NewRedisClient(cfg.Redis)
    if rdb == nil {
        log.Printf("redis unavailable: rate limiting is per-process, cache off")
    } else {
        defer rdb.Close()
    }
    hub := realtime.NewHub(rdb)

    // Notifications go through RabbitMQ when configured, otherwise straight
    // to the store. The hub always receives every event.
    var notifier queue.Publisher = queue.Direct{Writer: store.Notifications, NewID: uuid.NewString}
    if cfg.AMQPURL != "" {
        notifier = queue.NewAMQPPublisher(cfg.AMQPURL)
        consumer := &queue.Consumer{URL: cfg.AMQPURL, Writer: store.Notifications, NewID: uuid.NewString}
        go func() {
            if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
                log.Printf("notification consumer stopped: %v", err)
            }
        }()
    }
    svc := service.New(store, queue.Fanout{hub, notifier}, service.WithBcryptCost(cfg.BcryptCost))

    if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
        log.Fatalf("upload dir: %v", err)
    }
    files := storage.NewLocal(cfg.UploadDir, cfg.MediaURL)

    e := echo.New()
    e.HideBanner = true
    e.Use(echomw.Recover())
    e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogMethod:  true,
        LogURI:     true,
        LogStatus:  true,
        LogLatency: true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            log.Printf("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
            return nil
        },
    }))
    e.Static(cfg.MediaURL, cfg.UploadDir)

    router.RegisterRoutes(e, router.Handlers{
        Auth:          handler.NewAuthHandler(cfg, svc.Accounts, store.Tokens),
        Emergencies:   handler.NewEmergencyHandler(svc),
        Proposals:     handler.NewProposalHandler(svc),
        Projects:      handler.NewProjectHandler(svc),
        Payments:      handler.NewPaymentHandler(svc),
        Notifications: handler.NewNotificationHandler(svc),
        Admin:         handler.NewAdminHandler(svc),
        Uploads:       handler.NewUploadHandler(files, cfg.MaxUploadBytes),
        Events:        handler.NewEventsHandler(hub, svc),
    }, cfg, rdb)

    addr := ":" + cfg.Port
    go func() {
        log.Printf("listening on %s (env=%s, storage=%s)", addr, cfg.Env, cfg.StorageDriver)
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatal(err)
        }
    }()

    <-ctx.Done()
    log.Printf("shutting down")
    c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(c); err != nil {
        log.Printf("shutdown: %v", err)
    }
}

// openStore returns the repositories for the configured driver and a func
// releasing them.
func openStore(cfg config.Config) (service.Store, func()) {
    if cfg.StorageDriver == "memory" {
        log.Printf("using in-memory storage; data is lost on exit")
        return memory.New().Bundle(), func() {}
    }

    sqldb, err := database.Open(cfg)
    if err != nil {
        log.Fatalf("db: %v", err)
    }
    if cfg.AutoMigrate {
        if err := database.Migrate(sqldb.DB); err != nil {
            log.Fatalf("migrate: %v", err)
        }
    }
    db := repository.NewDB(sqldb)
    return service.Store{
        Tx:            db,
        Users:         repository.NewUserRepo(db),
        Tokens:        repository.NewTokenRepo(db),
        Emergencies:   repository.NewEmergencyRepo(db),
        Proposals:     repository.NewProposalRepo(db),
        Projects:      repository.NewProjectRepo(db),
        Timeline:      repository.NewTimelineRepo(db),
        Chat:          repository.NewChatRepo(db),
        Payments:      repository.NewPaymentRepo(db),
        Invoices:      repository.NewInvoiceRepo(db),
        Notifications: repository.NewNotificationRepo(db),
    }, func() { _ = sqldb.Close() }
}
