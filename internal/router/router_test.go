package router

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/require"
    "golang.org/x/crypto/bcrypt"

    "github.com/iliyamo/mano-pro/internal/config"
    "github.com/iliyamo/mano-pro/internal/handler"
    "github.com/iliyamo/mano-pro/internal/queue"
    "github.com/iliyamo/mano-pro/internal/realtime"
    "github.com/iliyamo/mano-pro/internal/repository/memory"
    "github.com/iliyamo/mano-pro/internal/service"
    "github.com/iliyamo/mano-pro/internal/storage"
)

type api struct {
    e   *echo.Echo
    hub *realtime.Hub
}

func newAPI(t *testing.T) *api {
    t.Helper()
    cfg := config.Config{
        JWTSecret:      "test-secret",
        AccessTTLMin:   15,
        RefreshTTLDays: 30,
        MaxUploadBytes: 1 << 20,
    }
    store := memory.New().Bundle()
    hub := realtime.NewHub(nil)
    notifier := queue.Direct{Writer: store.Notifications, NewID: uuid.NewString}
    svc := service.New(store, queue.Fanout{hub, notifier}, service.WithBcryptCost(bcrypt.MinCost))

    e := echo.New()
    RegisterRoutes(e, Handlers{
        Auth:          handler.NewAuthHandler(cfg, svc.Accounts, store.Tokens),
        Emergencies:   handler.NewEmergencyHandler(svc),
        Proposals:     handler.NewProposalHandler(svc),
        Projects:      handler.NewProjectHandler(svc),
        Payments:      handler.NewPaymentHandler(svc),
        Notifications: handler.NewNotificationHandler(svc),
        Admin:         handler.NewAdminHandler(svc),
        Uploads:       handler.NewUploadHandler(storage.NewLocal(t.TempDir(), "/media"), cfg.MaxUploadBytes),
        Events:        handler.NewEventsHandler(hub, svc),
    }, cfg, nil)
    return &api{e: e, hub: hub}
}

func (a *api) call(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
    t.Helper()
    var buf bytes.Buffer
    if body != nil {
        require.NoError(t, json.NewEncoder(&buf).Encode(body))
    }
    req := httptest.NewRequest(method, path, &buf)
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    if token != "" {
        req.Header.Set("Authorization", "Bearer "+token)
    }
    rec := httptest.NewRecorder()
    a.e.ServeHTTP(rec, req)
    return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
    t.Helper()
    var v T
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
    return v
}

type session struct {
    User struct {
        ID string `json:"id"`
    } `json:"user"`
    Access struct {
        Token string `json:"token"`
    } `json:"access"`
    Refresh struct {
        Token string `json:"token"`
    } `json:"refresh"`
}

func (a *api) register(t *testing.T, email, role string) session {
    t.Helper()
    rec := a.call(t, http.MethodPost, "/v1/auth/register", "", map[string]any{
        "email":           email,
        "password":        "s3cret-pass",
        "firstName":       "Camille",
        "lastName":        "Martin",
        "role":            role,
        "trades":          []string{"Plomberie"},
        "arrondissements": []int{11},
    })
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    return decode[session](t, rec)
}

type idStatus struct {
    ID     string `json:"id"`
    Status string `json:"status"`
    Amount int64  `json:"amount"`
}

func TestHealthAndReference(t *testing.T) {
    a := newAPI(t)
    rec := a.call(t, http.MethodGet, "/healthz", "", nil)
    require.Equal(t, http.StatusOK, rec.Code)
    require.Equal(t, "ok", rec.Body.String())

    rec = a.call(t, http.MethodGet, "/v1/reference/trades", "", nil)
    require.Equal(t, http.StatusOK, rec.Code)
    require.Contains(t, rec.Body.String(), "Plomberie")

    rec = a.call(t, http.MethodGet, "/v1/reference/urgency-levels", "", nil)
    require.Equal(t, http.StatusOK, rec.Code)
    require.JSONEq(t, `{"items":["low","medium","high","critical"]}`, rec.Body.String())
}

func TestAuthSessionLifecycle(t *testing.T) {
    a := newAPI(t)
    s := a.register(t, "gest@example.fr", "gestionnaire")

    rec := a.call(t, http.MethodPost, "/v1/auth/register", "", map[string]any{
        "email": "GEST@example.fr", "password": "s3cret-pass", "firstName": "A", "lastName": "B", "role": "gestionnaire",
    })
    require.Equal(t, http.StatusConflict, rec.Code)

    rec = a.call(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "gest@example.fr", "password": "nope-nope"})
    require.Equal(t, http.StatusUnauthorized, rec.Code)

    rec = a.call(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": " Gest@Example.fr ", "password": "s3cret-pass"})
    require.Equal(t, http.StatusOK, rec.Code)

    rec = a.call(t, http.MethodGet, "/v1/me", s.Access.Token, nil)
    require.Equal(t, http.StatusOK, rec.Code)
    require.Equal(t, s.User.ID, decode[idStatus](t, rec).ID)
    require.NotContains(t, rec.Body.String(), "password")

    // Refresh rotates: the old token stops working.
    rec = a.call(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": s.Refresh.Token})
    require.Equal(t, http.StatusOK, rec.Code)
    rotated := decode[session](t, rec)
    rec = a.call(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": s.Refresh.Token})
    require.Equal(t, http.StatusUnauthorized, rec.Code)

    rec = a.call(t, http.MethodPost, "/v1/auth/refresh-access", "", map[string]string{"refresh_token": rotated.Refresh.Token})
    require.Equal(t, http.StatusOK, rec.Code)

    // Bearer logout revokes every session.
    rec = a.call(t, http.MethodPost, "/v1/auth/logout", s.Access.Token, nil)
    require.Equal(t, http.StatusNoContent, rec.Code)
    rec = a.call(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": rotated.Refresh.Token})
    require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConcurrentRefreshRotatesOnce(t *testing.T) {
    a := newAPI(t)
    s := a.register(t, "art@example.fr", "artisan")

    codes := make(chan int, 8)
    var wg sync.WaitGroup
    for i := 0; i < cap(codes); i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            codes <- a.call(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": s.Refresh.Token}).Code
        }()
    }
    wg.Wait()
    close(codes)

    won := 0
    for code := range codes {
        if code == http.StatusOK {
            won++
            continue
        }
        require.Equal(t, http.StatusUnauthorized, code)
    }
    require.Equal(t, 1, won)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
    a := newAPI(t)
    require.Equal(t, http.StatusUnauthorized, a.call(t, http.MethodGet, "/v1/projects", "", nil).Code)
    require.Equal(t, http.StatusUnauthorized, a.call(t, http.MethodGet, "/v1/me", "bogus", nil).Code)
}

func TestEmergencyToInvoiceOverHTTP(t *testing.T) {
    a := newAPI(t)
    gest := a.register(t, "gest@example.fr", "gestionnaire")
    art := a.register(t, "art@example.fr", "artisan")

    emergency := map[string]any{
        "title":          "Fuite sous évier",
        "description":    "L'eau coule en continu",
        "address":        "12 rue Oberkampf",
        "arrondissement": 11,
        "trade":          "Plomberie",
        "maxBudget":      30000,
        "urgencyLevel":   "high",
    }
    require.Equal(t, http.StatusForbidden, a.call(t, http.MethodPost, "/v1/emergencies", art.Access.Token, emergency).Code)
    rec := a.call(t, http.MethodPost, "/v1/emergencies", gest.Access.Token, emergency)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    em := decode[idStatus](t, rec)
    require.Equal(t, "open", em.Status)

    rec = a.call(t, http.MethodGet, "/v1/opportunities", art.Access.Token, nil)
    require.Equal(t, http.StatusOK, rec.Code)
    require.Contains(t, rec.Body.String(), em.ID)

    rec = a.call(t, http.MethodGet, "/v1/emergencies?trade=Serrurerie", art.Access.Token, nil)
    require.Equal(t, http.StatusOK, rec.Code)
    require.NotContains(t, rec.Body.String(), em.ID)

    rec = a.call(t, http.MethodPost, "/v1/emergencies/"+em.ID+"/proposals", art.Access.Token, map[string]any{
        "price": 25000, "description": "Remplacement du siphon", "estimatedDuration": "2h",
    })
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    prop := decode[idStatus](t, rec)

    rec = a.call(t, http.MethodPost, "/v1/proposals/"+prop.ID+"/accept", art.Access.Token, nil)
    require.Equal(t, http.StatusForbidden, rec.Code)
    rec = a.call(t, http.MethodPost, "/v1/proposals/"+prop.ID+"/accept", gest.Access.Token, nil)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    project := decode[idStatus](t, rec)
    require.Equal(t, "accepted", project.Status)
    rec = a.call(t, http.MethodPost, "/v1/proposals/"+prop.ID+"/accept", gest.Access.Token, nil)
    require.Equal(t, http.StatusCreated, rec.Code)
    require.Equal(t, project.ID, decode[idStatus](t, rec).ID)

    base := "/v1/projects/" + project.ID
    rec = a.call(t, http.MethodPut, base+"/status", art.Access.Token, map[string]string{"status": "completed"})
    require.Equal(t, http.StatusConflict, rec.Code)
    for _, st := range []string{"in_progress", "completed"} {
        rec = a.call(t, http.MethodPut, base+"/status", art.Access.Token, map[string]string{"status": st})
        require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    }

    rec = a.call(t, http.MethodPost, base+"/messages", gest.Access.Token, map[string]any{"text": "Merci !"})
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    rec = a.call(t, http.MethodPost, base+"/messages/read", art.Access.Token, nil)
    require.Equal(t, http.StatusOK, rec.Code)
    require.JSONEq(t, `{"updated":1}`, rec.Body.String())

    rec = a.call(t, http.MethodPost, base+"/payments", art.Access.Token, map[string]any{})
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    pay := decode[idStatus](t, rec)
    require.Equal(t, int64(25000), pay.Amount)
    require.Equal(t, "pending", pay.Status)

    rec = a.call(t, http.MethodPost, "/v1/payments/"+pay.ID+"/process", art.Access.Token, nil)
    require.Equal(t, http.StatusForbidden, rec.Code)
    rec = a.call(t, http.MethodPost, "/v1/payments/"+pay.ID+"/process", gest.Access.Token, nil)
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    require.Equal(t, "completed", decode[idStatus](t, rec).Status)

    rec = a.call(t, http.MethodGet, base, gest.Access.Token, nil)
    require.Equal(t, http.StatusOK, rec.Code)
    require.Equal(t, "paid", decode[idStatus](t, rec).Status)

    rec = a.call(t, http.MethodPost, "/v1/payments/"+pay.ID+"/invoice", art.Access.Token, nil)
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    var inv struct {
        ID          string `json:"id"`
        TotalAmount int64  `json:"totalAmount"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
    require.Equal(t, int64(30000), inv.TotalAmount)

    rec = a.call(t, http.MethodGet, "/v1/invoices/"+inv.ID, gest.Access.Token, nil)
    require.Equal(t, http.StatusOK, rec.Code)

    rec = a.call(t, http.MethodGet, "/v1/payments/summary", art.Access.Token, nil)
    require.Equal(t, http.StatusOK, rec.Code)
    require.JSONEq(t, `{"pendingCount":0,"pendingAmount":0,"completedCount":1,"totalEarned":25000,"failedCount":0}`, rec.Body.String())

    rec = a.call(t, http.MethodGet, "/v1/emergencies/"+em.ID, gest.Access.Token, nil)
    require.Equal(t, "closed", decode[idStatus](t, rec).Status)

    rec = a.call(t, http.MethodGet, "/v1/notifications", gest.Access.Token, nil)
    require.Equal(t, http.StatusOK, rec.Code)
    var notes struct {
        Items []idStatus `json:"items"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
    require.NotEmpty(t, notes.Items)
    rec = a.call(t, http.MethodPost, "/v1/notifications/"+notes.Items[0].ID+"/read", gest.Access.Token, nil)
    require.Equal(t, http.StatusNoContent, rec.Code)
    rec = a.call(t, http.MethodPost, "/v1/notifications/"+notes.Items[0].ID+"/read", art.Access.Token, nil)
    require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminVerification(t *testing.T) {
    a := newAPI(t)
    art := a.register(t, "art@example.fr", "artisan")
    rec := a.call(t, http.MethodPut, "/v1/admin/users/"+art.User.ID+"/verification", art.Access.Token,
        map[string]bool{"verified": true})
    require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserEventStreamReplaysBacklog(t *testing.T) {
    a := newAPI(t)
    s := a.register(t, "gest@example.fr", "gestionnaire")

    for _, typ := range []string{queue.EmergencyCreated, queue.ChatMessagePosted} {
        require.NoError(t, a.hub.Publish(context.Background(), queue.Event{Type: typ, Recipients: []string{s.User.ID}}))
    }

    ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
    defer cancel()
    req := httptest.NewRequest(http.MethodGet, "/v1/me/events?access_token="+s.Access.Token, nil).WithContext(ctx)
    req.Header.Set("Last-Event-ID", "1")
    rec := httptest.NewRecorder()
    a.e.ServeHTTP(rec, req)

    require.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
    body := rec.Body.String()
    require.NotContains(t, body, "id: 1\n")
    require.Contains(t, body, "id: 2\nevent: "+queue.ChatMessagePosted+"\n")
    require.Equal(t, 1, strings.Count(body, "event: "))
}
