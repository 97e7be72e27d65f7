package handler

import (
    "bytes"
    "context"
    "errors"
    "fmt"
    "io"
    "mime/multipart"
    "net/http"
    "net/http/httptest"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/require"
    "golang.org/x/crypto/bcrypt"

    "github.com/iliyamo/mano-pro/internal/config"
    "github.com/iliyamo/mano-pro/internal/lifecycle"
    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/queue"
    "github.com/iliyamo/mano-pro/internal/repository"
    "github.com/iliyamo/mano-pro/internal/repository/memory"
    "github.com/iliyamo/mano-pro/internal/service"
    "github.com/iliyamo/mano-pro/internal/storage"
    "github.com/iliyamo/mano-pro/internal/utils"
)

// 1x1 transparent PNG.
var pngPixel = []byte{
    0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
    0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
    0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
    0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
    0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
    0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func multipartBody(t *testing.T, kind string, file []byte) (*bytes.Buffer, string) {
    t.Helper()
    var buf bytes.Buffer
    w := multipart.NewWriter(&buf)
    if kind != "" {
        require.NoError(t, w.WriteField("kind", kind))
    }
    if file != nil {
        fw, err := w.CreateFormFile("file", "photo.bin")
        require.NoError(t, err)
        _, err = fw.Write(file)
        require.NoError(t, err)
    }
    require.NoError(t, w.Close())
    return &buf, w.FormDataContentType()
}

func upload(t *testing.T, h *UploadHandler, kind string, file []byte) *httptest.ResponseRecorder {
    t.Helper()
    body, ct := multipartBody(t, kind, file)
    e := echo.New()
    e.POST("/v1/uploads", h.Upload)
    req := httptest.NewRequest(http.MethodPost, "/v1/uploads", body)
    req.Header.Set(echo.HeaderContentType, ct)
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestUploadStoresSniffedImage(t *testing.T) {
    root := t.TempDir()
    h := NewUploadHandler(storage.NewLocal(root, "/media"), 1<<20)

    rec := upload(t, h, "chat", pngPixel)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    require.Contains(t, rec.Body.String(), `"url":"/media/chat/`)

    matches, err := filepath.Glob(filepath.Join(root, "chat", "*.png"))
    require.NoError(t, err)
    require.Len(t, matches, 1)
    stored, err := os.ReadFile(matches[0])
    require.NoError(t, err)
    require.Equal(t, pngPixel, stored)
}

func TestUploadRejections(t *testing.T) {
    h := NewUploadHandler(storage.NewLocal(t.TempDir(), "/media"), 64)

    require.Equal(t, http.StatusBadRequest, upload(t, h, "chat", nil).Code)
    require.Equal(t, http.StatusBadRequest, upload(t, h, "invoice", pngPixel[:32]).Code)
    require.Equal(t, http.StatusUnsupportedMediaType, upload(t, h, "chat", []byte("plain text, not an image")).Code)
    require.Equal(t, http.StatusRequestEntityTooLarge, upload(t, h, "chat", bytes.Repeat([]byte{0x89}, 128)).Code)
}

type failingUploader struct{}

func (failingUploader) Upload(context.Context, string, io.Reader) (string, error) {
    return "", errors.New("disk full")
}

func TestUploadStorageFailureIsInternal(t *testing.T) {
    rec := upload(t, NewUploadHandler(failingUploader{}, 1<<20), "avatar", pngPixel)
    require.Equal(t, http.StatusInternalServerError, rec.Code)
    require.NotContains(t, rec.Body.String(), "disk full")
}

func TestRespondErrorMapping(t *testing.T) {
    cases := []struct {
        err  error
        code int
    }{
        {fmt.Errorf("%w: title is required", service.ErrValidation), http.StatusBadRequest},
        {service.ErrInvalidCredentials, http.StatusUnauthorized},
        {service.ErrForbidden, http.StatusForbidden},
        {repository.ErrNotFound, http.StatusNotFound},
        {repository.ErrEmailExists, http.StatusConflict},
        {fmt.Errorf("%w: project already has a payment", repository.ErrConflict), http.StatusConflict},
        {lifecycle.ErrAlreadyAccepted, http.StatusConflict},
        {context.DeadlineExceeded, http.StatusServiceUnavailable},
        {errors.New("boom"), http.StatusInternalServerError},
    }
    e := echo.New()
    for _, tc := range cases {
        rec := httptest.NewRecorder()
        c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
        require.NoError(t, respondError(c, tc.err))
        require.Equal(t, tc.code, rec.Code, tc.err.Error())
        if tc.code == http.StatusInternalServerError {
            require.False(t, strings.Contains(rec.Body.String(), "boom"))
        }
    }
}

// rotatedMeanwhile lets a token pass validation and then revokes it, the way
// a concurrent refresh of the same token would.
type rotatedMeanwhile struct{ service.TokenStore }

func (r rotatedMeanwhile) ValidateRefresh(ctx context.Context, hash string) (string, error) {
    uid, err := r.TokenStore.ValidateRefresh(ctx, hash)
    if err != nil {
        return "", err
    }
    return uid, r.TokenStore.RevokeByHash(ctx, hash)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.Event) error { return nil }

func TestRefreshLosingRotationIsUnauthorized(t *testing.T) {
    store := memory.New().Bundle()
    svc := service.New(store, nopPublisher{}, service.WithBcryptCost(bcrypt.MinCost))
    ctx := context.Background()
    u, err := svc.Accounts.Register(ctx, service.RegisterInput{
        Email: "gest@example.fr", Password: "s3cret-pass", FirstName: "A", LastName: "B", Role: model.RoleGestionnaire,
    })
    require.NoError(t, err)

    cfg := config.Config{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 30}
    h := NewAuthHandler(cfg, svc.Accounts, rotatedMeanwhile{store.Tokens})
    e := echo.New()
    e.POST("/refresh", h.Refresh)
    e.POST("/logout", h.Logout)

    for _, path := range []string{"/refresh", "/logout"} {
        require.NoError(t, store.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(path), time.Now().Add(time.Hour)))
        req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"refresh_token":"`+path+`"}`))
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, req)
        require.Equal(t, http.StatusUnauthorized, rec.Code, path)
    }
}
