package handler

import (
    "bytes"
    "context"
    "errors"
    "io"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mano-pro/internal/storage"
)

// Uploader persists an object and returns its public URL.
type Uploader interface {
    Upload(ctx context.Context, key string, r io.Reader) (string, error)
}

type UploadHandler struct {
    Store    Uploader
    MaxBytes int64
}

func NewUploadHandler(store Uploader, maxBytes int64) *UploadHandler {
    return &UploadHandler{Store: store, MaxBytes: maxBytes}
}

// Upload accepts a multipart "file" plus a "kind" (emergency, chat, project,
// avatar) and stores it. The content type is sniffed from the bytes; the
// client's header is not trusted.
func (h *UploadHandler) Upload(c echo.Context) error {
    // Multipart overhead gets a little room on top of the file limit.
    c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, h.MaxBytes+1<<20)
    fh, err := c.FormFile("file")
    if err != nil {
        var tooBig *http.MaxBytesError
        if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
            return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
        }
        return badRequest(c, "file required")
    }
    kind := strings.TrimSpace(c.FormValue("kind"))
    if kind == "" {
        kind = "project"
    }
    if !storage.Kinds[kind] {
        return badRequest(c, "invalid kind")
    }
    if fh.Size > h.MaxBytes {
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
    }
    f, err := fh.Open()
    if err != nil {
        return respondError(c, err)
    }
    defer f.Close()

    head := make([]byte, 512)
    n, err := io.ReadFull(f, head)
    if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
        return respondError(c, err)
    }
    head = head[:n]
    ext, ok := storage.Extensions[http.DetectContentType(head)]
    if !ok {
        return c.JSON(http.StatusUnsupportedMediaType, echo.Map{"error": "unsupported file type"})
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    key := storage.NewKey(kind, ext)
    url, err := h.Store.Upload(ctx, key, io.MultiReader(bytes.NewReader(head), f))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"url": url, "key": key})
}
