// Package storage is the blob store behind photo and avatar uploads.
package storage

import (
    "context"
    "errors"
    "fmt"
    "io"
    "os"
    "path"
    "path/filepath"
    "strings"

    "github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that would escape the storage root.
var ErrInvalidKey = errors.New("invalid object key")

// Kinds of objects clients may upload.
var Kinds = map[string]bool{"emergency": true, "chat": true, "project": true, "avatar": true}

// Extensions maps accepted image content types to file extensions.
var Extensions = map[string]string{
    "image/jpeg": ".jpg",
    "image/png":  ".png",
    "image/webp": ".webp",
    "image/gif":  ".gif",
}

// Local stores objects on disk under Root and serves them below BaseURL.
type Local struct {
    Root    string
    BaseURL string
}

func NewLocal(root, baseURL string) *Local {
    return &Local{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}
}

// NewKey builds a collision-free object key such as chat/<uuid>.png.
func NewKey(kind, ext string) string {
    return kind + "/" + uuid.NewString() + ext
}

// Upload writes r under key and returns the object's public URL.
func (l *Local) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
    clean := path.Clean("/" + key)[1:]
    if clean == "" || clean != key || strings.HasPrefix(clean, "..") {
        return "", ErrInvalidKey
    }
    dst := filepath.Join(l.Root, filepath.FromSlash(clean))
    if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
        return "", fmt.Errorf("mkdir: %w", err)
    }
    f, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
    if err != nil {
        return "", fmt.Errorf("create temp: %w", err)
    }
    tmp := f.Name()
    defer func() { _ = os.Remove(tmp) }()

    if _, err := io.Copy(f, readerWithContext(ctx, r)); err != nil {
        _ = f.Close()
        return "", fmt.Errorf("write object: %w", err)
    }
    if err := f.Close(); err != nil {
        return "", fmt.Errorf("close object: %w", err)
    }
    if err := os.Rename(tmp, dst); err != nil {
        return "", fmt.Errorf("commit object: %w", err)
    }
    return l.BaseURL + "/" + clean, nil
}

type ctxReader struct {
    ctx context.Context
    r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
    if err := c.ctx.Err(); err != nil {
        return 0, err
    }
    return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader { return ctxReader{ctx: ctx, r: r} }
