package storage

import (
    "context"
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/stretchr/testify/require"
)

func TestUploadWritesUnderRoot(t *testing.T) {
    root := t.TempDir()
    l := NewLocal(root, "/media/")

    key := NewKey("chat", ".png")
    require.True(t, strings.HasPrefix(key, "chat/"))
    require.True(t, strings.HasSuffix(key, ".png"))

    url, err := l.Upload(context.Background(), key, strings.NewReader("png-bytes"))
    require.NoError(t, err)
    require.Equal(t, "/media/"+key, url)

    b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
    require.NoError(t, err)
    require.Equal(t, "png-bytes", string(b))
}

func TestUploadRejectsEscapingKeys(t *testing.T) {
    l := NewLocal(t.TempDir(), "/media")
    for _, key := range []string{"../etc/passwd", "", "a/../../b", "/abs"} {
        _, err := l.Upload(context.Background(), key, strings.NewReader("x"))
        require.ErrorIs(t, err, ErrInvalidKey, key)
    }
}

func TestUploadHonoursCancelledContext(t *testing.T) {
    l := NewLocal(t.TempDir(), "/media")
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    _, err := l.Upload(ctx, "avatar/x.jpg", strings.NewReader("data"))
    require.ErrorIs(t, err, context.Canceled)
}
