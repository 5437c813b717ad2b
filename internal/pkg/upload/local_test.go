package upload

import (
	"bytes"
	"context"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("avatar", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["avatar"][0]
}

func TestLocal_SaveTempUploadDelete(t *testing.T) {
	base := t.TempDir()
	l := NewLocal(base, "/static/uploads/")
	l.now = func() time.Time { return time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	staged, err := l.SaveTemp(fileHeader(t, "me.png", pngBytes))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "tmp"), filepath.Dir(staged))
	assert.Equal(t, ".png", filepath.Ext(staged))

	url, publicID, err := l.Upload(ctx, staged)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(publicID, "avatars/2026/03/04/"))
	assert.Equal(t, "/static/uploads/"+publicID, url)

	_, err = os.Stat(staged)
	assert.True(t, os.IsNotExist(err), "staged file is removed after upload")

	stored := filepath.Join(base, filepath.FromSlash(publicID))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	require.NoError(t, l.Delete(ctx, publicID))
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, l.Delete(ctx, publicID), "deleting twice is fine")
}

func TestLocal_SaveTempRejects(t *testing.T) {
	l := NewLocal(t.TempDir(), "")

	_, err := l.SaveTemp(fileHeader(t, "notes.txt", []byte("just some text")))
	assert.ErrorIs(t, err, ErrInvalidMimeType)

	_, err = l.SaveTemp(fileHeader(t, "empty.png", nil))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestLocal_UploadRemovesStagedFileOnFailure(t *testing.T) {
	base := t.TempDir()
	l := NewLocal(base, "")

	staged, err := l.SaveTemp(fileHeader(t, "me.png", pngBytes))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = l.Upload(ctx, staged)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = os.Stat(staged)
	assert.True(t, os.IsNotExist(err))
}

func TestLocal_DeleteRejectsTraversal(t *testing.T) {
	l := NewLocal(t.TempDir(), "")
	for _, id := range []string{"", "../etc/passwd", "avatars/../../x", "tmp/file.png", "/avatars/a.png"} {
		assert.ErrorIs(t, l.Delete(context.Background(), id), ErrInvalidPublicID, id)
	}
}
