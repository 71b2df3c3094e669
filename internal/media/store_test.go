package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/family-trips/internal/apperror"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewStore(root, "http://localhost:8080", DefaultBuckets(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s, root
}

func TestPut_SniffsContentType(t *testing.T) {
	s, root := newTestStore(t)

	obj, err := s.Put(context.Background(), BucketAvatars, "me.png", "", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	assert.Equal(t, "image/png", obj.ContentType)
	assert.True(t, strings.HasSuffix(obj.Name, ".png"))
	assert.Equal(t, "http://localhost:8080/media/avatars/"+obj.Name, obj.URL)
	_, statErr := os.Stat(filepath.Join(root, BucketAvatars, obj.Name))
	assert.NoError(t, statErr)
}

func TestPut_RejectsWrongType(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Put(context.Background(), BucketAvatars, "clip.mp4", "video/mp4", strings.NewReader("data"))
	assert.True(t, errors.Is(err, apperror.ErrValidation), "video is not a valid avatar")

	_, err = s.Put(context.Background(), BucketMemories, "clip.mp4", "video/mp4", strings.NewReader("data"))
	assert.NoError(t, err, "video is a valid memory attachment")
}

func TestPut_EnforcesSizeLimit(t *testing.T) {
	s, root := newTestStore(t)

	tooBig := io.MultiReader(bytes.NewReader(pngHeader), bytes.NewReader(make([]byte, 2*MiB)))
	_, err := s.Put(context.Background(), BucketAvatars, "big.png", "image/png", tooBig)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	entries, _ := os.ReadDir(filepath.Join(root, BucketAvatars))
	assert.Empty(t, entries, "rejected upload must not leave files behind")
}

func TestPut_UnknownBucket(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Put(context.Background(), "secrets", "x.png", "image/png", bytes.NewReader(pngHeader))
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestHandler_ServesObjects(t *testing.T) {
	s, _ := newTestStore(t)
	obj, err := s.Put(context.Background(), BucketMemories, "a.png", "image/png", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	h := http.StripPrefix("/media/", s.Handler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/memories/"+obj.Name, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngHeader, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/memories/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "no directory listing")
}

func TestDelete(t *testing.T) {
	s, root := newTestStore(t)
	obj, _ := s.Put(context.Background(), BucketAvatars, "a.png", "", bytes.NewReader(pngHeader))

	require.NoError(t, s.Delete(BucketAvatars, obj.Name))
	require.NoError(t, s.Delete(BucketAvatars, obj.Name), "second delete is a no-op")
	_, err := os.Stat(filepath.Join(root, BucketAvatars, obj.Name))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, s.Delete(BucketAvatars, "../escape"))
}
