// Package media stores uploaded avatars and memory attachments on the local
// filesystem and serves them back under /media/{bucket}/{object}.
//
// BUCKETS:
// A bucket is a directory with an upload policy: a size ceiling and a set of
// accepted MIME type prefixes. The limits are enforced here, server side,
// whatever the client claims.
//
//	avatars   ≤ 2 MiB   image/*
//	memories  ≤ 10 MiB  image/*, video/*
package media

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/family-trips/internal/apperror"
)

const (
	MiB = 1 << 20

	BucketAvatars  = "avatars"
	BucketMemories = "memories"
)

// Bucket describes one upload destination.
type Bucket struct {
	Name     string
	MaxBytes int64
	Accept   []string // MIME type prefixes, e.g. "image/"
}

func (b Bucket) accepts(contentType string) bool {
	for _, prefix := range b.Accept {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// DefaultBuckets returns the avatars and memories buckets.
func DefaultBuckets() []Bucket {
	return []Bucket{
		{Name: BucketAvatars, MaxBytes: 2 * MiB, Accept: []string{"image/"}},
		{Name: BucketMemories, MaxBytes: 10 * MiB, Accept: []string{"image/", "video/"}},
	}
}

// Object is a stored upload.
type Object struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Store writes objects under root/<bucket>/<name>.
type Store struct {
	root    string
	baseURL string
	buckets map[string]Bucket
	logger  *slog.Logger
}

// NewStore creates the bucket directories under root. baseURL is the public
// origin used to build object URLs ("" yields root-relative URLs).
func NewStore(root, baseURL string, buckets []Bucket, logger *slog.Logger) (*Store, error) {
	s := &Store{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		buckets: make(map[string]Bucket, len(buckets)),
		logger:  logger,
	}
	for _, b := range buckets {
		if err := os.MkdirAll(filepath.Join(root, b.Name), 0o755); err != nil {
			return nil, fmt.Errorf("media: creating bucket %s: %w", b.Name, err)
		}
		s.buckets[b.Name] = b
	}
	return s, nil
}

// Put stores the upload in bucket and returns its public URL.
//
// The content type is sniffed from the first 512 bytes when the caller does
// not supply one. Oversized or wrongly typed uploads fail with ErrValidation
// and leave nothing behind.
func (s *Store) Put(ctx context.Context, bucket, filename, contentType string, r io.Reader) (*Object, error) {
	b, ok := s.buckets[bucket]
	if !ok {
		return nil, apperror.NotFound("bucket", bucket)
	}

	br := bufio.NewReaderSize(r, 512)
	if contentType == "" || contentType == "application/octet-stream" {
		head, _ := br.Peek(512)
		contentType = http.DetectContentType(head)
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	if !b.accepts(contentType) {
		return nil, apperror.ValidationFailed("file", fmt.Sprintf("%s uploads must be %s, got %s",
			bucket, strings.Join(b.Accept, " or "), contentType))
	}

	name := xid.New().String() + extensionFor(filename, contentType)
	final := filepath.Join(s.root, bucket, name)

	tmp, err := os.CreateTemp(filepath.Join(s.root, bucket), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("media: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	// Copy one byte past the limit so we can tell "exactly max" from "over".
	n, err := io.Copy(tmp, io.LimitReader(&ctxReader{ctx: ctx, r: br}, b.MaxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("media: writing %s/%s: %w", bucket, name, err)
	}
	if n > b.MaxBytes {
		return nil, apperror.ValidationFailed("file", fmt.Sprintf("%s uploads are limited to %d MiB", bucket, b.MaxBytes/MiB))
	}
	if n == 0 {
		return nil, apperror.ValidationFailed("file", "file is empty")
	}

	if err := os.Rename(tmp.Name(), final); err != nil {
		return nil, fmt.Errorf("media: storing %s/%s: %w", bucket, name, err)
	}

	s.logger.Info("media stored",
		slog.String("bucket", bucket),
		slog.String("object", name),
		slog.Int64("bytes", n),
	)

	return &Object{
		Bucket:      bucket,
		Name:        name,
		URL:         s.baseURL + path.Join("/media", bucket, name),
		ContentType: contentType,
		Size:        n,
	}, nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *Store) Delete(bucket, name string) error {
	if _, ok := s.buckets[bucket]; !ok {
		return apperror.NotFound("bucket", bucket)
	}
	if name != filepath.Base(name) {
		return apperror.ValidationFailed("name", "invalid object name")
	}
	err := os.Remove(filepath.Join(s.root, bucket, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("media: deleting %s/%s: %w", bucket, name, err)
	}
	return nil
}

// Handler serves stored objects. Mount it under "/media/":
//
//	r.Handle("/media/*", http.StripPrefix("/media/", store.Handler()))
//
// Directory listings are disabled.
func (s *Store) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket, object, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
		if _, ok := s.buckets[bucket]; !ok || object == "" || strings.Contains(object, "/") || strings.HasPrefix(object, ".") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		files.ServeHTTP(w, r)
	})
}

// extensionFor keeps the client's extension when it has one, otherwise it
// derives one from the content type.
func extensionFor(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// ctxReader stops a long upload copy when the request is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
