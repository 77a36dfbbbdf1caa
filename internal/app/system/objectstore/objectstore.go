// Package objectstore stores uploaded images and turns stored keys into
// short-lived URLs.
//
// Image references on users, posts, groups and birds are opaque strings.
// A reference that is empty, an absolute http(s) URL, or a "/"-prefixed
// path is external and left alone; anything else is a key owned by the
// configured Store.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is implemented by S3 and Local.
type Store interface {
	// Put writes r under key and returns the key to persist.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a URL that can fetch key for ttl.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Managed reports whether ref is a key this store owns.
	Managed(ref string) bool
}

// Config selects and configures a backend.
type Config struct {
	Type      string // "local" or "s3"
	LocalPath string
	LocalURL  string
	S3Region  string
	S3Bucket  string
	S3Prefix  string
}

// New builds the Store named by cfg.Type.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "local":
		return NewLocal(cfg.LocalPath, cfg.LocalURL), nil
	case "s3":
		return NewS3(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("storage_type must be \"local\" or \"s3\", got %q", cfg.Type)
	}
}

// IsExternal reports whether ref needs no resolution: it is empty, an
// absolute http(s) URL, or a site-relative path.
func IsExternal(ref string) bool {
	return ref == "" ||
		strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "/")
}

// Key builds a fresh object key: <kind>/<uuid>_<sanitized filename>.
func Key(kind, filename string) string {
	return kind + "/" + uuid.New().String() + "_" + SanitizeFilename(filename)
}

// SanitizeFilename keeps the base name of filename and replaces every
// byte outside [A-Za-z0-9._-] with '_'. Names longer than 100 bytes are
// truncated, keeping a short extension.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if filename == "." || filename == ".." || filename == "/" {
		return "file"
	}

	result := make([]byte, 0, len(filename))
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		if allowedFilenameChar(c) {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}

	if len(result) == 0 {
		return "file"
	}
	if len(result) > 100 {
		ext := filepath.Ext(string(result))
		if len(ext) > 0 && len(ext) < 10 {
			result = append(result[:100-len(ext)], ext...)
		} else {
			result = result[:100]
		}
	}
	return string(result)
}

func allowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}

// Upload is an image received with a request, not yet stored.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Save stores u under a fresh key in kind and returns the key. A nil
// Upload stores nothing and returns "".
func (u *Upload) Save(ctx context.Context, st Store, kind string) (string, error) {
	if u == nil || u.Body == nil {
		return "", nil
	}
	ct := u.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return st.Put(ctx, Key(kind, u.Filename), u.Body, ct)
}

// DeleteIfManaged removes ref from st when st owns it. External
// references are left alone.
func DeleteIfManaged(ctx context.Context, st Store, ref string) error {
	if st == nil || !st.Managed(ref) {
		return nil
	}
	return st.Delete(ctx, ref)
}
