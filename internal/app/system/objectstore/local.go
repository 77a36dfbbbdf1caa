package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Local writes objects below Root and serves them from URLPrefix (the
// files route mounted with the WAFFLE fileserver). Local URLs do not
// expire, so PresignGet ignores ttl.
type Local struct {
	Root      string
	URLPrefix string
}

func NewLocal(root, urlPrefix string) *Local {
	if root == "" {
		root = "./uploads"
	}
	if urlPrefix == "" {
		urlPrefix = "/files"
	}
	return &Local{Root: root, URLPrefix: strings.TrimRight(urlPrefix, "/")}
}

// FullPath maps key onto the filesystem. Keys cannot climb out of Root.
func (l *Local) FullPath(key string) string {
	clean := path.Clean("/" + filepath.ToSlash(key))
	return filepath.Join(l.Root, filepath.FromSlash(clean))
}

func (l *Local) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	full := l.FullPath(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", key, err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	return key, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	err := os.Remove(l.FullPath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (l *Local) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return l.URLPrefix + path.Clean("/"+filepath.ToSlash(key)), nil
}

func (l *Local) Managed(ref string) bool {
	return !IsExternal(ref)
}
