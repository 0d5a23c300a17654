package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const localPrefix = "/uploads/"

// LocalStore keeps evidence images on the local filesystem, served by the
// frontend proxy under /uploads/. Filesystem fallback for deployments
// without an object store.
type LocalStore struct {
	Dir     string // directory images are written to
	BaseURL string // public base, e.g. http://localhost:8080
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("evidence dir: %w", err)
	}
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(_ context.Context, data []byte, contentType string) (string, error) {
	key := objectKey(data, contentType)
	if err := os.WriteFile(filepath.Join(s.Dir, key), data, 0o644); err != nil {
		return "", fmt.Errorf("write evidence: %w", err)
	}
	return s.BaseURL + localPrefix + key, nil
}

// Delete reverse-derives the file name from the URL shape. A missing file is
// not an error.
func (s *LocalStore) Delete(_ context.Context, url string) error {
	idx := strings.Index(url, localPrefix)
	if idx < 0 {
		return fmt.Errorf("not a local evidence url: %s", url)
	}
	key := url[idx+len(localPrefix):]
	if key == "" || strings.Contains(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("bad evidence key in url: %s", url)
	}
	if err := os.Remove(filepath.Join(s.Dir, key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove evidence: %w", err)
	}
	return nil
}
