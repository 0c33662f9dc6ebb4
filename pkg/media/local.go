package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/healthassoc/bayan/pkg/config"
)

// LocalStore keeps objects on the local filesystem and serves them over
// HTTP under BaseURL.
type LocalStore struct {
	log     logrus.FieldLogger
	root    string
	baseURL string
}

var _ ObjectStore = (*LocalStore)(nil)

// NewLocalStore creates the root directory if needed.
func NewLocalStore(log logrus.FieldLogger, cfg *config.LocalStorageConfig) (*LocalStore, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage root: %w", err)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}

	return &LocalStore{
		log:     log.WithField("component", "local-store"),
		root:    root,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// BaseURL is the path prefix objects are served under.
func (l *LocalStore) BaseURL() string {
	return l.baseURL
}

func (l *LocalStore) Upload(
	_ context.Context,
	key string,
	r io.Reader,
	_ int64,
	_ string,
) error {
	full, err := l.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("writing %s: %w", key, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("closing %s: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("moving %s into place: %w", key, err)
	}

	return nil
}

func (l *LocalStore) PublicURL(key string) string {
	return l.baseURL + "/" + key
}

func (l *LocalStore) Remove(_ context.Context, keys ...string) error {
	for _, key := range keys {
		full, err := l.resolve(key)
		if err != nil {
			return err
		}

		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", key, err)
		}
	}

	return nil
}

// ServeHTTP serves the object named by the request path, relative to the
// handler mount point.
func (l *LocalStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")

	full, err := l.resolve(key)
	if err != nil {
		http.NotFound(w, r)

		return
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)

		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, full)
}

// resolve maps key to a path under root.
func (l *LocalStore) resolve(key string) (string, error) {
	if !isAllowedKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	full := filepath.Join(l.root, filepath.FromSlash(key))

	if !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return full, nil
}

// isAllowedKey rejects empty, absolute, unclean or traversal keys.
func isAllowedKey(key string) bool {
	if key == "" {
		return false
	}

	if strings.Contains(key, "..") {
		return false
	}

	if strings.HasPrefix(key, "/") || filepath.IsAbs(key) {
		return false
	}

	return path.Clean(key) == key
}
