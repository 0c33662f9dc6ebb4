// Package media stores uploaded and generated images in object storage
// and records them in the media library.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/healthassoc/bayan/pkg/config"
)

// ErrInvalidKey is returned for object keys that are empty, absolute or
// escape the storage root.
var ErrInvalidKey = errors.New("invalid object key")

// ObjectStore writes public objects to a storage backend.
type ObjectStore interface {
	// Upload writes size bytes from r under key.
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// PublicURL returns the URL the object is served from.
	PublicURL(key string) string

	// Remove deletes the given keys. Missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
}

// NewObjectStore builds the backend selected by cfg.Backend.
func NewObjectStore(log logrus.FieldLogger, cfg *config.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case config.StorageBackendS3:
		return NewS3Store(log, &cfg.S3), nil
	case config.StorageBackendLocal, "":
		return NewLocalStore(log, &cfg.Local)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Backend)
	}
}
