// Package storage keeps backup and export artifacts in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/tiza/library-service/internal/config"
)

var ErrNotFound = errors.New("object not found")

type Storage interface {
	Put(ctx context.Context, key string, data io.Reader, size int64, contentType string) error
	// Get returns ErrNotFound when no object is stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	// List returns every key starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

func New(cfg config.StorageConfig, logger zerolog.Logger) (Storage, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocalStorage(cfg.LocalDir, logger), nil
	case "minio":
		return NewMinIOStorage(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}
