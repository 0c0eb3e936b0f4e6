package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// LocalStorage maps object keys onto files below a base directory.
type LocalStorage struct {
	fs     afero.Fs
	logger zerolog.Logger
}

func NewLocalStorage(dir string, logger zerolog.Logger) *LocalStorage {
	return NewFsStorage(afero.NewBasePathFs(afero.NewOsFs(), dir), logger)
}

// NewFsStorage wraps an arbitrary afero filesystem, e.g. afero.NewMemMapFs in tests.
func NewFsStorage(fsys afero.Fs, logger zerolog.Logger) *LocalStorage {
	return &LocalStorage{
		fs:     fsys,
		logger: logger,
	}
}

func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(key))
	if cleaned == "/" {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.FromSlash(cleaned), nil
}

func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, _ int64, _ string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a sibling and rename so readers never see a partial artifact.
	tmp := name + ".part"
	if err := afero.WriteReader(s.fs, tmp, data); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		return fmt.Errorf("failed to store object: %w", err)
	}

	s.logger.Debug().Str("key", key).Msg("Object written to local storage")
	return nil
}

func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	name, err := cleanKey(key)
	if err != nil {
		return false, err
	}

	info, err := s.fs.Stat(name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return !info.IsDir(), nil
}

func (s *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := afero.Walk(s.fs, string(os.PathSeparator), func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.HasSuffix(p, ".part") {
			return nil
		}

		key := strings.TrimPrefix(filepath.ToSlash(p), "/")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
