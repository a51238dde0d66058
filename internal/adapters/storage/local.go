// Package storage provides object storage adapters for source files and
// exported layers.
package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/ports/output"
)

// LocalStorage implements ObjectStorage for a local directory.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage adapter.
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

// List returns all source files below the base directory. The ETag is
// derived from size and modification time.
func (s *LocalStorage) List(_ context.Context) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !domain.IsSourceFile(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}

		objects = append(objects, output.StorageObject{
			Key:          filepath.ToSlash(relPath),
			Size:         info.Size(),
			LastModified: info.ModTime().Unix(),
			ETag:         strconv.FormatInt(info.Size(), 16) + "-" + strconv.FormatInt(info.ModTime().UnixNano(), 16),
		})
		return nil
	})
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}

	return objects, nil
}

// GetReader returns a reader for the given object.
func (s *LocalStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.FullPath(key)) //#nosec G304 -- key is resolved below the base path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = domain.ErrObjectNotFound
		}
		return nil, &domain.StorageError{Operation: "get", Key: key, Err: err}
	}
	return f, nil
}

// Put writes the object, creating parent directories.
func (s *LocalStorage) Put(_ context.Context, key string, data []byte) error {
	dest := s.FullPath(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	return nil
}

// Exists checks if a file exists.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.FullPath(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, &domain.StorageError{Operation: "stat", Key: key, Err: err}
}

// FullPath returns the full path for a key. Keys cannot escape the base
// directory.
func (s *LocalStorage) FullPath(key string) string {
	return filepath.Join(s.basePath, filepath.Clean("/"+filepath.FromSlash(key)))
}
