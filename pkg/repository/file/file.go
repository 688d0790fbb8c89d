package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

// DocumentStore keeps each document in its own JSON file under a directory.
// Writes go to a temporary file in the same directory and are renamed into
// place, so a reader sees either the old or the new document.
type DocumentStore struct {
	dir   string
	names map[string]string
}

var _ interfaces.DocumentStore = &DocumentStore{}

type Option func(*DocumentStore)

// WithFileName maps a document key to a file name. Keys without a mapping are
// stored as "<key>.json".
func WithFileName(key, name string) Option {
	return func(s *DocumentStore) {
		s.names[key] = name
	}
}

// New creates the directory when it does not exist yet
func New(dir string, opts ...Option) (*DocumentStore, error) {
	if dir == "" {
		return nil, goerr.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, goerr.Wrap(err, "failed to create cache directory", goerr.V("dir", dir))
	}

	s := &DocumentStore{
		dir:   dir,
		names: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the file backing key
func (s *DocumentStore) Path(key string) string {
	name, ok := s.names[key]
	if !ok {
		name = key + ".json"
	}
	return filepath.Join(s.dir, name)
}

func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	path := s.Path(key)

	// #nosec G304 - path is built from configured cache directory
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, goerr.Wrap(interfaces.ErrDocumentNotFound, "cache file does not exist", goerr.V("path", path))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read cache file", goerr.V("path", path))
	}
	return data, nil
}

func (s *DocumentStore) Put(ctx context.Context, key string, data []byte) error {
	path := s.Path(key)

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary cache file", goerr.V("path", path))
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.From(ctx).Warn("failed to remove temporary cache file", "path", tmpPath, "error", err)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return goerr.Wrap(err, "failed to write cache file", goerr.V("path", path))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return goerr.Wrap(err, "failed to sync cache file", goerr.V("path", path))
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return goerr.Wrap(err, "failed to close cache file", goerr.V("path", path))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return goerr.Wrap(err, "failed to replace cache file", goerr.V("path", path))
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, key string) (bool, error) {
	path := s.Path(key)

	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete cache file", goerr.V("path", path))
	}
	return true, nil
}

func (s *DocumentStore) Close() error {
	return nil
}
