package gcs

import (
	"context"
	"errors"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/utils/safe"
)

// DocumentStore keeps cache documents as objects in a Cloud Storage bucket so
// that scheduled runs on ephemeral hosts share one cache. A single object
// upload is atomic: readers see the previous generation until the writer
// closes successfully.
type DocumentStore struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.DocumentStore = &DocumentStore{}

type Option func(*DocumentStore)

// WithPrefix places every object under prefix
func WithPrefix(prefix string) Option {
	return func(s *DocumentStore) {
		s.prefix = prefix
	}
}

func New(ctx context.Context, bucket string, opts ...Option) (*DocumentStore, error) {
	if bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create cloud storage client", goerr.V("bucket", bucket))
	}

	s := &DocumentStore{
		client: client,
		bucket: bucket,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *DocumentStore) objectName(key string) string {
	return path.Join(s.prefix, key+".json")
}

func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	name := s.objectName(key)

	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, goerr.Wrap(interfaces.ErrDocumentNotFound, "cache object does not exist",
			goerr.V("bucket", s.bucket), goerr.V("object", name))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open cache object",
			goerr.V("bucket", s.bucket), goerr.V("object", name))
	}
	defer safe.Close(ctx, r)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read cache object",
			goerr.V("bucket", s.bucket), goerr.V("object", name))
	}
	return data, nil
}

func (s *DocumentStore) Put(ctx context.Context, key string, data []byte) error {
	name := s.objectName(key)

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write cache object",
			goerr.V("bucket", s.bucket), goerr.V("object", name))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to commit cache object",
			goerr.V("bucket", s.bucket), goerr.V("object", name))
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, key string) (bool, error) {
	name := s.objectName(key)

	err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete cache object",
			goerr.V("bucket", s.bucket), goerr.V("object", name))
	}
	return true, nil
}

func (s *DocumentStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
