package config

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/repository/file"
	"github.com/secmon-lab/ipasync/pkg/repository/gcs"
	"github.com/secmon-lab/ipasync/pkg/repository/memory"
	"github.com/secmon-lab/ipasync/pkg/service/cache"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

// Cache backends
const (
	BackendFile   = "file"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Cache selects where cache documents are kept and for how long snapshots
// stay valid
type Cache struct {
	Backend         string            `toml:"backend"`
	Dir             string            `toml:"dir"`
	Bucket          string            `toml:"bucket"`
	Prefix          string            `toml:"prefix"`
	ValidityMinutes int               `toml:"validity_minutes"`
	Files           map[string]string `toml:"files"`
}

// Validate checks if the Cache section is valid
func (c *Cache) Validate() error {
	switch c.Backend {
	case BackendFile:
		if c.Dir == "" {
			return goerr.Wrap(ErrMissingField, "cache dir is required for the file backend", goerr.V(FieldKey, "dir"))
		}
	case BackendGCS:
		if c.Bucket == "" {
			return goerr.Wrap(ErrMissingField, "cache bucket is required for the gcs backend", goerr.V(FieldKey, "bucket"))
		}
	case BackendMemory:
	default:
		return goerr.Wrap(ErrInvalidBackend, "unknown cache backend", goerr.V("backend", c.Backend))
	}

	if c.ValidityMinutes < 0 {
		return goerr.Wrap(ErrInvalidConfig, "validity_minutes must not be negative", goerr.V("validity_minutes", c.ValidityMinutes))
	}
	for key := range c.Files {
		if _, err := types.ParseCacheKind(key); err != nil {
			return goerr.Wrap(ErrInvalidConfig, "unknown cache file key", goerr.V("key", key))
		}
	}
	return nil
}

// Validity returns the snapshot lifetime
func (c *Cache) Validity() time.Duration {
	return time.Duration(c.ValidityMinutes) * time.Minute
}

// Configure opens the document store of the configured backend. The caller is
// responsible for calling Close() on it.
func (c *Cache) Configure(ctx context.Context) (interfaces.DocumentStore, error) {
	switch c.Backend {
	case BackendFile:
		var opts []file.Option
		for key, name := range c.Files {
			opts = append(opts, file.WithFileName(key, name))
		}
		store, err := file.New(c.Dir, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize file cache")
		}
		logging.Default().Info("Using file cache", "dir", c.Dir)
		return store, nil

	case BackendGCS:
		store, err := gcs.New(ctx, c.Bucket, gcs.WithPrefix(c.Prefix))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize cloud storage cache")
		}
		logging.Default().Info("Using cloud storage cache", "bucket", c.Bucket, "prefix", c.Prefix)
		return store, nil

	case BackendMemory:
		logging.Default().Info("Using in-memory cache (nothing is persisted)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidBackend, "unknown cache backend", goerr.V("backend", c.Backend))
	}
}

// Store wraps docs into the cache store with the configured validity
func (c *Cache) Store(docs interfaces.DocumentStore) *cache.Store {
	return cache.New(docs, cache.WithValidity(c.Validity()))
}
