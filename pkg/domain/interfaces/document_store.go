package interfaces

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// ErrDocumentNotFound is returned by DocumentStore.Get for a missing key
var ErrDocumentNotFound = goerr.New("document not found")

// DocumentStore persists opaque JSON documents by key. Put replaces the whole
// document or leaves the previous one in place.
type DocumentStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	// Delete removes key and reports whether it existed
	Delete(ctx context.Context, key string) (bool, error)
	Close() error
}
