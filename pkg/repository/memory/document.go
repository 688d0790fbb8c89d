package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
)

// DocumentStore keeps cache documents in process memory. It backs tests and
// dry runs where nothing should touch the disk.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

var _ interfaces.DocumentStore = &DocumentStore{}

func New() *DocumentStore {
	return &DocumentStore{
		docs: make(map[string][]byte),
	}
}

func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[key]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrDocumentNotFound, "document not in memory", goerr.V("key", key))
	}

	// Return a copy to prevent external modifications
	return slices.Clone(data), nil
}

func (s *DocumentStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[key] = slices.Clone(data)
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[key]; !ok {
		return false, nil
	}
	delete(s.docs, key)
	return true, nil
}

func (s *DocumentStore) Close() error {
	return nil
}
