package repository_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/repository/file"
	"github.com/secmon-lab/ipasync/pkg/repository/gcs"
	"github.com/secmon-lab/ipasync/pkg/repository/memory"
)

func runDocumentStoreTest(t *testing.T, newStore func(t *testing.T) interfaces.DocumentStore) {
	t.Helper()

	uniqueKey := func(name string) string {
		return fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
	}

	t.Run("Get on missing key returns ErrDocumentNotFound", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Get(ctx, uniqueKey("missing"))
		gt.Error(t, err).Is(interfaces.ErrDocumentNotFound)
	})

	t.Run("Put then Get returns the document", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := uniqueKey("directory")

		gt.NoError(t, store.Put(ctx, key, []byte(`{"data":{}}`))).Required()

		data, err := store.Get(ctx, key)
		gt.NoError(t, err).Required()
		gt.Value(t, string(data)).Equal(`{"data":{}}`)
	})

	t.Run("Put replaces the whole document", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := uniqueKey("identity")

		gt.NoError(t, store.Put(ctx, key, []byte(`{"data":{"john.roe":{}}}`))).Required()
		gt.NoError(t, store.Put(ctx, key, []byte(`{"data":{}}`))).Required()

		data, err := store.Get(ctx, key)
		gt.NoError(t, err).Required()
		gt.Value(t, string(data)).Equal(`{"data":{}}`)
	})

	t.Run("Delete reports whether the document existed", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := uniqueKey("ledger")

		deleted, err := store.Delete(ctx, key)
		gt.NoError(t, err).Required()
		gt.Bool(t, deleted).False()

		gt.NoError(t, store.Put(ctx, key, []byte(`[]`))).Required()

		deleted, err = store.Delete(ctx, key)
		gt.NoError(t, err).Required()
		gt.Bool(t, deleted).True()

		_, err = store.Get(ctx, key)
		gt.Error(t, err).Is(interfaces.ErrDocumentNotFound)
	})

	t.Run("Get returns a copy", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := uniqueKey("history")

		gt.NoError(t, store.Put(ctx, key, []byte(`abc`))).Required()
		data, err := store.Get(ctx, key)
		gt.NoError(t, err).Required()
		data[0] = 'x'

		again, err := store.Get(ctx, key)
		gt.NoError(t, err).Required()
		gt.Value(t, string(again)).Equal("abc")
	})
}

func TestMemoryDocumentStore(t *testing.T) {
	runDocumentStoreTest(t, func(t *testing.T) interfaces.DocumentStore {
		return memory.New()
	})
}

func TestFileDocumentStore(t *testing.T) {
	runDocumentStoreTest(t, func(t *testing.T) interfaces.DocumentStore {
		store, err := file.New(t.TempDir())
		gt.NoError(t, err).Required()
		return store
	})
}

func TestFileDocumentStoreLayout(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "cache")

	store, err := file.New(dir, file.WithFileName("directory", "ad_users.json"))
	gt.NoError(t, err).Required()

	t.Run("creates the cache directory", func(t *testing.T) {
		info, err := os.Stat(dir)
		gt.NoError(t, err).Required()
		gt.Bool(t, info.IsDir()).True()
	})

	t.Run("uses the configured file name", func(t *testing.T) {
		gt.NoError(t, store.Put(ctx, "directory", []byte(`{}`))).Required()
		_, err := os.Stat(filepath.Join(dir, "ad_users.json"))
		gt.NoError(t, err)
		gt.Value(t, store.Path("identity")).Equal(filepath.Join(dir, "identity.json"))
	})

	t.Run("leaves no temporary files behind", func(t *testing.T) {
		gt.NoError(t, store.Put(ctx, "identity", []byte(`{}`))).Required()
		entries, err := os.ReadDir(dir)
		gt.NoError(t, err).Required()
		for _, e := range entries {
			gt.Bool(t, filepath.Ext(e.Name()) == ".tmp").False()
		}
	})
}

func newGCSDocumentStore(t *testing.T) interfaces.DocumentStore {
	t.Helper()

	bucket := os.Getenv("TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("TEST_GCS_BUCKET not set")
	}

	ctx := context.Background()
	store, err := gcs.New(ctx, bucket, gcs.WithPrefix(fmt.Sprintf("test/%d", time.Now().UnixNano())))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, store.Close())
	})
	return store
}

func TestGCSDocumentStore(t *testing.T) {
	runDocumentStoreTest(t, newGCSDocumentStore)
}
