package usecase

import (
	"context"
	"time"

	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/service/cache"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

// CacheStatus describes one user snapshot
type CacheStatus struct {
	Kind     types.CacheKind
	Valid    bool
	LoadedAt time.Time
}

// CacheUseCase maintains the cached user snapshots
type CacheUseCase struct {
	directory interfaces.DirectorySource
	identity  interfaces.IdentitySource
	cache     *cache.Store
}

func NewCacheUseCase(directory interfaces.DirectorySource, identity interfaces.IdentitySource, store *cache.Store) *CacheUseCase {
	return &CacheUseCase{
		directory: directory,
		identity:  identity,
		cache:     store,
	}
}

// UpdateDirectory reloads the directory snapshot
func (uc *CacheUseCase) UpdateDirectory(ctx context.Context) bool {
	_, ok := uc.directory.FetchAll(ctx, true)
	return ok
}

// UpdateIdentity reloads the identity snapshot
func (uc *CacheUseCase) UpdateIdentity(ctx context.Context) bool {
	_, ok := uc.identity.FetchAll(ctx, true)
	return ok
}

// UpdateAll reloads both snapshots. A failure of one does not stop the other.
func (uc *CacheUseCase) UpdateAll(ctx context.Context) (directoryOK, identityOK bool) {
	directoryOK = uc.UpdateDirectory(ctx)
	identityOK = uc.UpdateIdentity(ctx)
	return directoryOK, identityOK
}

// Status reports the state of every time-bounded snapshot
func (uc *CacheUseCase) Status(ctx context.Context) []CacheStatus {
	var statuses []CacheStatus
	for _, kind := range types.TimeBoundedCacheKinds() {
		loadedAt, ok := uc.cache.LoadedAt(ctx, kind)
		statuses = append(statuses, CacheStatus{Kind: kind, Valid: ok, LoadedAt: loadedAt})
	}
	return statuses
}

// IsStale reports whether a snapshot is missing or expired
func (uc *CacheUseCase) IsStale(ctx context.Context) bool {
	return uc.cache.IsStale(ctx)
}

// Delete removes the documents of kinds, by default both user snapshots, and
// reports whether any existed.
func (uc *CacheUseCase) Delete(ctx context.Context, kinds ...types.CacheKind) (bool, error) {
	existed, err := uc.cache.Clear(ctx, kinds...)
	if err != nil {
		return existed, err
	}
	if !existed {
		logging.From(ctx).Info("no cache documents to delete")
	}
	return existed, nil
}
