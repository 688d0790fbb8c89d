package interfaces

import (
	"context"

	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
)

// UserCache is the part of the cache store the source adapters depend on
type UserCache interface {
	// Users returns a snapshot that is present and within the validity window
	Users(ctx context.Context, kind types.CacheKind) (model.UserSnapshot, bool)
	// UserByID returns one user of a valid snapshot; warm is false on a miss
	UserByID(ctx context.Context, kind types.CacheKind, id types.UserID) (user *model.UserRecord, warm bool)
	PutUsers(ctx context.Context, kind types.CacheKind, users model.UserSnapshot) error
	Invalidate(ctx context.Context, kind types.CacheKind) error
}
