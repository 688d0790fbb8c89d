package interfaces

import (
	"context"

	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
)

// DirectoryClient is a bound connection to the corporate directory
type DirectoryClient interface {
	Search(ctx context.Context, req *model.DirectorySearch) (*model.DirectoryPage, error)
	Close() error
}

// DirectorySource serves normalized directory users
type DirectorySource interface {
	FetchAll(ctx context.Context, force bool) (model.UserSnapshot, bool)
	FetchOne(ctx context.Context, id types.UserID) (*model.UserRecord, bool)
}
