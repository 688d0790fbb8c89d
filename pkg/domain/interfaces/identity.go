package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
)

// IdentityClient is a session with the identity system's remote API. Remote
// failures are categorised with the sentinel errors of the client package.
type IdentityClient interface {
	FindUsers(ctx context.Context, query model.IdentityUserQuery) ([]*model.IdentityUser, error)
	AddUser(ctx context.Context, uid string, attrs model.IdentityUserAttributes) (*model.IdentityUser, error)
	ModifyUser(ctx context.Context, uid string, attrs model.IdentityUserAttributes) error
	AddPrincipal(ctx context.Context, uid, principal string) error
	DisableUser(ctx context.Context, uid string) error
	EnableUser(ctx context.Context, uid string) error
	DeleteUser(ctx context.Context, uid string, preserve bool) error
	AddGroupMember(ctx context.Context, group, uid string) error
	RemoveGroupMember(ctx context.Context, group, uid string) error
	FindOTPTokens(ctx context.Context, owner string) ([]*model.OTPToken, error)
	DeleteOTPToken(ctx context.Context, uniqueID string) error
}

// IdentitySource serves identity users and applies lifecycle mutations
type IdentitySource interface {
	FetchAll(ctx context.Context, force bool) (model.UserSnapshot, bool)
	FetchOne(ctx context.Context, id types.UserID) (*model.UserRecord, bool)
	Groups() []string

	Create(ctx context.Context, user *model.NewUser) (*model.UserRecord, string, types.Outcome)
	Update(ctx context.Context, id types.UserID, update *model.UserUpdate, refresh bool) types.Outcome
	Disable(ctx context.Context, id types.UserID) types.Outcome
	Enable(ctx context.Context, id types.UserID) types.Outcome
	Delete(ctx context.Context, id types.UserID, preserve bool) types.Outcome
	ResetPassword(ctx context.Context, id types.UserID) (string, bool)
	DeleteOTPTokens(ctx context.Context, id types.UserID) bool
	PasswordExpiration(ctx context.Context, id types.UserID) (int, time.Time, bool)
	AdminMailboxes(ctx context.Context) []string
}
