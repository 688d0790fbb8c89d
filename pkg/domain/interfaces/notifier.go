package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
)

// Notifier delivers user notices and admin reports. Each method reports
// whether delivery succeeded; failures are logged by the implementation.
type Notifier interface {
	NotifyExpiration(ctx context.Context, id types.UserID, user *model.UserRecord, daysLeft int, expiration time.Time) bool
	NotifyNewAccount(ctx context.Context, id types.UserID, user *model.UserRecord, password string) bool
	NotifyPasswordReset(ctx context.Context, id types.UserID, user *model.UserRecord, password string) bool
	RemindPasswordReset(ctx context.Context, id types.UserID, user *model.UserRecord) bool

	ReportDirectoryUpdates(ctx context.Context, admins []string, updated []types.UserID) bool
	ReportExpirations(ctx context.Context, admins []string, expired, disabled []types.UserID) bool
	ReportTerminated(ctx context.Context, admins []string, deleted, notDeleted []types.UserID) bool
}
