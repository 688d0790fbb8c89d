package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

// AccountUseCase runs single-user administrative actions
type AccountUseCase struct {
	identity interfaces.IdentitySource
	notifier interfaces.Notifier
}

func NewAccountUseCase(identity interfaces.IdentitySource, notifier interfaces.Notifier) *AccountUseCase {
	return &AccountUseCase{
		identity: identity,
		notifier: notifier,
	}
}

func (uc *AccountUseCase) DisableUser(ctx context.Context, id types.UserID) types.Outcome {
	return uc.identity.Disable(ctx, id)
}

func (uc *AccountUseCase) EnableUser(ctx context.Context, id types.UserID) types.Outcome {
	return uc.identity.Enable(ctx, id)
}

// DeleteUser preserves the account unless permanent is set
func (uc *AccountUseCase) DeleteUser(ctx context.Context, id types.UserID, permanent bool) types.Outcome {
	return uc.identity.Delete(ctx, id, !permanent)
}

func (uc *AccountUseCase) DeleteOTPTokens(ctx context.Context, id types.UserID) bool {
	return uc.identity.DeleteOTPTokens(ctx, id)
}

// ResetUserPassword sets a new temporary password and mails it to the user.
// notified is false when the password was changed but the mail was not sent.
func (uc *AccountUseCase) ResetUserPassword(ctx context.Context, id types.UserID) (password string, notified bool, err error) {
	logger := logging.From(ctx).With(UserIDKey, id)

	if _, ok := uc.identity.FetchOne(ctx, id); !ok {
		return "", false, goerr.Wrap(ErrUserNotFound, "cannot reset password", goerr.V(UserIDKey, id))
	}

	password, ok := uc.identity.ResetPassword(ctx, id)
	if !ok {
		return "", false, goerr.Wrap(ErrPasswordNotChanged, "failed to reset password", goerr.V(UserIDKey, id))
	}

	user, ok := uc.identity.FetchOne(ctx, id)
	if !ok {
		logger.Warn("user disappeared after password reset, notice not sent")
		return password, false, nil
	}

	logger.Debug("sending password reset notice")
	notified = uc.notifier.NotifyPasswordReset(ctx, id, user, password)
	return password, notified, nil
}
