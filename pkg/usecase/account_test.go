package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/usecase"
)

func TestAccountUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("disable twice leaves the same state", func(t *testing.T) {
		env := setup(t)
		putIdentityUser(env.ipa, "jane.doe", "corp.example", "engineering")

		gt.Value(t, env.uc.Account.DisableUser(ctx, "jane.doe")).Equal(types.OutcomeSuccess)
		gt.Value(t, env.uc.Account.DisableUser(ctx, "jane.doe")).Equal(types.OutcomeUnchanged)

		stored, _ := env.ipa.User("jane.doe")
		gt.Bool(t, stored.Disabled).True()

		gt.Value(t, env.uc.Account.EnableUser(ctx, "jane.doe")).Equal(types.OutcomeSuccess)
		stored, _ = env.ipa.User("jane.doe")
		gt.Bool(t, stored.Disabled).False()
	})

	t.Run("delete preserves unless permanent", func(t *testing.T) {
		env := setup(t)
		putIdentityUser(env.ipa, "jane.doe", "corp.example", "engineering")
		putIdentityUser(env.ipa, "john.roe", "corp.example", "sales")

		gt.Value(t, env.uc.Account.DeleteUser(ctx, "jane.doe", false)).Equal(types.OutcomeSuccess)
		stored, ok := env.ipa.User("jane.doe")
		gt.Bool(t, ok).True()
		gt.Bool(t, stored.Preserved).True()

		gt.Value(t, env.uc.Account.DeleteUser(ctx, "john.roe", true)).Equal(types.OutcomeSuccess)
		_, ok = env.ipa.User("john.roe")
		gt.Bool(t, ok).False()
	})

	t.Run("OTP tokens are removed", func(t *testing.T) {
		env := setup(t)
		putIdentityUser(env.ipa, "jane.doe", "corp.example", "engineering")
		env.ipa.AddToken("jane.doe", "token-1", "token-2")

		gt.Bool(t, env.uc.Account.DeleteOTPTokens(ctx, "jane.doe")).True()
		gt.Array(t, env.ipa.Tokens("jane.doe")).Length(0)
	})

	t.Run("reset password mails the new password", func(t *testing.T) {
		env := setup(t)
		putIdentityUser(env.ipa, "jane.doe", "corp.example", "engineering")

		password, notified, err := env.uc.Account.ResetUserPassword(ctx, "jane.doe")
		gt.NoError(t, err).Required()
		gt.Value(t, password).Equal(tempPassword)
		gt.Bool(t, notified).True()
		gt.Value(t, env.notifier.resets["jane.doe"]).Equal(tempPassword)

		ids, err := env.uc.Password.UsersNoPassword(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, ids).Equal([]types.UserID{"jane.doe"})
	})

	t.Run("reset password of an unknown user fails", func(t *testing.T) {
		env := setup(t)

		_, notified, err := env.uc.Account.ResetUserPassword(ctx, "nobody.here")
		gt.Error(t, err).Is(usecase.ErrUserNotFound)
		gt.Bool(t, notified).False()
		gt.Value(t, len(env.notifier.resets)).Equal(0)
	})

	t.Run("reset password reports an undelivered notice", func(t *testing.T) {
		env := setup(t)
		putIdentityUser(env.ipa, "jane.doe", "corp.example", "engineering")
		env.notifier.fail = true

		password, notified, err := env.uc.Account.ResetUserPassword(ctx, "jane.doe")
		gt.NoError(t, err).Required()
		gt.Value(t, password).Equal(tempPassword)
		gt.Bool(t, notified).False()
	})
}
