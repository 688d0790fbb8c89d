package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
)

func TestCacheUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("update fills both snapshots", func(t *testing.T) {
		env := setup(t)
		putIdentityUser(env.ipa, "jane.doe", "corp.example", "engineering")
		env.dir.SetEntries(dirPerson("jane.doe"))

		gt.Bool(t, env.uc.Cache.IsStale(ctx)).True()

		directoryOK, identityOK := env.uc.Cache.UpdateAll(ctx)
		gt.Bool(t, directoryOK).True()
		gt.Bool(t, identityOK).True()
		gt.Bool(t, env.uc.Cache.IsStale(ctx)).False()

		for _, status := range env.uc.Cache.Status(ctx) {
			gt.Bool(t, status.Valid).True()
			gt.Value(t, status.LoadedAt).Equal(today)
		}
	})

	t.Run("a failing source does not stop the other", func(t *testing.T) {
		env := setup(t)
		putIdentityUser(env.ipa, "jane.doe", "corp.example", "engineering")
		env.dir.FailOnPage(-1)

		directoryOK, identityOK := env.uc.Cache.UpdateAll(ctx)
		gt.Bool(t, directoryOK).False()
		gt.Bool(t, identityOK).True()
		gt.Bool(t, env.uc.Cache.IsStale(ctx)).True()
	})

	t.Run("delete clears the snapshots", func(t *testing.T) {
		env := setup(t)
		putIdentityUser(env.ipa, "jane.doe", "corp.example", "engineering")
		env.dir.SetEntries(dirPerson("jane.doe"))
		env.uc.Cache.UpdateAll(ctx)

		existed, err := env.uc.Cache.Delete(ctx)
		gt.NoError(t, err).Required()
		gt.Bool(t, existed).True()
		gt.Bool(t, env.uc.Cache.IsStale(ctx)).True()

		existed, err = env.uc.Cache.Delete(ctx, types.CacheKindDirectory)
		gt.NoError(t, err).Required()
		gt.Bool(t, existed).False()
	})
}
