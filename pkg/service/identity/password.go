package identity

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/utils/errutil"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

const (
	passwordLength  = 15
	passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#%&$?"

	// unsetExpirationDays is reported for accounts whose password was never set
	unsetExpirationDays = 365
)

// GeneratePassword returns a random temporary password
func GeneratePassword() (string, error) {
	limit := big.NewInt(int64(len(passwordCharset)))
	buf := make([]byte, passwordLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", goerr.Wrap(err, "failed to read random source")
		}
		buf[i] = passwordCharset[n.Int64()]
	}
	return string(buf), nil
}

// ResetPassword sets a new temporary password and returns it
func (a *Adapter) ResetPassword(ctx context.Context, id types.UserID) (string, bool) {
	logger := logging.From(ctx).With("user_id", id)

	if _, ok := a.FetchOne(ctx, id); !ok {
		logger.Error("user does not exist, password not changed")
		return "", false
	}

	password, err := a.passwords()
	if err != nil {
		errutil.Handle(ctx, err, "could not generate password")
		return "", false
	}

	if err := a.client.ModifyUser(ctx, id.String(), model.IdentityUserAttributes{Password: &password}); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to set password", goerr.V("user_id", id)),
			"password could not be changed")
		return "", false
	}

	// Password timestamps changed; drop the snapshot instead of reloading it
	if err := a.cache.Invalidate(ctx, types.CacheKindIdentity); err != nil {
		errutil.Handle(ctx, err, "failed to invalidate identity cache")
	}

	logger.Info("password reset")
	return password, true
}

// PasswordExpiration returns the days left until the password expires and
// the expiration date. A password that was never set reports 365 days.
func (a *Adapter) PasswordExpiration(ctx context.Context, id types.UserID) (int, time.Time, bool) {
	u, ok := a.FetchOne(ctx, id)
	if !ok {
		return 0, time.Time{}, false
	}

	now := a.now()
	today := civilDate(now)
	if u.PasswordExpiration.IsZero() {
		logging.From(ctx).Warn("password not set yet", "user_id", id)
		return unsetExpirationDays, today.AddDate(0, 0, unsetExpirationDays), true
	}

	// both dates are taken in the zone of the clock
	expiration := civilDate(u.PasswordExpiration.In(now.Location()))
	return DaysBetween(today, expiration), expiration, true
}

// DaysBetween returns the number of calendar days from one date to another
func DaysBetween(from, to time.Time) int {
	return int(civilDate(to).Sub(civilDate(from)).Hours() / 24)
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
