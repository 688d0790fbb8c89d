package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/service/cache"
	"github.com/secmon-lab/ipasync/pkg/utils/errutil"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

// DefaultPasswordPolicy reminds users once, 359 days before expiration, and
// disables them six days after it.
func DefaultPasswordPolicy() model.PasswordPolicy {
	return model.PasswordPolicy{
		GraciousPeriod:   6,
		NotificationDays: []int{359},
	}
}

// ExpirationResult lists the users affected by one expiration pass
type ExpirationResult struct {
	// Notified received a reminder in this pass
	Notified []types.UserID
	// WithinGrace have an expired password and are still enabled
	WithinGrace []types.UserID
	// BeyondGrace have been expired for longer than the gracious period
	BeyondGrace []types.UserID
	// Disabled were disabled in this pass
	Disabled []types.UserID
}

// IsEmpty reports whether nobody was affected
func (r *ExpirationResult) IsEmpty() bool {
	return len(r.Notified) == 0 && len(r.WithinGrace) == 0 && len(r.BeyondGrace) == 0 && len(r.Disabled) == 0
}

// ExpiredUser is a user whose password expired Days days ago
type ExpiredUser struct {
	ID   types.UserID
	Days int
}

// PasswordUseCase drives the password lifecycle policy
type PasswordUseCase struct {
	identity interfaces.IdentitySource
	notifier interfaces.Notifier
	cache    *cache.Store
	policy   model.PasswordPolicy
}

func NewPasswordUseCase(identity interfaces.IdentitySource, notifier interfaces.Notifier, store *cache.Store, policy model.PasswordPolicy) *PasswordUseCase {
	return &PasswordUseCase{
		identity: identity,
		notifier: notifier,
		cache:    store,
		policy:   policy,
	}
}

// Policy returns the configured policy
func (uc *PasswordUseCase) Policy() model.PasswordPolicy {
	return uc.policy
}

// ProcessPasswordExpirations classifies every identity user, sends due
// reminders, disables users beyond the gracious period and reports expired
// users to the administrators. Reminders and disables are recorded so that
// a repeated pass does not act on the same user twice.
func (uc *PasswordUseCase) ProcessPasswordExpirations(ctx context.Context) (*ExpirationResult, error) {
	logger := logging.From(ctx)
	logger.Info("processing password expirations")

	users, ok := uc.identity.FetchAll(ctx, false)
	if !ok {
		return nil, goerr.Wrap(ErrIdentityUnavailable, "failed to list identity users")
	}

	history := uc.cache.NotificationHistory(ctx)
	ledger := uc.cache.DisabledLedger(ctx)
	historyChanged, ledgerChanged := false, false

	result := &ExpirationResult{}
	for _, id := range users.IDs() {
		user := users[id]
		delta, expiration, ok := uc.identity.PasswordExpiration(ctx, id)
		if !ok {
			continue
		}

		switch uc.policy.Classify(delta) {
		case types.PasswordStateExpiring:
			if !uc.policy.ShouldNotify(delta, history[id]) {
				continue
			}
			logger.Debug("notifying user about upcoming expiration", UserIDKey, id, "days_left", delta)
			if !uc.notifier.NotifyExpiration(ctx, id, user, delta, expiration) {
				logger.Warn("expiration notice was not sent", UserIDKey, id)
				continue
			}
			result.Notified = append(result.Notified, id)
			if history.Record(id, delta) {
				historyChanged = true
			}

		case types.PasswordStateExpiredWithinGrace:
			logger.Debug("password expired within gracious period", UserIDKey, id, "days", -delta)
			result.WithinGrace = append(result.WithinGrace, id)

		case types.PasswordStateExpiredBeyondGrace:
			result.BeyondGrace = append(result.BeyondGrace, id)
			if ledger.Has(id) {
				continue
			}

			switch outcome := uc.identity.Disable(ctx, id); outcome {
			case types.OutcomeSuccess, types.OutcomeUnchanged:
				logger.Warn("password expired beyond gracious period, user disabled", UserIDKey, id, "days", -delta)
				result.Disabled = append(result.Disabled, id)
				if ledger.Add(id) {
					ledgerChanged = true
				}
			default:
				logger.Error("user with expired password could not be disabled", UserIDKey, id, "outcome", outcome)
			}
		}
	}

	batch := cache.Batch{}
	if historyChanged {
		batch.NotificationHistory = history
	}
	if ledgerChanged {
		batch.DisabledLedger = ledger
	}
	if historyChanged || ledgerChanged {
		if err := uc.cache.Save(ctx, batch); err != nil {
			errutil.Handle(ctx, goerr.Wrap(err, "failed to save password lifecycle state"),
				"password lifecycle state could not be saved")
		}
	}

	if len(result.WithinGrace) > 0 || len(result.Disabled) > 0 {
		logger.Info("notifying administrators of password expirations")
		if !uc.notifier.ReportExpirations(ctx, uc.identity.AdminMailboxes(ctx), result.WithinGrace, result.Disabled) {
			logger.Warn("expiration report was not sent")
		}
	}

	if result.IsEmpty() {
		logger.Info("no upcoming password expirations or expired users")
	}
	return result, nil
}

// ListExpiredUsers returns users whose own password has expired, split by
// the gracious period. Users still on a temporary password are not listed.
func (uc *PasswordUseCase) ListExpiredUsers(ctx context.Context) (withinGrace, beyondGrace []ExpiredUser, err error) {
	users, ok := uc.identity.FetchAll(ctx, false)
	if !ok {
		return nil, nil, goerr.Wrap(ErrIdentityUnavailable, "failed to list identity users")
	}

	for _, id := range users.IDs() {
		if users[id].PasswordNeverChanged() {
			continue
		}
		delta, _, ok := uc.identity.PasswordExpiration(ctx, id)
		if !ok {
			continue
		}

		switch uc.policy.Classify(delta) {
		case types.PasswordStateExpiredWithinGrace:
			withinGrace = append(withinGrace, ExpiredUser{ID: id, Days: -delta})
		case types.PasswordStateExpiredBeyondGrace:
			beyondGrace = append(beyondGrace, ExpiredUser{ID: id, Days: -delta})
		}
	}
	return withinGrace, beyondGrace, nil
}

// UsersNoPassword returns users that never replaced their temporary password
func (uc *PasswordUseCase) UsersNoPassword(ctx context.Context) ([]types.UserID, error) {
	users, ok := uc.identity.FetchAll(ctx, false)
	if !ok {
		return nil, goerr.Wrap(ErrIdentityUnavailable, "failed to list identity users")
	}

	var ids []types.UserID
	for _, id := range users.IDs() {
		if users[id].PasswordNeverChanged() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// RemindPasswordChange mails every user still on a temporary password and
// returns them.
func (uc *PasswordUseCase) RemindPasswordChange(ctx context.Context) ([]types.UserID, error) {
	logger := logging.From(ctx)
	logger.Info("processing password change reminders")

	ids, err := uc.UsersNoPassword(ctx)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		user, ok := uc.identity.FetchOne(ctx, id)
		if !ok {
			continue
		}
		if !uc.notifier.RemindPasswordReset(ctx, id, user) {
			logger.Warn("password change reminder was not sent", UserIDKey, id)
		}
	}

	if len(ids) == 0 {
		logger.Debug("no users to remind at this time")
	}
	return ids, nil
}
