package usecase

import (
	"context"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

// SyncConfig controls which users and fields follow the directory
type SyncConfig struct {
	// IgnoreFields never take part in a diff
	IgnoreFields []types.UserField
	// SyncDomains are the email domains the directory is authoritative for
	SyncDomains []string
}

// SyncUseCase reconciles identity accounts against the directory
type SyncUseCase struct {
	directory interfaces.DirectorySource
	identity  interfaces.IdentitySource
	notifier  interfaces.Notifier
	ignore    []types.UserField
	domains   []string
}

func NewSyncUseCase(directory interfaces.DirectorySource, identity interfaces.IdentitySource, notifier interfaces.Notifier, cfg SyncConfig) *SyncUseCase {
	uc := &SyncUseCase{
		directory: directory,
		identity:  identity,
		notifier:  notifier,
		ignore:    slices.Clone(cfg.IgnoreFields),
	}
	for _, d := range cfg.SyncDomains {
		uc.domains = append(uc.domains, strings.ToLower(strings.TrimSpace(d)))
	}
	return uc
}

// IsSynchronizable reports whether the directory is authoritative for user
func (uc *SyncUseCase) IsSynchronizable(user *model.UserRecord) bool {
	if user == nil {
		return false
	}
	return slices.Contains(uc.domains, user.EmailDomain())
}

// Diff returns the directory values that differ from the identity record of
// id. An empty diff means the records agree or one of them is missing.
func (uc *SyncUseCase) Diff(ctx context.Context, id types.UserID) model.UserDiff {
	logger := logging.From(ctx).With(UserIDKey, id)

	current, ok := uc.identity.FetchOne(ctx, id)
	if !ok {
		logger.Warn("no identity record to compare")
		return model.UserDiff{}
	}
	source, ok := uc.directory.FetchOne(ctx, id)
	if !ok {
		logger.Warn("no directory record to compare")
		return model.UserDiff{}
	}

	exists := func(manager types.UserID) bool {
		_, found := uc.identity.FetchOne(ctx, manager)
		return found
	}
	return uc.diff(ctx, id, current, source, exists)
}

func (uc *SyncUseCase) diff(ctx context.Context, id types.UserID, current, source *model.UserRecord, managerExists func(types.UserID) bool) model.UserDiff {
	logger := logging.From(ctx).With(UserIDKey, id)

	diff := model.UserDiff{}
	for _, field := range types.ComparableUserFields() {
		if slices.Contains(uc.ignore, field) {
			continue
		}

		want := source.Get(field)
		if want == current.Get(field) {
			continue
		}

		// A manager only follows the directory when it has an account too
		if field == types.UserFieldManager && !managerExists(types.NewUserID(want)) {
			logger.Warn("manager from directory does not exist in identity system", "manager", want)
			continue
		}

		logger.Debug("field differs from directory", "field", field, "value", want)
		diff[field] = want
	}
	return diff
}

// TerminatedUsers returns identity users in a sync domain that are absent
// from the directory.
func (uc *SyncUseCase) TerminatedUsers(ctx context.Context) ([]types.UserID, error) {
	logger := logging.From(ctx)

	identityUsers, directoryUsers, err := uc.snapshots(ctx)
	if err != nil {
		return nil, err
	}

	var terminated []types.UserID
	for _, id := range identityUsers.IDs() {
		if directoryUsers.Has(id) || !uc.IsSynchronizable(identityUsers[id]) {
			continue
		}
		logger.Debug("user has been terminated", UserIDKey, id)
		terminated = append(terminated, id)
	}

	if len(terminated) == 0 {
		logger.Debug("no terminated users found")
	}
	return terminated, nil
}

// SyncFromDirectory applies the directory diff of every synchronizable user.
// Users without differences are not contacted. The identity snapshot is left
// as is; UpdateFromDirectory refreshes it.
func (uc *SyncUseCase) SyncFromDirectory(ctx context.Context) (updated, failed []types.UserID, err error) {
	logger := logging.From(ctx)

	identityUsers, directoryUsers, err := uc.snapshots(ctx)
	if err != nil {
		return nil, nil, err
	}

	exists := func(manager types.UserID) bool {
		return identityUsers.Has(manager)
	}

	for _, id := range identityUsers.IDs() {
		current := identityUsers[id]
		if !uc.IsSynchronizable(current) {
			continue
		}
		source, ok := directoryUsers[id]
		if !ok {
			continue
		}

		diff := uc.diff(ctx, id, current, source, exists)
		if len(diff) == 0 {
			continue
		}

		switch outcome := uc.identity.Update(ctx, id, &model.UserUpdate{Fields: diff}, false); outcome {
		case types.OutcomeSuccess:
			logger.Debug("user updated from directory", UserIDKey, id, "fields", diff.Fields())
			updated = append(updated, id)
		case types.OutcomeUnchanged:
			logger.Debug("user already up to date", UserIDKey, id)
		default:
			logger.Warn("user could not be updated from directory", UserIDKey, id, "outcome", outcome)
			failed = append(failed, id)
		}
	}

	return updated, failed, nil
}

// UpdateFromDirectory synchronizes every user, reports the updated ones to
// the administrators and reloads the identity snapshot.
func (uc *SyncUseCase) UpdateFromDirectory(ctx context.Context) (updated, failed []types.UserID, err error) {
	logger := logging.From(ctx)
	logger.Info("starting user data synchronization from directory")

	updated, failed, err = uc.SyncFromDirectory(ctx)
	if err != nil {
		return nil, nil, err
	}

	if len(updated) == 0 && len(failed) == 0 {
		logger.Info("no data to synchronize from directory")
		return updated, failed, nil
	}

	if len(updated) > 0 {
		if !uc.notifier.ReportDirectoryUpdates(ctx, uc.identity.AdminMailboxes(ctx), updated) {
			logger.Warn("directory update report was not sent")
		}
	}

	if _, ok := uc.identity.FetchAll(ctx, true); !ok {
		logger.Warn("identity cache could not be refreshed after synchronization")
	}

	logger.Info("data synchronization from directory completed", "updated", len(updated), "failed", len(failed))
	return updated, failed, nil
}

// DeleteTerminatedUsers soft-deletes every terminated user
func (uc *SyncUseCase) DeleteTerminatedUsers(ctx context.Context) (deleted, notDeleted []types.UserID, err error) {
	logger := logging.From(ctx)

	terminated, err := uc.TerminatedUsers(ctx)
	if err != nil {
		return nil, nil, err
	}

	for _, id := range terminated {
		if outcome := uc.identity.Delete(ctx, id, true); outcome.OK() {
			logger.Info("terminated user deleted", UserIDKey, id)
			deleted = append(deleted, id)
		} else {
			logger.Warn("terminated user not deleted", UserIDKey, id, "outcome", outcome)
			notDeleted = append(notDeleted, id)
		}
	}

	return deleted, notDeleted, nil
}

// ProcessTerminatedUsers deletes terminated users and reports them to the
// administrators when there were any.
func (uc *SyncUseCase) ProcessTerminatedUsers(ctx context.Context) (deleted, notDeleted []types.UserID, err error) {
	logger := logging.From(ctx)
	logger.Info("checking for terminated users")

	deleted, notDeleted, err = uc.DeleteTerminatedUsers(ctx)
	if err != nil {
		return nil, nil, err
	}

	if len(deleted) == 0 && len(notDeleted) == 0 {
		logger.Info("no terminated users found")
		return deleted, notDeleted, nil
	}

	if !uc.notifier.ReportTerminated(ctx, uc.identity.AdminMailboxes(ctx), deleted, notDeleted) {
		logger.Warn("termination report was not sent")
	}
	return deleted, notDeleted, nil
}

func (uc *SyncUseCase) snapshots(ctx context.Context) (identityUsers, directoryUsers model.UserSnapshot, err error) {
	identityUsers, ok := uc.identity.FetchAll(ctx, false)
	if !ok {
		return nil, nil, goerr.Wrap(ErrIdentityUnavailable, "failed to list identity users")
	}
	directoryUsers, ok = uc.directory.FetchAll(ctx, false)
	if !ok {
		return nil, nil, goerr.Wrap(ErrDirectoryUnavailable, "failed to list directory users")
	}
	return identityUsers, directoryUsers, nil
}
